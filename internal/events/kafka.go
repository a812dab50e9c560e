package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types published on the payments topic after reconciliation.
const (
	TypePaymentApproved  = "PaymentApproved"
	TypePaymentDeclined  = "PaymentDeclined"
	TypePaymentCancelled = "PaymentCancelled"
)

type Producer struct{ w *kafka.Writer }

// NewProducer builds a producer for the given brokers. Partitioning is by
// message key, so keying on the order id keeps per-order ordering.
func NewProducer(brokers []string) *Producer {
	return &Producer{
		w: kafka.NewWriter(kafka.WriterConfig{
			Brokers:  brokers,
			Balancer: &kafka.Hash{},
		}),
	}
}

func (p *Producer) Close() error { return p.w.Close() }

// Envelope is the standard event schema. Keep it small and stable.
type Envelope struct {
	EventType    string      `json:"eventType"`
	EventVersion string      `json:"eventVersion"`
	OccurredAt   time.Time   `json:"occurredAt"`
	AggregateID  string      `json:"aggregateId"` // orderId
	Data         interface{} `json:"data"`
}

// Publish writes a single message to Kafka.
func (p *Producer) Publish(ctx context.Context, topic, key string, evt Envelope) error {
	evt.OccurredAt = time.Now().UTC()
	val, _ := json.Marshal(evt)
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: val,
	})
}
