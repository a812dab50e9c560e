package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"github.com/bna-integrations/checkout-reconciler/internal/email"
	"github.com/bna-integrations/checkout-reconciler/internal/events"
)

func main() {
	_ = godotenv.Load()
	log.Println("Email worker starting...")
	startConsumer()
}

func startConsumer() {
	brokers := getenv("KAFKA_BROKERS", "localhost:9092")
	topic := getenv("KAFKA_PAYMENTS_TOPIC", "payments.v1")
	group := getenv("KAFKA_EMAIL_GROUP_ID", "email-workers")
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{brokers},
		Topic:    topic,
		GroupID:  group,
		MinBytes: 1e3, MaxBytes: 10e6,
	})
	defer reader.Close()

	sender := pickSender()
	log.Printf("[email-worker] consuming %s (group=%s)", topic, group)
	for {
		msg, err := reader.ReadMessage(context.Background())
		if err != nil {
			log.Printf("[email-worker] read error: %v", err)
			return
		}

		var evt events.Envelope
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			log.Printf("[email-worker] bad json: %v; payload=%s", err, string(msg.Value))
			continue
		}

		switch evt.EventType {
		case events.TypePaymentApproved:
			handlePaymentApproved(sender, evt)
		case events.TypePaymentDeclined:
			handlePaymentDeclined(sender, evt)
		case events.TypePaymentCancelled:
			handlePaymentDeclined(sender, evt)
		default:
			// ignore other event types
		}
	}
}

func handlePaymentApproved(sender email.Sender, evt events.Envelope) {
	data := toMap(evt.Data)
	orderID := toString(data["orderId"])
	txID := toString(data["transactionId"])
	currency := toString(data["currency"])
	total := toFloat(data["total"])
	to := recipient(data)

	body := email.RenderPaymentApprovedEmail(orderID, currency, total, txID)
	if err := sender.Send(to, "Payment received for your order", body); err != nil {
		log.Printf("[email-worker] send failed: %v", err)
		return
	}
	log.Printf("[email-worker] sent PaymentApproved email to=%s order=%s tx=%s", to, orderID, txID)
}

func handlePaymentDeclined(sender email.Sender, evt events.Envelope) {
	data := toMap(evt.Data)
	orderID := toString(data["orderId"])
	status := toString(data["status"])
	to := recipient(data)

	body := email.RenderPaymentFailedEmail(orderID, "The payment was "+status+".")
	if err := sender.Send(to, "There was a problem with your payment", body); err != nil {
		log.Printf("[email-worker] send failed: %v", err)
		return
	}
	log.Printf("[email-worker] sent payment failure email to=%s order=%s", to, orderID)
}

// recipient prefers the billing email from the event; DEMO_TO_EMAIL
// overrides for local testing.
func recipient(data map[string]interface{}) string {
	if v := os.Getenv("DEMO_TO_EMAIL"); v != "" {
		return v
	}
	if e := toString(data["email"]); e != "" {
		return e
	}
	return "test@example.local"
}

func pickSender() email.Sender {
	if os.Getenv("SMTP_HOST") != "" || os.Getenv("SMTP_PORT") != "" {
		return email.NewSMTPSender()
	}
	return email.LogSender{}
}

// helpers
func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
func toMap(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}
func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	}
	return 0
}
