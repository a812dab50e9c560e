package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	postgres "github.com/bna-integrations/checkout-reconciler/internal/storage/postgres"
)

// ErrGatewayNotConfigured means one or more BNA credentials are missing.
// Checkout requests fail fast on it, before any network call.
var ErrGatewayNotConfigured = errors.New("BNA gateway is not configured")

// GatewayConfig holds the BNA credentials and tunables.
type GatewayConfig struct {
	Mode           string // development | staging | production
	IframeID       string
	AccessKey      string
	SecretKey      string
	MatchScanLimit int
}

// Validate reports whether all three credentials are present.
func (g GatewayConfig) Validate() error {
	var missing []string
	if g.IframeID == "" {
		missing = append(missing, "GATEWAY_IFRAME_ID")
	}
	if g.AccessKey == "" {
		missing = append(missing, "GATEWAY_ACCESS_KEY")
	}
	if g.SecretKey == "" {
		missing = append(missing, "GATEWAY_SECRET_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrGatewayNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// ResolveAPIBase maps the configured mode to the BNA API host. Unknown modes
// resolve to the development host so a typo can never hit production.
func ResolveAPIBase(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "production":
		return "https://api-service.bnasmartpayment.com"
	case "staging":
		return "https://stage-api-service.bnasmartpayment.com"
	default:
		return "https://dev-api-service.bnasmartpayment.com"
	}
}

type HTTPConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers       []string
	PaymentsTopic string
}

type TelemetryConfig struct {
	TracesEndpoint string
}

// Config is the full service configuration, loaded once at startup.
type Config struct {
	ServiceName string
	HTTP        HTTPConfig
	Gateway     GatewayConfig
	Kafka       KafkaConfig
	Database    postgres.DatabaseConfig
	Telemetry   TelemetryConfig
}

// Load reads configuration from the environment with dev-friendly defaults.
// Credentials have no defaults; GatewayConfig.Validate reports them missing.
func Load() Config {
	return Config{
		ServiceName: getEnv("SERVICE_NAME", "checkout-reconciler"),
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Gateway: GatewayConfig{
			Mode:           getEnv("GATEWAY_MODE", "development"),
			IframeID:       os.Getenv("GATEWAY_IFRAME_ID"),
			AccessKey:      os.Getenv("GATEWAY_ACCESS_KEY"),
			SecretKey:      os.Getenv("GATEWAY_SECRET_KEY"),
			MatchScanLimit: getEnvInt("GATEWAY_MATCH_SCAN_LIMIT", 20),
		},
		Kafka: KafkaConfig{
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			PaymentsTopic: getEnv("KAFKA_PAYMENTS_TOPIC", "payments.v1"),
		},
		Database: postgres.DatabaseConfig{
			Host:     getEnv("ORDER_DB_HOST", "localhost"),
			Port:     getEnvInt("ORDER_DB_PORT", 5432),
			Database: getEnv("ORDER_DB_NAME", "orders"),
			User:     getEnv("ORDER_DB_USER", "postgres"),
			Password: getEnv("ORDER_DB_PASSWORD", "postgres"),
		},
		Telemetry: TelemetryConfig{
			TracesEndpoint: getEnv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
