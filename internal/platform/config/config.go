package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string
	RedisAddr   string

	PaymentWebhookSecret string
	PaymentGatewayURL    string
	PaymentGatewayAPIKey string
	ClassifierURL        string
	ClassifierAPIKey     string

	GatewayTimeout      time.Duration
	ClassifierTimeout   time.Duration
	ReconcileStaleAfter time.Duration
	OutboxPollInterval  time.Duration
	IdempotencyTTL      time.Duration
}

func Load() (Config, error) {
	// Missing .env is fine; real deployments set process env directly.
	_ = godotenv.Load()

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "hearth"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		RedisAddr:   redisAddr,

		PaymentWebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		PaymentGatewayURL:    os.Getenv("PAYMENT_GATEWAY_URL"),
		PaymentGatewayAPIKey: os.Getenv("PAYMENT_GATEWAY_API_KEY"),
		ClassifierURL:        os.Getenv("CLASSIFIER_URL"),
		ClassifierAPIKey:     os.Getenv("CLASSIFIER_API_KEY"),

		GatewayTimeout:      envDuration("PAYMENT_GATEWAY_TIMEOUT", 10*time.Second),
		ClassifierTimeout:   envDuration("CLASSIFIER_TIMEOUT", 5*time.Second),
		ReconcileStaleAfter: envDuration("RECONCILE_STALE_AFTER", 30*time.Minute),
		OutboxPollInterval:  envDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		IdempotencyTTL:      envDuration("IDEMPOTENCY_TTL", 7*24*time.Hour),
	}, nil
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}
