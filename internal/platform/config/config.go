// Package config builds runtime configuration from environment variables
// so main stays lean.
package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr        string
	PostgresDSN string
	RedisURL    string

	KafkaBrokers []string
	KafkaTopic   string

	AuditHMACSecret string
	JWTSigningKey   string
	SessionTTL      time.Duration

	LogFormat string // "text" or "json"

	// Bootstrap admin account, created on first start when set.
	AdminUsername string
	AdminPassword string
}

// FromEnv reads configuration from the environment, applying development
// defaults where a value is safe to default.
func FromEnv() Config {
	cfg := Config{
		Addr:            getenv("ADMITDESK_ADDR", ":8080"),
		PostgresDSN:     os.Getenv("ADMITDESK_POSTGRES_DSN"),
		RedisURL:        os.Getenv("ADMITDESK_REDIS_URL"),
		KafkaTopic:      getenv("ADMITDESK_KAFKA_TOPIC", "admitdesk.audit"),
		AuditHMACSecret: getenv("AUDIT_HMAC_SECRET", "audit-dev"),
		JWTSigningKey:   getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		SessionTTL:      12 * time.Hour,
		LogFormat:       getenv("LOG_FORMAT", "text"),
		AdminUsername:   os.Getenv("ADMITDESK_ADMIN_USERNAME"),
		AdminPassword:   os.Getenv("ADMITDESK_ADMIN_PASSWORD"),
	}

	if brokers := os.Getenv("ADMITDESK_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if ttl := os.Getenv("ADMITDESK_SESSION_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.SessionTTL = d
		}
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
