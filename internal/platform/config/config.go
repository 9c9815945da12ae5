package config

import (
	"os"
	"strconv"
	"time"

	"github.com/arc-self/wikipii-scan/internal/audit"
	"github.com/arc-self/wikipii-scan/internal/masking"
)

// Config is the process configuration (§6 "Configuration knobs"), sourced
// from Vault secrets with environment-variable fallback, matching
// discovery-service/cmd/api/main.go's secrets["KEY"].(string) idiom.
type Config struct {
	PgURL          string
	NatsURL        string
	RedisURL       string
	ContentBaseURL string
	EncryptionKey  []byte // 32 bytes, chacha20poly1305 key
	HTTPAddr       string

	Masking     masking.Options
	Audit       audit.Policy
	Retention   time.Duration
	Keepalive   time.Duration
	ScanTimeout time.Duration
}

// FromVault builds a Config from a KV2 Vault secret, falling back to
// environment variables for anything the secret does not carry.
func FromVault(secrets map[string]interface{}) Config {
	return Config{
		PgURL:          stringOr(secrets, "PG_URL", os.Getenv("PG_URL")),
		NatsURL:        stringOr(secrets, "NATS_URL", envOr("NATS_URL", "nats://localhost:4222")),
		RedisURL:       stringOr(secrets, "REDIS_URL", envOr("REDIS_URL", "redis://localhost:6379/0")),
		ContentBaseURL: stringOr(secrets, "CONTENT_BASE_URL", os.Getenv("CONTENT_BASE_URL")),
		EncryptionKey:  []byte(stringOr(secrets, "ENCRYPTION_KEY", os.Getenv("ENCRYPTION_KEY"))),
		HTTPAddr:       envOr("HTTP_ADDR", ":8080"),

		Masking: masking.Options{
			MaxLength:  envInt("PII_CONTEXT_MAX_LENGTH", masking.DefaultMaxLength),
			SideLength: envInt("PII_CONTEXT_SIDE_LENGTH", masking.DefaultSideLength),
		},
		Audit: audit.Policy{
			AllowSecretReveal: envBool("POLICY_ALLOW_SECRET_REVEAL", false),
		},
		Retention:   time.Duration(envInt("AUDIT_RETENTION_DAYS", 730)) * 24 * time.Hour,
		Keepalive:   15 * time.Second,
		ScanTimeout: 0, // none by default (§6 scan.timeout)
	}
}

func stringOr(m map[string]interface{}, key, fallback string) string {
	if m == nil {
		return fallback
	}
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
