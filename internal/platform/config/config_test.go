package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("REGISTRAR_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_TOPIC", "")
	t.Setenv("JWT_SIGNING_KEY", "")

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "registrar.events", cfg.KafkaTopic)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.NotEmpty(t, cfg.JWTSigningKey)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("REGISTRAR_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("KAFKA_TOPIC", "registrar.test")
	t.Setenv("DATABASE_URL", "postgres://localhost/registrar")
	t.Setenv("JWT_SIGNING_KEY", "test-key")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "registrar.test", cfg.KafkaTopic)
	assert.Equal(t, "postgres://localhost/registrar", cfg.DatabaseURL)
	assert.Equal(t, "test-key", cfg.JWTSigningKey)
}
