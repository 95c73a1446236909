package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything the registrar process reads from the
// environment. Empty DATABASE_URL, REDIS_URL or KAFKA_BROKERS select the
// in-memory implementations, which keeps local development dependency-free.
type Config struct {
	Addr string

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string

	WatcherURL     string
	ChatHomeserver string
	ChatUsername   string
	ChatPassword   string

	RegistrarEmail   string
	RegistrarTwitter string

	JWTSigningKey string
	LogLevel      string
}

// RedisConfig tunes the Redis connection pool.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds the process config from environment variables so main
// stays lean.
func FromEnv() Config {
	addr := os.Getenv("REGISTRAR_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "registrar.events"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default, must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Config{
		Addr:             addr,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		KafkaBrokers:     brokers,
		KafkaTopic:       topic,
		WatcherURL:       os.Getenv("WATCHER_URL"),
		ChatHomeserver:   os.Getenv("CHAT_HOMESERVER"),
		ChatUsername:     os.Getenv("CHAT_USERNAME"),
		ChatPassword:     os.Getenv("CHAT_PASSWORD"),
		RegistrarEmail:   os.Getenv("REGISTRAR_EMAIL"),
		RegistrarTwitter: os.Getenv("REGISTRAR_TWITTER"),
		JWTSigningKey:    jwtSigningKey,
		LogLevel:         os.Getenv("LOG_LEVEL"),
	}
}

// Redis derives the pool settings for the room store.
func (c Config) Redis() RedisConfig {
	return RedisConfig{
		URL:          c.RedisURL,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}
