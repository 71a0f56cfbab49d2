package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures the full service configuration.
type Server struct {
	Addr          string
	AdminToken    string
	JWTSigningKey string

	MinRentDuration time.Duration
	MaxNameLength   int
	CacheTTL        time.Duration

	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// PostgresConfig configures the event journal. An empty URL keeps the
// journal in memory.
type PostgresConfig struct {
	URL string
}

// RedisConfig configures the record read cache. An empty URL falls back to
// the in-process cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the event sink. Empty brokers disable it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("NAMESERVICE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	adminToken := os.Getenv("NAMESERVICE_ADMIN_TOKEN")
	if adminToken == "" {
		// Use a default for development - should be overridden in production
		adminToken = "dev-admin-token-change-in-production"
	}

	jwtSigningKey := os.Getenv("NAMESERVICE_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("NAMESERVICE_KAFKA_TOPIC")
	if topic == "" {
		topic = "nameservice.events"
	}
	var brokers []string
	if raw := os.Getenv("NAMESERVICE_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	return Server{
		Addr:            addr,
		AdminToken:      adminToken,
		JWTSigningKey:   jwtSigningKey,
		MinRentDuration: durationFromEnv("NAMESERVICE_MIN_RENT_SECONDS", 365*24*time.Hour),
		MaxNameLength:   intFromEnv("NAMESERVICE_MAX_NAME_LENGTH", 30),
		CacheTTL:        durationFromEnv("NAMESERVICE_CACHE_TTL_SECONDS", 30*time.Second),
		Postgres: PostgresConfig{
			URL: os.Getenv("NAMESERVICE_POSTGRES_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("NAMESERVICE_REDIS_URL"),
			PoolSize:     intFromEnv("NAMESERVICE_REDIS_POOL_SIZE", 10),
			MinIdleConns: intFromEnv("NAMESERVICE_REDIS_MIN_IDLE", 2),
			DialTimeout:  durationFromEnv("NAMESERVICE_REDIS_DIAL_TIMEOUT_SECONDS", 5*time.Second),
			ReadTimeout:  durationFromEnv("NAMESERVICE_REDIS_READ_TIMEOUT_SECONDS", 3*time.Second),
			WriteTimeout: durationFromEnv("NAMESERVICE_REDIS_WRITE_TIMEOUT_SECONDS", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   topic,
		},
	}
}

func intFromEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
