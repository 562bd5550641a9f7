package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// APLBackend selects the credential store. The value is resolved exactly
// once at startup; an unknown value is a fatal configuration error.
type APLBackend string

const (
	BackendFile     APLBackend = "file"
	BackendDynamoDB APLBackend = "dynamodb"
	BackendRedis    APLBackend = "redis"
	BackendMemory   APLBackend = "memory"
)

type Config struct {
	Environment  string
	App          AppConfig
	Server       ServerConfig
	Database     DatabaseConfig
	APL          APLConfig
	Security     SecurityConfig
	Registration RegistrationConfig
	Kafka        KafkaConfig
	Retention    RetentionConfig
}

type AppConfig struct {
	ID      string
	Name    string
	Version string
	// BaseURL is this app's externally reachable origin, used in the
	// manifest's webhook target URLs.
	BaseURL string
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type APLConfig struct {
	Backend     APLBackend
	FilePath    string
	DynamoTable string
	AWSRegion   string
	RedisURL    string
}

type SecurityConfig struct {
	// EncryptionKey derives the AES key protecting tenant secrets at rest.
	EncryptionKey string
}

type RegistrationConfig struct {
	AllowedURLPatterns []string
	MinVersion         string
	MaxVersion         string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type RetentionConfig struct {
	TransactionLogMaxAge time.Duration
	SweepInterval        time.Duration
}

// Load reads configuration from the environment. A .env file, when present,
// seeds variables that are not already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: envOr("ENVIRONMENT", "development"),
		App: AppConfig{
			ID:      envOr("APP_ID", "paybridge"),
			Name:    envOr("APP_NAME", "Paybridge"),
			Version: envOr("APP_VERSION", "1.0.0"),
			BaseURL: os.Getenv("APP_BASE_URL"),
		},
		Server: ServerConfig{
			Port:           envOr("SERVER_PORT", "8080"),
			ReadTimeout:    envDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   envDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    envDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RateLimitRPS:   envFloat("RATE_LIMIT_RPS", 50),
			RateLimitBurst: envInt("RATE_LIMIT_BURST", 100),
		},
		Database: DatabaseConfig{
			DSN:          os.Getenv("DATABASE_DSN"),
			MaxOpenConns: envInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  envDuration("DB_MAX_LIFETIME", time.Hour),
		},
		APL: APLConfig{
			Backend:     APLBackend(envOr("APL_BACKEND", string(BackendFile))),
			FilePath:    envOr("APL_FILE_PATH", ".paybridge-auth.json"),
			DynamoTable: os.Getenv("APL_DYNAMO_TABLE"),
			AWSRegion:   os.Getenv("AWS_REGION"),
			RedisURL:    os.Getenv("APL_REDIS_URL"),
		},
		Security: SecurityConfig{
			EncryptionKey: os.Getenv("SECRET_ENCRYPTION_KEY"),
		},
		Registration: RegistrationConfig{
			AllowedURLPatterns: envList("ALLOWED_TENANT_URLS"),
			MinVersion:         os.Getenv("MIN_PLATFORM_VERSION"),
			MaxVersion:         os.Getenv("MAX_PLATFORM_VERSION"),
		},
		Kafka: KafkaConfig{
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   envOr("KAFKA_TOPIC", "paybridge.transactions"),
		},
		Retention: RetentionConfig{
			TransactionLogMaxAge: envDuration("TXLOG_RETENTION", 90*24*time.Hour),
			SweepInterval:        envDuration("TXLOG_SWEEP_INTERVAL", 24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
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

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
