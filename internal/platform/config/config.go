package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr        string
	Environment string
	LogFormat   string
	LogLevel    string
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Blob        BlobConfig
	External    ExternalConfig
	Auth        AuthConfig
}

// DatabaseConfig selects the persistent store. An empty URL runs on the
// in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	TxTimeout       time.Duration
}

// RedisConfig backs the per-session review lock. Empty URL falls back to an
// in-process lock.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
}

// KafkaConfig drives the audit outbox relay. No brokers disables the relay.
type KafkaConfig struct {
	Brokers      []string
	AuditTopic   string
	PollInterval time.Duration
	BatchSize    int
}

// BlobConfig points at an S3-compatible bucket. Empty bucket keeps blobs in memory.
type BlobConfig struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// ExternalConfig bounds calls to the OCR, blob and asset discovery collaborators.
type ExternalConfig struct {
	OCRTimeout       time.Duration
	DiscoveryTimeout time.Duration
	BlobTimeout      time.Duration
	MaxAttempts      int
	BaseBackoff      time.Duration
	FailureThreshold int
}

// AuthConfig validates tokens issued by the identity provider.
type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:        getEnv("ESTATE_ADDR", ":8080"),
		Environment: getEnv("ESTATE_ENV", "development"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			TxTimeout:       getEnvDuration("DATABASE_TX_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			LockTTL:      getEnvDuration("REVIEW_LOCK_TTL", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:      splitCSV(os.Getenv("KAFKA_BROKERS")),
			AuditTopic:   getEnv("KAFKA_AUDIT_TOPIC", "estate.audit"),
			PollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", time.Second),
			BatchSize:    getEnvInt("OUTBOX_BATCH_SIZE", 100),
		},
		Blob: BlobConfig{
			Bucket:       os.Getenv("BLOB_BUCKET"),
			Region:       getEnv("BLOB_REGION", "us-east-1"),
			Endpoint:     os.Getenv("BLOB_ENDPOINT"),
			AccessKey:    os.Getenv("BLOB_ACCESS_KEY"),
			SecretKey:    os.Getenv("BLOB_SECRET_KEY"),
			UsePathStyle: os.Getenv("BLOB_PATH_STYLE") == "true",
		},
		External: ExternalConfig{
			OCRTimeout:       getEnvDuration("OCR_TIMEOUT", 10*time.Second),
			DiscoveryTimeout: getEnvDuration("DISCOVERY_TIMEOUT", 30*time.Second),
			BlobTimeout:      getEnvDuration("BLOB_TIMEOUT", 15*time.Second),
			MaxAttempts:      getEnvInt("EXTERNAL_MAX_ATTEMPTS", 3),
			BaseBackoff:      getEnvDuration("EXTERNAL_BASE_BACKOFF", 200*time.Millisecond),
			FailureThreshold: getEnvInt("EXTERNAL_FAILURE_THRESHOLD", 5),
		},
		Auth: AuthConfig{
			// Use a default for development - should be overridden in production
			JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:        getEnv("JWT_ISSUER", "estate-identity"),
			Audience:      getEnv("JWT_AUDIENCE", "estate-claims"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
