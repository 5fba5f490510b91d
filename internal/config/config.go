package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/smallbiznis/encore/internal/identity"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	Telemetry TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis        RedisConfig
	Kafka        KafkaConfig
	Email        EmailConfig
	Upload       UploadConfig
	Attachment   AttachmentConfig
	Notification NotificationConfig
}

type TelemetryConfig struct {
	LogLevel  string
	LogFormat string

	OtelEnabled   bool
	OtelEndpoint  string
	OtelProtocol  string
	SamplingRatio float64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Per-user upload token bucket.
	UploadRate  float64
	UploadBurst int
	LockTTL     time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

type UploadConfig struct {
	MaxBytes     int64
	AllowedTypes []string
}

type AttachmentConfig struct {
	// Providers lists attachment backends in fallback order.
	Providers []string

	LocalDir     string
	LocalBaseURL string

	CDNEndpoint string
	CDNAPIKey   string
	CDNTimeout  time.Duration
}

type NotificationConfig struct {
	QueueSize     int
	Workers       int
	RelayInterval time.Duration
	RelayBatch    int
	FinanceRole   string
}

// BroadcastRole is the role inbox that receives finance broadcasts.
func (c NotificationConfig) BroadcastRole() string {
	role := strings.TrimSpace(c.FinanceRole)
	if role == "" {
		return identity.RoleFinance
	}
	return role
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "encore"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		Telemetry: TelemetryConfig{
			LogLevel:      strings.ToLower(getenv("LOG_LEVEL", "info")),
			LogFormat:     strings.ToLower(getenv("LOG_FORMAT", "json")),
			OtelEnabled:   getenvBool("OTEL_ENABLED", false),
			OtelEndpoint:  strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
			OtelProtocol:  strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "encore"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		Redis: RedisConfig{
			Addr:        strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password:    getenv("REDIS_PASSWORD", ""),
			DB:          getenvInt("REDIS_DB", 0),
			UploadRate:  getenvFloat("UPLOAD_RATE_PER_SECOND", 0.5),
			UploadBurst: getenvInt("UPLOAD_RATE_BURST", 5),
			LockTTL:     getenvDuration("RECORD_LOCK_TTL", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getenv("KAFKA_BROKERS", "")),
			Topic:   getenv("KAFKA_NOTIFICATION_TOPIC", "finance.notifications"),
		},
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "finance@encore.local"),
		},
		Upload: UploadConfig{
			MaxBytes:     getenvInt64("UPLOAD_MAX_BYTES", 5<<20),
			AllowedTypes: splitList(getenv("UPLOAD_ALLOWED_TYPES", "image/jpeg,image/png,application/pdf")),
		},
		Attachment: AttachmentConfig{
			Providers:    splitList(getenv("ATTACHMENT_PROVIDERS", "local,cdn")),
			LocalDir:     getenv("ATTACHMENT_LOCAL_DIR", "./data/attachments"),
			LocalBaseURL: getenv("ATTACHMENT_LOCAL_BASE_URL", "/files"),
			CDNEndpoint:  strings.TrimSpace(getenv("ATTACHMENT_CDN_ENDPOINT", "")),
			CDNAPIKey:    strings.TrimSpace(getenv("ATTACHMENT_CDN_API_KEY", "")),
			CDNTimeout:   getenvDuration("ATTACHMENT_CDN_TIMEOUT", 15*time.Second),
		},
		Notification: NotificationConfig{
			QueueSize:     getenvInt("NOTIFICATION_QUEUE_SIZE", 256),
			Workers:       getenvInt("NOTIFICATION_WORKERS", 2),
			RelayInterval: getenvDuration("NOTIFICATION_RELAY_INTERVAL", time.Second),
			RelayBatch:    getenvInt("NOTIFICATION_RELAY_BATCH", 100),
			FinanceRole:   getenv("NOTIFICATION_FINANCE_ROLE", "finance"),
		},
	}
}

func (c Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

func (c Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
