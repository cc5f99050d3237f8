package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides the environment backed Config and the hot-reloaded compliance policy.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewPolicyHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

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

	Redis      RedisConfig
	Extraction ExtractionConfig
	Storage    StorageConfig
	Compliance ComplianceConfig
	Quota      QuotaConfig
	Scheduler  SchedulerConfig
	Telemetry  TelemetryConfig
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type ExtractionConfig struct {
	Provider         string
	APIKey           string
	Model            string
	MaxTokens        int
	Timeout          time.Duration
	MaxDocumentBytes int64
	MaxRetries       int
}

type StorageConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
	ExpireDays int
}

type ComplianceConfig struct {
	ExpiringWindowDays int
	RecalcConcurrency  int
	LockTTL            time.Duration
	LockWait           time.Duration
	PolicyFile         string
}

type QuotaConfig struct {
	PerEntityPerHour int
	PerOrgPerMonth   int
}

type SchedulerConfig struct {
	SweepEnabled  bool
	SweepInterval time.Duration
	SweepBatch    int
	SweepTimeout  time.Duration
}

// TelemetryConfig follows the OTEL_* variable names so standard collectors
// configure it without translation.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	TraceEnabled  bool
	OTLPEndpoint  string
	OTLPProtocol  string
	SamplingRatio float64
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "covercheck"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "covercheck"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Redis: RedisConfig{
			Enabled:  getenvBool("REDIS_ENABLED", false),
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "localhost:6379")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Extraction: ExtractionConfig{
			Provider:         strings.ToLower(getenv("EXTRACTION_PROVIDER", "anthropic")),
			APIKey:           strings.TrimSpace(getenv("ANTHROPIC_API_KEY", "")),
			Model:            getenv("EXTRACTION_MODEL", "claude-sonnet-4-5-20250929"),
			MaxTokens:        getenvInt("EXTRACTION_MAX_TOKENS", 4096),
			Timeout:          getenvDuration("EXTRACTION_TIMEOUT", 90*time.Second),
			MaxDocumentBytes: int64(getenvInt("EXTRACTION_MAX_DOCUMENT_BYTES", 10<<20)),
			MaxRetries:       getenvInt("EXTRACTION_MAX_RETRIES", 2),
		},
		Storage: StorageConfig{
			Endpoint:   getenv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:  getenv("MINIO_ACCESS_KEY", ""),
			SecretKey:  getenv("MINIO_SECRET_KEY", ""),
			Bucket:     getenv("MINIO_BUCKET", "certificates"),
			UseSSL:     getenvBool("MINIO_USE_SSL", false),
			ExpireDays: getenvInt("MINIO_PRESIGN_EXPIRE_DAYS", 1),
		},
		Compliance: ComplianceConfig{
			ExpiringWindowDays: getenvInt("COMPLIANCE_EXPIRING_WINDOW_DAYS", 30),
			RecalcConcurrency:  getenvInt("COMPLIANCE_RECALC_CONCURRENCY", 8),
			LockTTL:            getenvDuration("COMPLIANCE_LOCK_TTL", 30*time.Second),
			LockWait:           getenvDuration("COMPLIANCE_LOCK_WAIT", 10*time.Second),
			PolicyFile:         strings.TrimSpace(getenv("COMPLIANCE_POLICY_FILE", "")),
		},
		Quota: QuotaConfig{
			PerEntityPerHour: getenvInt("EXTRACTION_QUOTA_ENTITY_HOURLY", 10),
			PerOrgPerMonth:   getenvInt("EXTRACTION_QUOTA_ORG_MONTHLY", 500),
		},
		Scheduler: SchedulerConfig{
			SweepEnabled:  getenvBool("EXPIRATION_SWEEP_ENABLED", true),
			SweepInterval: getenvDuration("EXPIRATION_SWEEP_INTERVAL", time.Hour),
			SweepBatch:    getenvInt("EXPIRATION_SWEEP_BATCH", 200),
			SweepTimeout:  getenvDuration("EXPIRATION_SWEEP_TIMEOUT", 10*time.Minute),
		},
		Telemetry: TelemetryConfig{
			LogLevel:      strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:     strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			TraceEnabled:  getenvBool("OTEL_ENABLED", false),
			OTLPEndpoint:  strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
			OTLPProtocol:  strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")))),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
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
