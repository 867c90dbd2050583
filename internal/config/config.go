package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(fx.Annotate(NewPayoutConfigHolder, fx.As(new(PayoutSource)))),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

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

	Auth       AuthConfig
	Redis      RedisConfig
	Blob       BlobConfig
	Upload     UploadConfig
	Settlement SettlementConfig
}

type AuthConfig struct {
	SessionTTL time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type BlobConfig struct {
	Driver         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	PublicBaseURL  string
	ScriptedFolder string
	FreeformFolder string
}

type UploadConfig struct {
	MaxBytes int64
	Rate     float64
	Burst    int
}

type SettlementConfig struct {
	Cron          string
	LockTTL       time.Duration
	PayoutCfgPath string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "speechapp"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "speechapp"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 10)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 50)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 1800)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 300)),
		Auth: AuthConfig{
			SessionTTL: time.Duration(getenvInt64("AUTH_SESSION_TTL_HOURS", 24*7)) * time.Hour,
		},
		Redis: RedisConfig{
			Enabled:  getenvBool("REDIS_ENABLED", false),
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "localhost:6379")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		Blob: BlobConfig{
			Driver:         strings.ToLower(getenv("BLOB_DRIVER", "minio")),
			Endpoint:       strings.TrimSpace(getenv("BLOB_ENDPOINT", "localhost:9000")),
			AccessKey:      strings.TrimSpace(getenv("BLOB_ACCESS_KEY", "")),
			SecretKey:      strings.TrimSpace(getenv("BLOB_SECRET_KEY", "")),
			Bucket:         strings.TrimSpace(getenv("BLOB_BUCKET", "speech-recordings")),
			UseSSL:         getenvBool("BLOB_USE_SSL", false),
			PublicBaseURL:  strings.TrimSpace(getenv("BLOB_PUBLIC_BASE_URL", "")),
			ScriptedFolder: getenv("BLOB_SCRIPTED_FOLDER", "Scripted_Prompts"),
			FreeformFolder: getenv("BLOB_FREEFORM_FOLDER", "Freeform_Prompts"),
		},
		Upload: UploadConfig{
			MaxBytes: getenvInt64("UPLOAD_MAX_BYTES", 50<<20),
			Rate:     getenvFloat("UPLOAD_RATE", 1),
			Burst:    int(getenvInt64("UPLOAD_BURST", 10)),
		},
		Settlement: SettlementConfig{
			Cron:          strings.TrimSpace(getenv("SETTLEMENT_CRON", "")),
			LockTTL:       time.Duration(getenvInt64("SETTLEMENT_LOCK_TTL_SECONDS", 30)) * time.Second,
			PayoutCfgPath: strings.TrimSpace(getenv("PAYOUT_CONFIG_PATH", "")),
		},
	}

	return cfg
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
