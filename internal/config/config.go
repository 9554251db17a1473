package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App    AppConfig
	Store  StoreConfig
	Upload UploadConfig
	Leads  LeadsConfig
	AMQP   AMQPConfig
	Logger LoggerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	CORSAllowOrigins      string
}

// StoreConfig selects and tunes the lead store. The DSN scheme picks the backend.
type StoreConfig struct {
	DSN            string
	MongoDatabase  string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// UploadConfig bounds the spreadsheet ingestion path.
type UploadConfig struct {
	Dir                  string
	MaxBytes             int64
	ParseTimeoutSeconds  int
	SweepIntervalSeconds int
	SweepMaxAgeSeconds   int
}

// LeadsConfig tunes lead lifecycle rules.
type LeadsConfig struct {
	StrictUpdate bool
}

// AMQPConfig enables event forwarding when URL is set.
type AMQPConfig struct {
	URL      string
	Exchange string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ClientConfig configures the leadctl command line client.
type ClientConfig struct {
	APIURL         string
	TimeoutSeconds int
	Redis          RedisConfig
	Logger         LoggerConfig
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	maxBytes, err := strconv.ParseInt(getEnv("UPLOAD_MAX_BYTES", "10485760"), 10, 64)
	if err != nil || maxBytes <= 0 {
		return nil, fmt.Errorf("invalid UPLOAD_MAX_BYTES: %q", os.Getenv("UPLOAD_MAX_BYTES"))
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "lead-manager"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", getEnv("PORT", "5000")),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			CORSAllowOrigins:      getEnv("CORS_ALLOW_ORIGINS", "*"),
		},
		Store: StoreConfig{
			DSN:            getEnv("DATABASE_URL", os.Getenv("MONGODB_URI")),
			MongoDatabase:  getEnv("MONGO_DATABASE", "leadmanager"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Upload: UploadConfig{
			Dir:                  getEnv("UPLOAD_DIR", "uploads"),
			MaxBytes:             maxBytes,
			ParseTimeoutSeconds:  getEnvAsInt("UPLOAD_PARSE_TIMEOUT_SECONDS", 15),
			SweepIntervalSeconds: getEnvAsInt("UPLOAD_SWEEP_INTERVAL_SECONDS", 300),
			SweepMaxAgeSeconds:   getEnvAsInt("UPLOAD_SWEEP_MAX_AGE_SECONDS", 900),
		},
		Leads: LeadsConfig{
			StrictUpdate: getEnvAsBool("LEADS_STRICT_UPDATE", false),
		},
		AMQP: AMQPConfig{
			URL:      os.Getenv("AMQP_URL"),
			Exchange: getEnv("AMQP_EXCHANGE", "ex.leads"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if strings.TrimSpace(cfg.Store.DSN) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// LoadClient reads leadctl configuration from the environment.
func LoadClient() (*ClientConfig, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("LEADCTL_REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid LEADCTL_REDIS_DB: %w", err)
	}

	return &ClientConfig{
		APIURL:         strings.TrimRight(getEnv("LEADCTL_API_URL", "http://127.0.0.1:5000/api"), "/"),
		TimeoutSeconds: getEnvAsInt("LEADCTL_TIMEOUT_SECONDS", 10),
		Redis: RedisConfig{
			Addr:     os.Getenv("LEADCTL_REDIS_ADDR"),
			Password: os.Getenv("LEADCTL_REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LEADCTL_LOG_LEVEL", "warn"),
		},
	}, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	return seconds(a.RequestTimeoutSeconds)
}

// ParseTimeout bounds how long a single upload may spend in the parser.
func (u UploadConfig) ParseTimeout() time.Duration {
	return seconds(u.ParseTimeoutSeconds)
}

// SweepInterval returns how often the staging directory is swept.
func (u UploadConfig) SweepInterval() time.Duration {
	return seconds(u.SweepIntervalSeconds)
}

// SweepMaxAge returns the age after which a staged file counts as orphaned.
func (u UploadConfig) SweepMaxAge() time.Duration {
	return seconds(u.SweepMaxAgeSeconds)
}

// Timeout returns the per-request timeout for the API client.
func (c ClientConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
