package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// KV backend names accepted by KV_BACKEND.
const (
	KVBackendMemory = "memory"
	KVBackendSQLite = "sqlite"
	KVBackendRedis  = "redis"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port      string
	AuthToken string
	LogLevel  string

	DBURL                string
	DBMaxConns           int
	DBMinConns           int
	DBMaxIdleSecs        int
	DBMaxLifeSecs        int
	DBConnTimeoutSecs    int
	DBStatementCache     int
	DBConnectAttempts    int
	DBConnectBackoffSecs int

	TMDBURL          string
	TMDBAPIKey       string
	TMDBTimeoutSecs  int
	TMDBRatePerSec   float64
	TMDBImageBaseURL string

	Timezone             string
	RolloverIntervalSecs int
	SelectionWindow      int

	KVBackend     string
	KVSQLitePath  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NotifyHour         int
	NotifyMinute       int
	NotifyRetries      int
	NotifyRetryDelayMS int
	NotifyWebhookURL   string

	ReadTimeoutSecs  int
	WriteTimeoutSecs int
	IdleTimeoutSecs  int
}

// Requirement selects which upstream credentials LoadFor insists on.
type Requirement uint8

const (
	RequireDB Requirement = 1 << iota
	RequireTMDB

	RequireNone Requirement = 0
	RequireAll              = RequireDB | RequireTMDB
)

// Load reads configuration from environment variables, applying defaults and validation.
// Variables from ENV_FILE (default .env) are applied first without overriding the
// process environment; a missing file is ignored.
func Load() (Config, error) {
	return LoadFor(RequireAll)
}

// LoadFor is Load with DB_URL and TMDB_API_KEY only required when req names them.
func LoadFor(req Requirement) (Config, error) {
	if err := loadEnvFile(getEnv("ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:      getEnv("PORT", "8080"),
		AuthToken: os.Getenv("AUTH_TOKEN"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),

		DBURL:                os.Getenv("DB_URL"),
		DBMaxConns:           getEnvInt("DB_MAX_CONNS", 20),
		DBMinConns:           getEnvInt("DB_MIN_CONNS", 2),
		DBMaxIdleSecs:        getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:        getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs:    getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:     getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 256),
		DBConnectAttempts:    getEnvInt("DB_CONNECT_ATTEMPTS", 5),
		DBConnectBackoffSecs: getEnvInt("DB_CONNECT_BACKOFF_SECS", 2),

		TMDBURL:          getEnv("TMDB_URL", "https://api.themoviedb.org/3"),
		TMDBAPIKey:       os.Getenv("TMDB_API_KEY"),
		TMDBTimeoutSecs:  getEnvInt("TMDB_TIMEOUT_SECS", 10),
		TMDBRatePerSec:   getEnvFloat("TMDB_RATE_PER_SEC", 20),
		TMDBImageBaseURL: getEnv("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p"),

		Timezone:             getEnv("TIMEZONE", "Local"),
		RolloverIntervalSecs: getEnvInt("ROLLOVER_INTERVAL_SECS", 60),
		SelectionWindow:      getEnvInt("SELECTION_WINDOW", 20),

		KVBackend:     strings.ToLower(getEnv("KV_BACKEND", KVBackendSQLite)),
		KVSQLitePath:  getEnv("KV_SQLITE_PATH", "motd-cache.db"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		NotifyHour:         getEnvInt("NOTIFY_HOUR", 9),
		NotifyMinute:       getEnvInt("NOTIFY_MINUTE", 0),
		NotifyRetries:      getEnvInt("NOTIFY_RETRIES", 3),
		NotifyRetryDelayMS: getEnvInt("NOTIFY_RETRY_DELAY_MS", 1000),
		NotifyWebhookURL:   os.Getenv("NOTIFY_WEBHOOK_URL"),

		ReadTimeoutSecs:  getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
		IdleTimeoutSecs:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
	}

	if req&RequireDB != 0 && cfg.DBURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required")
	}
	if req&RequireTMDB != 0 && cfg.TMDBAPIKey == "" {
		return Config{}, fmt.Errorf("TMDB_API_KEY is required")
	}
	if cfg.TMDBTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("TMDB_TIMEOUT_SECS must be positive")
	}
	if cfg.TMDBRatePerSec < 0 {
		return Config{}, fmt.Errorf("TMDB_RATE_PER_SEC must be non-negative")
	}
	if cfg.RolloverIntervalSecs <= 0 {
		return Config{}, fmt.Errorf("ROLLOVER_INTERVAL_SECS must be positive")
	}
	if cfg.SelectionWindow < 1 {
		return Config{}, fmt.Errorf("SELECTION_WINDOW must be at least 1")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return Config{}, fmt.Errorf("TIMEZONE %q is not a valid IANA zone", cfg.Timezone)
	}
	switch cfg.KVBackend {
	case KVBackendMemory, KVBackendSQLite, KVBackendRedis:
	default:
		return Config{}, fmt.Errorf("KV_BACKEND must be one of memory, sqlite, redis")
	}
	if cfg.KVBackend == KVBackendSQLite && cfg.KVSQLitePath == "" {
		return Config{}, fmt.Errorf("KV_SQLITE_PATH is required for the sqlite backend")
	}
	if cfg.NotifyHour < 0 || cfg.NotifyHour > 23 {
		return Config{}, fmt.Errorf("NOTIFY_HOUR must be between 0 and 23")
	}
	if cfg.NotifyMinute < 0 || cfg.NotifyMinute > 59 {
		return Config{}, fmt.Errorf("NOTIFY_MINUTE must be between 0 and 59")
	}
	if cfg.NotifyRetries <= 0 {
		return Config{}, fmt.Errorf("NOTIFY_RETRIES must be positive")
	}
	if cfg.NotifyRetryDelayMS < 0 {
		return Config{}, fmt.Errorf("NOTIFY_RETRY_DELAY_MS must be non-negative")
	}
	if cfg.DBMaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMaxConns > 0 && cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBConnectAttempts < 1 {
		return Config{}, fmt.Errorf("DB_CONNECT_ATTEMPTS must be at least 1")
	}
	if cfg.DBConnectBackoffSecs < 0 {
		return Config{}, fmt.Errorf("DB_CONNECT_BACKOFF_SECS must be non-negative")
	}
	if cfg.DBStatementCache < 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}

	return cfg, nil
}

// RolloverInterval returns ROLLOVER_INTERVAL_SECS as a duration.
func (c Config) RolloverInterval() time.Duration {
	return time.Duration(c.RolloverIntervalSecs) * time.Second
}

// NotifyRetryDelay returns NOTIFY_RETRY_DELAY_MS as a duration.
func (c Config) NotifyRetryDelay() time.Duration {
	return time.Duration(c.NotifyRetryDelayMS) * time.Millisecond
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
