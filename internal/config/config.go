package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Clark-Hu/movie-catalog/internal/cache"
)

// Cache backends understood by the server.
const (
	CacheBackendRedis  = cache.BackendRedis
	CacheBackendMemory = cache.BackendMemory
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port              string
	AuthToken         string
	ReadTimeoutSecs   int
	WriteTimeoutSecs  int
	IdleTimeoutSecs   int
	DBURL             string
	DBMaxConns        int
	DBMinConns        int
	DBMaxIdleSecs     int
	DBMaxLifeSecs     int
	DBConnTimeoutSecs int
	DBStatementCache  int
	TMDBURL           string
	TMDBAPIKey        string
	TMDBTimeoutSecs   int
	SyncPages         int
	SyncSchedule      string
	SyncOnStart       bool
	CacheBackend      string
	CacheTTLSecs      int
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	LogLevel          string
	LogFormat         string
}

// Load reads configuration from environment variables, applying defaults and validation.
// A .env file in the working directory is read first; variables already present in the
// process environment take precedence over it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}

	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		AuthToken:         os.Getenv("AUTH_TOKEN"),
		ReadTimeoutSecs:   getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs:  getEnvInt("SERVER_WRITE_TIMEOUT", 15),
		IdleTimeoutSecs:   getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		DBURL:             os.Getenv("DB_URL"),
		DBMaxConns:        getEnvInt("DB_MAX_CONNS", 20),
		DBMinConns:        getEnvInt("DB_MIN_CONNS", 2),
		DBMaxIdleSecs:     getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:     getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs: getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:  getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 256),
		TMDBURL:           getEnv("TMDB_URL", "https://api.themoviedb.org/3"),
		TMDBAPIKey:        os.Getenv("TMDB_API_KEY"),
		TMDBTimeoutSecs:   getEnvInt("TMDB_TIMEOUT_SECS", 10),
		SyncPages:         getEnvInt("TMDB_SYNC_PAGES", 5),
		SyncSchedule:      getEnv("SYNC_SCHEDULE", "0 0 * * *"),
		SyncOnStart:       getEnvBool("SYNC_ON_START", false),
		CacheBackend:      strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendRedis)),
		CacheTTLSecs:      getEnvInt("CACHE_TTL_SECS", 600),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
	}

	if cfg.AuthToken == "" {
		return Config{}, fmt.Errorf("AUTH_TOKEN is required")
	}
	if cfg.DBURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required")
	}
	if cfg.TMDBAPIKey == "" {
		return Config{}, fmt.Errorf("TMDB_API_KEY is required")
	}
	if cfg.TMDBTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("TMDB_TIMEOUT_SECS must be positive")
	}
	if cfg.SyncPages <= 0 {
		return Config{}, fmt.Errorf("TMDB_SYNC_PAGES must be positive")
	}
	if strings.TrimSpace(cfg.SyncSchedule) == "" {
		return Config{}, fmt.Errorf("SYNC_SCHEDULE cannot be empty")
	}
	if cfg.CacheTTLSecs <= 0 {
		return Config{}, fmt.Errorf("CACHE_TTL_SECS must be positive")
	}
	switch cfg.CacheBackend {
	case CacheBackendRedis:
		if cfg.RedisAddr == "" {
			return Config{}, fmt.Errorf("REDIS_ADDR is required for the redis cache backend")
		}
	case CacheBackendMemory:
	default:
		return Config{}, fmt.Errorf("CACHE_BACKEND must be %q or %q", CacheBackendRedis, CacheBackendMemory)
	}
	if cfg.DBMaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}

	return cfg, nil
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

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}
