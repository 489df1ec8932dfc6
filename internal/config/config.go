package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Card store
	StoreDriver string
	DatabaseURL string
	SQLitePath  string

	// Redis (optional; empty disables realtime events)
	RedisURL string

	// JWT
	JWTSecret string

	// Review sessions
	ReviewSessionTTL    time.Duration
	DueReminderInterval time.Duration

	// Rate limiting
	RateLimitPerMinute int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                getEnvOrDefault("PORT", "8080"),
		Env:                 getEnvOrDefault("ENV", "development"),
		StoreDriver:         getEnvOrDefault("STORE_DRIVER", StoreDriverPostgres),
		SQLitePath:          getEnvOrDefault("SQLITE_PATH", "./kyucards.db"),
		RedisURL:            getEnvOrDefault("REDIS_URL", ""),
		JWTSecret:           mustGetEnv("JWT_SECRET"),
		ReviewSessionTTL:    getEnvAsDurationOrDefault("REVIEW_SESSION_TTL", 30*time.Minute),
		DueReminderInterval: getEnvAsDurationOrDefault("DUE_REMINDER_INTERVAL", 15*time.Minute),
		RateLimitPerMinute:  getEnvAsIntOrDefault("RATE_LIMIT_PER_MINUTE", 120),
		FrontendURL:         getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
	case StoreDriverSQLite:
	default:
		panic(fmt.Sprintf("unsupported STORE_DRIVER %q", cfg.StoreDriver))
	}

	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
