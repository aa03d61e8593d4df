package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var ErrEmptyEnvironmentVariable = errors.New("empty environment variable")

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Engine   EngineConfig
	Jobs     JobsConfig
	Server   ServerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Username string
	Password string
	Name     string
}

// RedisConfig holds Redis connection settings. Redis is optional: when
// disabled the rule catalog falls back to TTL-only refresh and the stats
// cache is skipped.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// EngineConfig holds tuning knobs for the decision engine
type EngineConfig struct {
	// DecisionTimeout bounds one Ingest call end to end. On expiry the
	// engine answers with a no-action decision instead of blocking the
	// page render.
	DecisionTimeout time.Duration
	// SessionIdleGap is the idle period after which the next event starts
	// a new session for the identity.
	SessionIdleGap time.Duration
	// CatalogRefreshInterval bounds how stale the in-memory rule catalog
	// may get before it reloads from the store.
	CatalogRefreshInterval time.Duration
}

// JobsConfig holds scheduling intervals for background sweeps
type JobsConfig struct {
	DailyResetInterval   time.Duration
	EventRetentionDays   int
	RetentionInterval    time.Duration
	ActionExpiryTTL      time.Duration
	ActionExpiryInterval time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	WebAppOrigin string
}

// Load reads and validates all required environment variables
func Load() (*Config, error) {
	// Load env.local in non-production environments
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load("env.local"); err != nil {
			return nil, fmt.Errorf("failed to load env.local: %w", err)
		}
	}

	cfg := &Config{}

	// Database configuration
	var err error
	if cfg.Database.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Database.Username, err = requireEnv("DB_USERNAME"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.Name, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}

	// Redis configuration
	cfg.Redis.Enabled = getEnvWithDefault("REDIS_ENABLED", "false") == "true"
	if cfg.Redis.Enabled {
		if cfg.Redis.Host, err = requireEnv("REDIS_HOST"); err != nil {
			return nil, err
		}
		cfg.Redis.Port, err = strconv.Atoi(getEnvWithDefault("REDIS_PORT", "6379"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse REDIS_PORT: %w", err)
		}
		cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
		cfg.Redis.DB, err = strconv.Atoi(getEnvWithDefault("REDIS_DB", "0"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse REDIS_DB: %w", err)
		}
	}

	// Engine configuration
	if cfg.Engine.DecisionTimeout, err = durationEnv("DECISION_TIMEOUT_MS", 750*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.Engine.SessionIdleGap, err = durationEnv("SESSION_IDLE_GAP_MS", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Engine.CatalogRefreshInterval, err = durationEnv("CATALOG_REFRESH_MS", 30*time.Second); err != nil {
		return nil, err
	}

	// Jobs configuration
	if cfg.Jobs.DailyResetInterval, err = durationEnv("DAILY_RESET_INTERVAL_MS", 15*time.Minute); err != nil {
		return nil, err
	}
	cfg.Jobs.EventRetentionDays, err = strconv.Atoi(getEnvWithDefault("EVENT_RETENTION_DAYS", "90"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse EVENT_RETENTION_DAYS: %w", err)
	}
	if cfg.Jobs.EventRetentionDays < 90 {
		return nil, fmt.Errorf("EVENT_RETENTION_DAYS must be at least 90, got %d", cfg.Jobs.EventRetentionDays)
	}
	if cfg.Jobs.RetentionInterval, err = durationEnv("RETENTION_INTERVAL_MS", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Jobs.ActionExpiryTTL, err = durationEnv("ACTION_EXPIRY_TTL_MS", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Jobs.ActionExpiryInterval, err = durationEnv("ACTION_EXPIRY_INTERVAL_MS", 10*time.Minute); err != nil {
		return nil, err
	}

	// Server configuration
	serverPort, err := requireEnv("SERVER_PORT")
	if err != nil {
		return nil, err
	}
	cfg.Server.Port, err = strconv.Atoi(serverPort)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SERVER_PORT: %w", err)
	}
	cfg.Server.WebAppOrigin = getEnvWithDefault("WEBAPP_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s",
		c.Username, c.Password, c.Host, c.Name)
}

// requireEnv retrieves an environment variable or returns an error if empty
func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set: %w", key, ErrEmptyEnvironmentVariable)
	}
	return value, nil
}

// getEnvWithDefault retrieves an environment variable or returns a default value
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// durationEnv parses a millisecond-valued environment variable
func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	ms, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
