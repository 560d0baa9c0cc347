package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Database  DatabaseConfig
	Scheduler SchedulerConfig
	Platform  PlatformConfig
	Poll      PollConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type SchedulerConfig struct {
	// TickInterval is how often the loop scans for due jobs
	TickInterval time.Duration
	// DispatchTimeout bounds a single handler invocation
	DispatchTimeout time.Duration
	// MaxRetries is the default retry budget per dispatch
	MaxRetries int
}

type PlatformConfig struct {
	// BaseURL of the platform API hosting the pipeline, sync, backup,
	// script and workflow engines
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type PollConfig struct {
	Timeout time.Duration
	// UserAgent sent on api_poll requests
	UserAgent string
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "streamweave"),
			Password: getEnv("DB_PASSWORD", "streamweave"),
			DBName:   getEnv("DB_NAME", "streamweave_core"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Scheduler: SchedulerConfig{
			TickInterval:    getEnvAsDuration("SCHEDULER_TICK_INTERVAL", time.Second),
			DispatchTimeout: getEnvAsDuration("SCHEDULER_DISPATCH_TIMEOUT", 30*time.Minute),
			MaxRetries:      getEnvAsInt("SCHEDULER_MAX_RETRIES", 0),
		},
		Platform: PlatformConfig{
			BaseURL: getEnv("PLATFORM_API_URL", "http://localhost:8080"),
			APIKey:  getEnv("PLATFORM_API_KEY", ""),
			Timeout: getEnvAsDuration("PLATFORM_API_TIMEOUT", 30*time.Second),
		},
		Poll: PollConfig{
			Timeout:   getEnvAsDuration("POLL_TIMEOUT", 30*time.Second),
			UserAgent: getEnv("POLL_USER_AGENT", "streamweave-scheduler/1.0"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func (c *Config) DatabaseURL() string {
	// If DATABASE_URL is set, use it directly
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		return databaseURL
	}

	// Otherwise, construct from individual components
	return "postgres://" + c.Database.User + ":" + c.Database.Password +
		"@" + c.Database.Host + ":" + c.Database.Port +
		"/" + c.Database.DBName + "?sslmode=" + c.Database.SSLMode
}
