package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Store backend selectors
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
	}

	// Message store configuration
	Store struct {
		// Backend selects the store implementation: memory, postgres or redis
		Backend string

		Postgres struct {
			Host     string
			Port     string
			User     string
			Password string
			Name     string
			SSLMode  string
			MaxConns int
		}

		Redis struct {
			Addr     string
			Password string
			DB       int
		}
	}

	// Chat relay settings
	Chat struct {
		// SendBuffer is the per-connection outbound queue length
		SendBuffer int
		// MaxMessageSize bounds inbound frames (bytes)
		MaxMessageSize int64
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Cache settings (export response cache)
	Cache struct {
		Enabled     bool
		TTL         time.Duration
		MaxSize     int
		PurgeWindow time.Duration
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables.
// Uses singleton pattern to ensure only one instance exists.
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		instance.Server.Port = getEnvString("PORT", "8080")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)

		instance.Store.Backend = getEnvString("STORE_BACKEND", StoreMemory)
		instance.Store.Postgres.Host = getEnvString("DB_HOST", "localhost")
		instance.Store.Postgres.Port = getEnvString("DB_PORT", "5432")
		instance.Store.Postgres.User = getEnvString("DB_USER", "postgres")
		instance.Store.Postgres.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Store.Postgres.Name = getEnvString("DB_NAME", "support-chat")
		instance.Store.Postgres.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Store.Postgres.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
		instance.Store.Redis.Addr = getEnvString("REDIS_ADDR", "localhost:6379")
		instance.Store.Redis.Password = getEnvString("REDIS_PASSWORD", "")
		instance.Store.Redis.DB = getEnvInt("REDIS_DB", 0)

		instance.Chat.SendBuffer = getEnvInt("CHAT_SEND_BUFFER", 256)
		instance.Chat.MaxMessageSize = getEnvInt64("CHAT_MAX_MESSAGE_SIZE", 8<<10) // 8KB

		instance.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 10))
		instance.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 20)
		instance.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})

		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		instance.Cache.Enabled = getEnvBool("CACHE_ENABLED", true)
		instance.Cache.TTL = getEnvDuration("CACHE_TTL", 30*time.Second)
		instance.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 500)
		instance.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 5*time.Minute)
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
