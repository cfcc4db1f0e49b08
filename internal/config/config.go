package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
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

	RedisAddr     string
	RedisPassword string

	QueueWorkers        int
	QueueMaxAttempts    int
	QueueInitialBackoff time.Duration
	QueueJobTimeout     time.Duration

	SchedulerInterval       time.Duration
	PoolDistributionDay     int
	RegistrationRateLimit   int
	RegistrationRateWindow  time.Duration
	DisableStartupMigration bool
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "trinet"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "trinet"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		QueueWorkers:        getenvInt("QUEUE_WORKERS", 1),
		QueueMaxAttempts:    getenvInt("QUEUE_MAX_ATTEMPTS", 3),
		QueueInitialBackoff: getenvDuration("QUEUE_INITIAL_BACKOFF", time.Second),
		QueueJobTimeout:     getenvDuration("QUEUE_JOB_TIMEOUT", 2*time.Minute),

		SchedulerInterval:       getenvDuration("SCHEDULER_INTERVAL", time.Minute),
		PoolDistributionDay:     getenvInt("POOL_DISTRIBUTION_DAY", 5),
		RegistrationRateLimit:   getenvInt("REGISTRATION_RATE_LIMIT", 30),
		RegistrationRateWindow:  getenvDuration("REGISTRATION_RATE_WINDOW", time.Minute),
		DisableStartupMigration: getenvBool("DISABLE_STARTUP_MIGRATION", false),
	}
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewPlanConfigHolder),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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
