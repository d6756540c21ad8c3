// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jason-s-yu/quizdesk/internal/cache"
	"github.com/sirupsen/logrus"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds process settings read from the environment.
type Config struct {
	Port     string
	Store    string
	LogLevel logrus.Level

	DatabaseURL string

	RedisAddr     string
	RedisDB       int
	GamesChannel  string
	MutationQueue string

	TemplateDBPath string

	NotifyDismiss             time.Duration
	RegistrationNotifyDismiss time.Duration
	SubscribeRetry            time.Duration

	HistorianBatchSize int
	HistorianFlush     time.Duration
}

// Load reads the environment. Unset or malformed values fall back to
// defaults.
func Load() Config {
	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	return Config{
		Port:     getEnv("PORT", "8080"),
		Store:    getEnv("STORE", StorePostgres),
		LogLevel: level,

		DatabaseURL: databaseURL(),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		GamesChannel:  getEnv("GAMES_CHANNEL", cache.DefaultChannel),
		MutationQueue: getEnv("MUTATION_QUEUE", cache.DefaultQueueName),

		TemplateDBPath: getEnv("TEMPLATE_DB_PATH", "quizdesk-templates.db"),

		NotifyDismiss:             getEnvDuration("NOTIFY_DISMISS", 3*time.Second),
		RegistrationNotifyDismiss: getEnvDuration("REGISTRATION_NOTIFY_DISMISS", 5*time.Second),
		SubscribeRetry:            getEnvDuration("SUBSCRIBE_RETRY", 2*time.Second),

		HistorianBatchSize: getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlush:     time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
	}
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

// databaseURL prefers DATABASE_URL and otherwise assembles one from the
// POSTGRES_* and PG_* parts.
func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		getEnv("POSTGRES_USER", "postgres"),
		os.Getenv("POSTGRES_PASSWORD"),
		getEnv("PG_HOST", "localhost"),
		getEnv("PG_PORT", "5432"),
		getEnv("PG_DATABASE", "quizdesk"),
	)
}

func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}

// getEnvDuration accepts Go duration syntax ("3s", "500ms").
func getEnvDuration(key string, defVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defVal
	}
	return d
}
