package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Logger   LoggerConfig
	Match    MatchConfig
	Telegram TelegramConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name string
	Host string
	Port string
}

// PostgresConfig holds the DB connection values.
type PostgresConfig struct {
	DSN           string
	RunMigrations bool
}

// RedisConfig holds the Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig defines the anonymous identity token parameters.
type AuthConfig struct {
	JWTSecret    string
	TokenTTLHour int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// MatchConfig tunes the matchmaking engine.
type MatchConfig struct {
	BatchSize              int
	SweepIntervalMs        int
	ProposalTTLMs          int
	AutoRequeueOnRejection bool
}

// TelegramConfig enables the Telegram session transport when a token is set.
type TelegramConfig struct {
	BotToken string
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name: getEnv("APP_NAME", "pairgogo-backend"),
			Host: getEnv("APP_HOST", "0.0.0.0"),
			Port: getEnv("APP_PORT", "8080"),
		},
		Postgres: PostgresConfig{
			DSN:           os.Getenv("POSTGRES_DSN"),
			RunMigrations: getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("AUTH_JWT_SECRET", "dev-secret"),
			TokenTTLHour: getEnvAsInt("AUTH_TOKEN_TTL_HOURS", 72),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Match: MatchConfig{
			BatchSize:              getEnvAsInt("MATCH_BATCH_SIZE", 1000),
			SweepIntervalMs:        getEnvAsInt("MATCH_SWEEP_INTERVAL_MS", 1000),
			ProposalTTLMs:          getEnvAsInt("MATCH_PROPOSAL_TTL_MS", 120000),
			AutoRequeueOnRejection: getEnvAsBool("AUTO_REQUEUE_ON_REJECTION", true),
		},
		Telegram: TelegramConfig{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		},
	}

	if cfg.Match.BatchSize <= 0 {
		return nil, fmt.Errorf("MATCH_BATCH_SIZE must be positive, got %d", cfg.Match.BatchSize)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// SweepInterval returns the scheduler tick period.
func (m MatchConfig) SweepInterval() time.Duration {
	return time.Duration(m.SweepIntervalMs) * time.Millisecond
}

// ProposalTTL returns the lifetime of a pending proposal.
func (m MatchConfig) ProposalTTL() time.Duration {
	return time.Duration(m.ProposalTTLMs) * time.Millisecond
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
