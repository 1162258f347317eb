package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	// Location is the calendar convention used for monthly report windows.
	Location   *time.Location
	HTTP       HTTPConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Outbox     OutboxConfig
	Context    ContextConfig
	Logger     LoggerConfig
	Migrations MigrationsConfig
	Telegram   TelegramConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxConn      int
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type OutboxConfig struct {
	Path         string
	SyncInterval time.Duration
	MaxRetry     int
	BatchSize    int
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
	// File enables a rotated log file in addition to stdout.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type MigrationsConfig struct {
	Enabled bool
}

type TelegramConfig struct {
	BotToken       string
	BotUsername    string
	WebhookSecret  string
	APIBaseURL     string
	LinkTTL        time.Duration
	UpdateTTL      time.Duration
	RequestTimeout time.Duration
	BreakerTimeout time.Duration
}

// Enabled reports whether outbound Telegram calls can be made.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != ""
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	tzName := getString("APP_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE %q: %w", tzName, err)
	}

	cfg := &Config{
		AppName:     getString("APP_NAME", "taskpulse"),
		Environment: getString("APP_ENV", "development"),
		Location:    loc,
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:      getInt("SERVER_MAX_CONN", 0),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "taskpulse"),
			User:            getString("DB_USER", "taskpulse"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: getString("JWT_ISSUER", "taskpulse"),
		},
		Outbox: OutboxConfig{
			Path:         getString("BOLTDB_PATH", "./data/outbox.db"),
			SyncInterval: getDuration("SYNC_INTERVAL_SECONDS", 30*time.Second),
			MaxRetry:     getInt("MAX_RETRY_ATTEMPTS", 3),
			BatchSize:    getInt("OUTBOX_BATCH_SIZE", 50),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:      getString("LOG_LEVEL", "info"),
			Encoding:   getString("LOG_ENCODING", "json"),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  getInt("LOG_FILE_MAX_SIZE_MB", 10),
			MaxBackups: getInt("LOG_FILE_MAX_BACKUPS", 3),
			MaxAgeDays: getInt("LOG_FILE_MAX_AGE_DAYS", 28),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
		},
		Telegram: TelegramConfig{
			BotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
			BotUsername:    os.Getenv("TELEGRAM_BOT_USERNAME"),
			WebhookSecret:  os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
			APIBaseURL:     getString("TELEGRAM_API_URL", "https://api.telegram.org"),
			LinkTTL:        getDuration("TELEGRAM_LINK_TTL", 15*time.Minute),
			UpdateTTL:      getDuration("TELEGRAM_UPDATE_TTL", 24*time.Hour),
			RequestTimeout: getDuration("TELEGRAM_REQUEST_TIMEOUT", 5*time.Second),
			BreakerTimeout: getDuration("TELEGRAM_BREAKER_TIMEOUT", 30*time.Second),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg.Database)
	}

	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// DSN returns the explicit URL or one assembled from the discrete fields.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return buildPostgresURL(d)
}

func buildPostgresURL(db DatabaseConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		db.User,
		db.Password,
		db.Host,
		db.Port,
		db.Name,
		db.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
