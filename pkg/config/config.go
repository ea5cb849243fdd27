package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Slots     SlotsConfig
	Reminders RemindersConfig
	Analytics AnalyticsConfig
	Notify    NotifyConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SlotsConfig tunes the slot resolver.
type SlotsConfig struct {
	DefaultGranularity time.Duration
	MaxRangeDays       int
	CacheTTL           time.Duration
}

// RemindersConfig governs the reminder scanner and dispatcher.
type RemindersConfig struct {
	Enabled           bool
	ScanInterval      time.Duration
	RetryWindow       time.Duration
	DispatchTimeout   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
	RetryDelay        time.Duration
}

// AnalyticsConfig governs cache behaviour for rollup reads.
type AnalyticsConfig struct {
	CacheTTL time.Duration
}

// NotifyConfig points at the external notification transport.
type NotifyConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Slots = SlotsConfig{
		DefaultGranularity: parseDuration(v.GetString("SLOTS_DEFAULT_GRANULARITY"), time.Hour),
		MaxRangeDays:       v.GetInt("SLOTS_MAX_RANGE_DAYS"),
		CacheTTL:           parseDuration(v.GetString("SLOTS_CACHE_TTL"), 30*time.Second),
	}

	cfg.Reminders = RemindersConfig{
		Enabled:           v.GetBool("ENABLE_REMINDERS"),
		ScanInterval:      parseDuration(v.GetString("REMINDERS_SCAN_INTERVAL"), time.Minute),
		RetryWindow:       parseDuration(v.GetString("REMINDERS_RETRY_WINDOW"), 15*time.Minute),
		DispatchTimeout:   parseDuration(v.GetString("REMINDERS_DISPATCH_TIMEOUT"), 5*time.Second),
		WorkerConcurrency: v.GetInt("REMINDERS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("REMINDERS_WORKER_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("REMINDERS_RETRY_DELAY"), time.Second),
	}

	cfg.Analytics = AnalyticsConfig{
		CacheTTL: parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Notify = NotifyConfig{
		WebhookURL: v.GetString("NOTIFY_WEBHOOK_URL"),
		Timeout:    parseDuration(v.GetString("NOTIFY_TIMEOUT"), 5*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "campuspandit_scheduling")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SLOTS_DEFAULT_GRANULARITY", "1h")
	v.SetDefault("SLOTS_MAX_RANGE_DAYS", 60)
	v.SetDefault("SLOTS_CACHE_TTL", "30s")

	v.SetDefault("ENABLE_REMINDERS", true)
	v.SetDefault("REMINDERS_SCAN_INTERVAL", "1m")
	v.SetDefault("REMINDERS_RETRY_WINDOW", "15m")
	v.SetDefault("REMINDERS_DISPATCH_TIMEOUT", "5s")
	v.SetDefault("REMINDERS_WORKER_CONCURRENCY", 2)
	v.SetDefault("REMINDERS_WORKER_RETRIES", 3)
	v.SetDefault("REMINDERS_RETRY_DELAY", "1s")

	v.SetDefault("ANALYTICS_CACHE_TTL", "10m")

	v.SetDefault("NOTIFY_WEBHOOK_URL", "")
	v.SetDefault("NOTIFY_TIMEOUT", "5s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
