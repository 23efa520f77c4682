package config

import (
	"fmt"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"musobuddy/core/logger"
)

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type GoogleAPIConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// WebhookCallbackURL is the public HTTPS endpoint Google pushes
	// channel notifications to.
	WebhookCallbackURL string
	// WebhookToken is the shared verification token echoed back in
	// X-Goog-Channel-Token headers.
	WebhookToken string
}

type SyncConfig struct {
	// Timezone used when combining booking dates with times of day.
	Timezone string
	// Cron specs for the asynq scheduler.
	ChannelRenewCron string
	PeriodicSyncCron string
}

type LogConfig struct {
	Level string
	JSON  bool
}

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	GoogleAPI GoogleAPIConfig
	Sync      SyncConfig
	Log       LogConfig
}

var (
	instance *Config
	mu       sync.RWMutex
)

// Load reads .env (if present) and the environment into the process config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Info("Config:Load:NoDotEnv", "reason", err.Error())
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 7070)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "musobuddy")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SYNC_TIMEZONE", "Europe/London")
	v.SetDefault("SYNC_CHANNEL_RENEW_CRON", "@every 1h")
	v.SetDefault("SYNC_PERIODIC_CRON", "@every 6h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_JSON", false)

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
		},
		GoogleAPI: GoogleAPIConfig{
			ClientID:           v.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret:       v.GetString("GOOGLE_CLIENT_SECRET"),
			RedirectURI:        v.GetString("GOOGLE_REDIRECT_URI"),
			WebhookCallbackURL: v.GetString("GOOGLE_WEBHOOK_CALLBACK_URL"),
			WebhookToken:       v.GetString("GOOGLE_WEBHOOK_TOKEN"),
		},
		Sync: SyncConfig{
			Timezone:         v.GetString("SYNC_TIMEZONE"),
			ChannelRenewCron: v.GetString("SYNC_CHANNEL_RENEW_CRON"),
			PeriodicSyncCron: v.GetString("SYNC_PERIODIC_CRON"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
			JSON:  v.GetBool("LOG_JSON"),
		},
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	mu.Lock()
	instance = cfg
	mu.Unlock()

	return cfg, nil
}

// Get returns the loaded config; panics if Load was never called.
func Get() *Config {
	cfg, ok := GetSafe()
	if !ok {
		panic("config: Get called before Load")
	}
	return cfg
}

// GetSafe returns the loaded config and whether it is initialized.
func GetSafe() (*Config, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return instance, instance != nil
}
