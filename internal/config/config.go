package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendRedis  = "redis"
	BackendSQL    = "sql"
	BackendMemory = "memory"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                  string
	Port                 string
	LogLevel             string
	StoreBackend         string
	RedisURL             string
	StoreNamespace       string
	DatabaseURL          string
	CredentialScheme     string
	FrontendURLEndsWith  string
	DevPassword          string
	AllowCrossSiteDev    bool
	MessageRatePerMinute int
	ConversationCache    bool
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", BackendRedis)
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("STORE_NAMESPACE", "motorhub:")
	v.SetDefault("CREDENTIAL_SCHEME", "bcrypt")
	v.SetDefault("MESSAGE_RATE_PER_MINUTE", 30)
	v.SetDefault("CONVERSATION_CACHE", true)

	cfg := &Config{
		Env:                  v.GetString("APP_ENV"),
		Port:                 v.GetString("PORT"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		StoreBackend:         strings.ToLower(strings.TrimSpace(v.GetString("STORE_BACKEND"))),
		RedisURL:             v.GetString("REDIS_URL"),
		StoreNamespace:       v.GetString("STORE_NAMESPACE"),
		DatabaseURL:          v.GetString("DATABASE_URL"),
		CredentialScheme:     v.GetString("CREDENTIAL_SCHEME"),
		FrontendURLEndsWith:  v.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:          v.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:    v.GetBool("ALLOW_CROSS_SITE_DEV"),
		MessageRatePerMinute: v.GetInt("MESSAGE_RATE_PER_MINUTE"),
		ConversationCache:    v.GetBool("CONVERSATION_CACHE"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("config: REDIS_URL is required for the %s backend", BackendRedis)
		}
	case BackendSQL:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the %s backend", BackendSQL)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.MessageRatePerMinute < 0 {
		return fmt.Errorf("config: MESSAGE_RATE_PER_MINUTE must not be negative")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SetupLogging configures the global zerolog logger: console output outside
// production, JSON otherwise.
func (c *Config) SetupLogging() {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if !c.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
