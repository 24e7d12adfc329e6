package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backends
const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

// Config holds every setting the server reads from the environment.
type Config struct {
	Port          string
	Storage       string
	MongoURI      string
	MongoDatabase string

	RedisAddress     string
	RedisPassword    string
	RedisDB          int
	IssueLimitPrefix string
	IssueRateLimit   int
	IssueRateWindow  time.Duration

	JWTSecret   string
	TokenTTL    time.Duration
	Environment string
	Domain      string
	CORSOrigins []string
	LogLevel    string
}

// Production reports whether cookies must be issued for HTTPS cross-site use.
func (c *Config) Production() bool {
	return c.Environment == "production"
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("STORAGE", StorageMongo)
	v.SetDefault("MONGODB_DATABASE", "civicsync")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_QUEUE_FOR_ISSUE_LIMIT", "issue-limit")
	v.SetDefault("ISSUE_RATE_LIMIT", 10)
	v.SetDefault("ISSUE_RATE_WINDOW", 24*time.Hour)
	v.SetDefault("TOKEN_TTL", 72*time.Hour)
	v.SetDefault("GO_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		Port:             v.GetString("PORT"),
		Storage:          strings.ToLower(v.GetString("STORAGE")),
		MongoURI:         v.GetString("MONGODB_URI"),
		MongoDatabase:    v.GetString("MONGODB_DATABASE"),
		RedisAddress:     v.GetString("REDIS_ADDRESS"),
		RedisPassword:    v.GetString("REDIS_PASSWORD"),
		RedisDB:          v.GetInt("REDIS_DB"),
		IssueLimitPrefix: v.GetString("REDIS_QUEUE_FOR_ISSUE_LIMIT"),
		IssueRateLimit:   v.GetInt("ISSUE_RATE_LIMIT"),
		IssueRateWindow:  v.GetDuration("ISSUE_RATE_WINDOW"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		TokenTTL:         v.GetDuration("TOKEN_TTL"),
		Environment:      v.GetString("GO_ENV"),
		Domain:           v.GetString("DOMAIN"),
		CORSOrigins:      splitList(v.GetString("CORS_ORIGINS")),
		LogLevel:         v.GetString("LOG_LEVEL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.Storage {
	case StorageMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required when STORAGE=mongo"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE %q", c.Storage))
	}
	if c.IssueRateLimit < 0 {
		errs = append(errs, errors.New("ISSUE_RATE_LIMIT must not be negative"))
	}
	if c.IssueRateLimit > 0 && c.IssueRateWindow <= 0 {
		errs = append(errs, errors.New("ISSUE_RATE_WINDOW must be positive"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
