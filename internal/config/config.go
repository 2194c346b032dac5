// Package config loads service configuration from YAML with environment
// overrides. Provider API keys are optional at boot; endpoints that need a
// missing key answer with a configuration error instead.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no config path is given.
const DefaultPath = "config.yaml"

// Config is the full service configuration.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	// Store selects persistence: memory, redis, or postgres.
	Store         string `yaml:"store"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	DatabaseURL   string `yaml:"databaseURL"`

	GroqAPIKey  string `yaml:"groqAPIKey"`
	GroqBaseURL string `yaml:"groqBaseURL"`
	ExaAPIKey   string `yaml:"exaAPIKey"`
	ExaBaseURL  string `yaml:"exaBaseURL"`

	Minio MinioConfig `yaml:"minio"`

	RateLimit RateLimitConfig `yaml:"rateLimit"`
}

// MinioConfig configures the optional visual archive. Empty endpoint
// disables archiving.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"useSSL"`
}

// RateLimitConfig configures the per-IP fixed window. Zero limit disables
// rate limiting.
type RateLimitConfig struct {
	Limit         int `yaml:"limit"`
	WindowSeconds int `yaml:"windowSeconds"`
}

// Load reads config from path (defaults to config.yaml). A missing file is
// not an error; the service can run entirely from environment variables.
func Load(path string) (Config, error) {
	cfg := Config{
		Port:     "8080",
		LogLevel: "info",
		Store:    "memory",
		Minio:    MinioConfig{Bucket: "mindcoach-visuals"},
		RateLimit: RateLimitConfig{
			Limit:         60,
			WindowSeconds: 60,
		},
	}
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	// Environment overrides.
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("STORE"); v != "" {
		cfg.Store = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		cfg.GroqAPIKey = v
	}
	if v := os.Getenv("GROQ_BASE_URL"); v != "" {
		cfg.GroqBaseURL = v
	}
	if v := os.Getenv("EXA_API_KEY"); v != "" {
		cfg.ExaAPIKey = v
	}
	if v := os.Getenv("EXA_BASE_URL"); v != "" {
		cfg.ExaBaseURL = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.Minio.Endpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.Minio.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.Minio.SecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.Minio.Bucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		cfg.Minio.UseSSL = v == "true" || v == "1"
	}
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Limit = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.WindowSeconds = n
		}
	}

	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or PORT)")
	}
	switch cfg.Store {
	case "memory":
	case "redis":
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required for the redis store (set REDIS_ADDR)")
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return errors.New("config: databaseURL is required for the postgres store (set DATABASE_URL)")
		}
	default:
		return fmt.Errorf("config: unknown store %q (memory, redis, postgres)", cfg.Store)
	}
	if cfg.RateLimit.Limit > 0 && cfg.RateLimit.WindowSeconds <= 0 {
		return errors.New("config: rateLimit.windowSeconds must be positive when rate limiting is enabled")
	}
	return nil
}
