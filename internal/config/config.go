package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey   string        `env:"GOOGLE_GEMINI_KEY"`
	GeminiModel    string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	UserDBPath     string        `env:"USER_DB_FILE" envDefault:"user_database.json"`
	StoreDriver    string        `env:"USER_STORE_DRIVER" envDefault:"json"`
	HTTPPort       string        `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"INFO"`
	SessionSecret  string        `env:"SESSION_SECRET"`
	SessionTimeout time.Duration `env:"SESSION_TIMEOUT" envDefault:"30m"`
	MaxUploadBytes int64         `env:"MAX_UPLOAD_BYTES" envDefault:"33554432"`
}

// LoadConfig reads an optional .env file and then the process environment.
// It reports whether a .env file was found so the caller can log it once a
// logger exists.
func LoadConfig() (*Config, bool, error) {
	dotenv := godotenv.Load() == nil

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, dotenv, fmt.Errorf("failed to parse environment: %w", err)
	}

	switch cfg.StoreDriver {
	case "json", "sqlite", "bolt":
	default:
		return nil, dotenv, fmt.Errorf("unsupported USER_STORE_DRIVER %q (want json, sqlite or bolt)", cfg.StoreDriver)
	}
	if cfg.SessionTimeout <= 0 {
		return nil, dotenv, fmt.Errorf("SESSION_TIMEOUT must be positive, got %s", cfg.SessionTimeout)
	}

	return &cfg, dotenv, nil
}
