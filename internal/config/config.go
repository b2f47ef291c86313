package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	// HTTP server
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	Env        string `env:"ENV" envDefault:"production"` // "development" or "production"

	// Google OAuth2
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID,required"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET,required"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL,required"`

	// Database
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/inboxdeck.db"`

	// IMAP
	IMAPServer      string        `env:"IMAP_SERVER" envDefault:"imap.gmail.com:993"`
	IMAPDialTimeout time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"10s"`
	IMAPAuthTimeout time.Duration `env:"IMAP_AUTH_TIMEOUT" envDefault:"30s"`
	FetchLimit      int           `env:"FETCH_LIMIT" envDefault:"50"`

	// Security
	EncryptionKey string `env:"ENCRYPTION_KEY,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// IsDevelopment returns true when running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate encryption key length (32 bytes for AES-256)
	if len(cfg.EncryptionKey) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes, got %d", len(cfg.EncryptionKey))
	}

	if cfg.FetchLimit < 1 {
		return nil, fmt.Errorf("FETCH_LIMIT must be positive, got %d", cfg.FetchLimit)
	}

	return cfg, nil
}
