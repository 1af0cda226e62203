package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8080"`
	CORSOrigins string `envconfig:"CORS_ORIGINS"`

	// Storage
	DBPath       string `envconfig:"DB_PATH" default:"nabd.db"`
	DataDir      string `envconfig:"DATA_DIR" default:"data/objects"`
	TipsSeedPath string `envconfig:"TIPS_SEED_PATH"`

	// OpenAI (optional; the assistant degrades to canned replies without it)
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel  string `envconfig:"OPENAI_MODEL" default:"gpt-4o"`

	// Auth
	AuthMode  string `envconfig:"AUTH_MODE" default:"jwt"` // "jwt" or "none"
	JWTSecret string `envconfig:"JWT_SECRET"`

	// Rate limits (per-route-group fixed windows)
	APILimitMax       int           `envconfig:"API_LIMIT_MAX" default:"100"`
	APILimitWindow    time.Duration `envconfig:"API_LIMIT_WINDOW" default:"1m"`
	AuthLimitMax      int           `envconfig:"AUTH_LIMIT_MAX" default:"5"`
	AuthLimitWindow   time.Duration `envconfig:"AUTH_LIMIT_WINDOW" default:"15m"`
	ChatLimitMax      int           `envconfig:"CHAT_LIMIT_MAX" default:"20"`
	ChatLimitWindow   time.Duration `envconfig:"CHAT_LIMIT_WINDOW" default:"1m"`
	UploadLimitMax    int           `envconfig:"UPLOAD_LIMIT_MAX" default:"10"`
	UploadLimitWindow time.Duration `envconfig:"UPLOAD_LIMIT_WINDOW" default:"1m"`
}

// OpenAIEnabled returns true if an API key is configured.
func (c *Config) OpenAIEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// Validate checks configuration combinations that envconfig tags cannot express.
func (c *Config) Validate() error {
	if c.AuthMode == "jwt" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=jwt")
	}
	if c.AuthMode != "jwt" && c.AuthMode != "none" {
		return fmt.Errorf("unknown AUTH_MODE %q, expected jwt or none", c.AuthMode)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
