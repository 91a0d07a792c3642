package openai

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the OpenAI-compatible endpoint configuration. APIKey and
// BaseURL are required per spec.md §6; Model and HTTPTimeout have
// sane defaults so a bare-bones .env still boots.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	HTTPTimeout int // seconds
}

// NewConfigFromEnv loads Config from OPENAI_API_KEY / OPENAI_BASE_URL /
// OPENAI_MODEL, the env var names spec.md §6 fixes.
func NewConfigFromEnv() (*Config, error) {
	cfg := &Config{
		APIKey:      os.Getenv("OPENAI_API_KEY"),
		BaseURL:     os.Getenv("OPENAI_BASE_URL"),
		Model:       getEnvOrDefault("OPENAI_MODEL", "gpt-4o"),
		HTTPTimeout: getEnvIntOrDefault("OPENAI_HTTP_TIMEOUT", 300),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the API key, base URL and model are all non-empty.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("OPENAI_BASE_URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("OPENAI_MODEL cannot be empty")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}
