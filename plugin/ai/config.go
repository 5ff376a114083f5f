package ai

import (
	"time"

	"github.com/pkg/errors"

	"github.com/bonsaihq/bonsai/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	Enabled bool

	Provider string // openai, deepseek, ollama
	Model    string // gpt-4o-mini
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Enabled: p.IsAIEnabled(),
	}

	if !cfg.Enabled {
		return cfg
	}

	cfg.Provider = p.AIProvider
	cfg.Model = p.AIModel
	cfg.APIKey = p.AIAPIKey
	cfg.BaseURL = p.AIBaseURL
	cfg.Timeout = p.AITimeout
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Provider == "" {
		return errors.New("LLM provider is required")
	}

	if c.Provider != "ollama" && c.APIKey == "" {
		return errors.New("LLM API key is required")
	}

	if c.Model == "" {
		return errors.New("LLM model is required")
	}

	return nil
}
