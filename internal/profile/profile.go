package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where bonsai stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// AI Configuration
	AIEnabled     bool    // BONSAI_AI_ENABLED
	AIProvider    string  // BONSAI_AI_PROVIDER (default: openai)
	AIAPIKey      string  // BONSAI_AI_API_KEY
	AIBaseURL     string  // BONSAI_AI_BASE_URL (default: https://api.openai.com/v1)
	AIModel       string  // BONSAI_AI_MODEL (default: gpt-4o-mini)
	AITimeout     time.Duration
	HighThreshold float64 // BONSAI_AI_CONFIDENCE_HIGH (default: 0.8)
	LowThreshold  float64 // BONSAI_AI_CONFIDENCE_LOW (default: 0.5)

	// Event publishing
	BrokerEndpoint string        // BONSAI_BROKER_ENDPOINT (empty disables publishing)
	EventRetention time.Duration // BONSAI_EVENT_RETENTION (default: 168h)
	SweepInterval  time.Duration // BONSAI_EVENT_SWEEP_INTERVAL (default: 1m)

	// Reminder scheduling
	ReminderPollInterval time.Duration // BONSAI_REMINDER_POLL_INTERVAL (default: 30s)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if AI is enabled and an API key or base URL is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.AIEnabled && (p.AIAPIKey != "" || p.AIBaseURL != "")
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.AIEnabled = os.Getenv("BONSAI_AI_ENABLED") == "true"
	p.AIProvider = getEnvOrDefault("BONSAI_AI_PROVIDER", "openai")
	p.AIAPIKey = os.Getenv("BONSAI_AI_API_KEY")
	p.AIBaseURL = getEnvOrDefault("BONSAI_AI_BASE_URL", "https://api.openai.com/v1")
	p.AIModel = getEnvOrDefault("BONSAI_AI_MODEL", "gpt-4o-mini")
	p.AITimeout = getDurationEnv("BONSAI_AI_TIMEOUT", 5*time.Second)
	p.HighThreshold = getFloatEnv("BONSAI_AI_CONFIDENCE_HIGH", 0.8)
	p.LowThreshold = getFloatEnv("BONSAI_AI_CONFIDENCE_LOW", 0.5)

	p.BrokerEndpoint = os.Getenv("BONSAI_BROKER_ENDPOINT")
	p.EventRetention = getDurationEnv("BONSAI_EVENT_RETENTION", 7*24*time.Hour)
	p.SweepInterval = getDurationEnv("BONSAI_EVENT_SWEEP_INTERVAL", time.Minute)
	p.ReminderPollInterval = getDurationEnv("BONSAI_REMINDER_POLL_INTERVAL", 30*time.Second)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported db driver: %s", p.Driver)
	}

	if p.HighThreshold <= p.LowThreshold {
		return errors.New("high confidence threshold must exceed low threshold")
	}

	if p.Driver == "sqlite" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			return errors.Wrap(err, "failed to check data dir")
		}
		p.Data = dataDir
		if p.DSN == "" {
			dbFile := fmt.Sprintf("bonsai_%s.db", p.Mode)
			p.DSN = filepath.Join(dataDir, dbFile)
		}
	} else if p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}

	return nil
}
