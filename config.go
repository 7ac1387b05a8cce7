package aura

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/shahryaralam688/AuraAI/shared"
)

// Config holds the fixed endpoint URLs and the session tuning knobs.
type Config struct {
	// BackendURL is the first-party service that issues ephemeral credentials.
	BackendURL string `yaml:"backend_url"`
	// NegotiationURL is the realtime offer/answer endpoint.
	NegotiationURL string `yaml:"negotiation_url"`
	Model          string `yaml:"model"`
	// WebhookURL receives every lifecycle/telemetry event. Empty disables it.
	WebhookURL string `yaml:"webhook_url"`

	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	BackoffUnit          time.Duration `yaml:"backoff_unit"`
	BackoffCap           time.Duration `yaml:"backoff_cap"`
	// GraceDelay is how long an ICE "disconnected" signal may persist before
	// a reconnect gets scheduled. Transient renegotiation blips stay quiet.
	GraceDelay time.Duration `yaml:"grace_delay"`
	// SettleDelay separates media-session teardown from the redial.
	SettleDelay time.Duration `yaml:"settle_delay"`

	// Voice requested via the post-connect session.update frame. Empty skips it.
	Voice string `yaml:"voice"`
}

func DefaultConfig() *Config {
	return &Config{
		NegotiationURL:       "https://api.openai.com/v1/realtime",
		Model:                "gpt-realtime",
		MaxReconnectAttempts: 3,
		BackoffUnit:          time.Second,
		BackoffCap:           30 * time.Second,
		GraceDelay:           2 * time.Second,
		SettleDelay:          200 * time.Millisecond,
	}
}

// LoadConfig builds a Config from defaults, then a .env file (if present),
// then the process environment. Environment variables take precedence.
func LoadConfig() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	cfg := DefaultConfig()
	var err error
	if cfg.BackendURL, err = shared.Getenv(shared.GetenvString, "AURA_BACKEND_URL", true, ""); err != nil {
		return nil, err
	}
	if cfg.NegotiationURL, err = shared.Getenv(shared.GetenvString, "AURA_NEGOTIATION_URL", false, cfg.NegotiationURL); err != nil {
		return nil, err
	}
	if cfg.Model, err = shared.Getenv(shared.GetenvString, "AURA_MODEL", false, cfg.Model); err != nil {
		return nil, err
	}
	if cfg.WebhookURL, err = shared.Getenv(shared.GetenvString, "AURA_WEBHOOK_URL", false, ""); err != nil {
		return nil, err
	}
	if cfg.Voice, err = shared.Getenv(shared.GetenvString, "AURA_VOICE", false, ""); err != nil {
		return nil, err
	}
	if cfg.MaxReconnectAttempts, err = shared.Getenv(shared.GetenvInt, "AURA_MAX_RECONNECT_ATTEMPTS", false, cfg.MaxReconnectAttempts); err != nil {
		return nil, err
	}
	if cfg.GraceDelay, err = shared.Getenv(shared.GetenvDuration, "AURA_GRACE_DELAY", false, cfg.GraceDelay); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadConfigFile reads a YAML config file on top of the defaults.
func LoadConfigFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return shared.ErrNoBackendURL
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max_reconnect_attempts must be >= 0, got %d", c.MaxReconnectAttempts)
	}
	if c.BackoffUnit <= 0 {
		return fmt.Errorf("backoff_unit must be positive, got %s", c.BackoffUnit)
	}
	return nil
}

func (c *Config) Backoff() BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts: c.MaxReconnectAttempts,
		Unit:        c.BackoffUnit,
		Cap:         c.BackoffCap,
	}
}

// Sink returns the configured event sink: a webhook sink when WebhookURL is
// set, otherwise a NopSink.
func (c *Config) Sink(logger shared.LoggerAdapter) EventSink {
	if c.WebhookURL == "" {
		return NopSink{}
	}
	return NewWebhookSink(logger, c.WebhookURL)
}
