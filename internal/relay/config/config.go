package config

import (
	"fmt"
	"time"

	"golang-signal-relay/pkg/config"
)

// Telegram holds transport credentials and destination identifiers.
type Telegram struct {
	BotToken        string        `mapstructure:"bot_token"`
	SourceChannelID int64         `mapstructure:"source_channel_id"`
	TargetGroupID   int64         `mapstructure:"target_group_id"`
	UsersGroupID    int64         `mapstructure:"users_group_id"`
	PollTimeout     int           `mapstructure:"poll_timeout"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
}

// Gemini holds the configuration for the Gemini API.
type Gemini struct {
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
}

// Prompt holds the AI prompt configuration.
type Prompt struct {
	System   string `mapstructure:"system"`
	Question string `mapstructure:"question"`
}

// Fetcher holds source fetch/convert configuration.
type Fetcher struct {
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
	MaxInlineChars int           `mapstructure:"max_inline_chars"`
}

// Decision holds the decision engine configuration. SettingsPath points at
// the operator-editable thresholds file, re-read on every evaluation.
type Decision struct {
	SettingsPath string `mapstructure:"settings_path"`
}

// Pipeline holds the listener-to-worker handoff configuration.
type Pipeline struct {
	QueueSize int `mapstructure:"queue_size"`
}

// Config holds the full configuration for the relay service.
type Config struct {
	App      config.App    `mapstructure:"app"`
	Logger   config.Logger `mapstructure:"logger"`
	Telegram Telegram      `mapstructure:"telegram"`
	Gemini   Gemini        `mapstructure:"gemini"`
	Prompt   Prompt        `mapstructure:"prompt"`
	Fetcher  Fetcher       `mapstructure:"fetcher"`
	Decision Decision      `mapstructure:"decision"`
	Pipeline Pipeline      `mapstructure:"pipeline"`
}

// Load loads the relay configuration from the given path and applies
// defaults for optional knobs.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Telegram.PollTimeout == 0 {
		cfg.Telegram.PollTimeout = 60
	}
	if cfg.Telegram.RetryDelay == 0 {
		cfg.Telegram.RetryDelay = 15 * time.Second
	}
	if cfg.Gemini.MaxRequestPerMinute == 0 {
		cfg.Gemini.MaxRequestPerMinute = 10
	}
	if cfg.Fetcher.HTTPTimeout == 0 {
		cfg.Fetcher.HTTPTimeout = 60 * time.Second
	}
	if cfg.Fetcher.ProbeTimeout == 0 {
		cfg.Fetcher.ProbeTimeout = 15 * time.Second
	}
	if cfg.Fetcher.MaxInlineChars == 0 {
		cfg.Fetcher.MaxInlineChars = 40000
	}
	if cfg.Pipeline.QueueSize == 0 {
		cfg.Pipeline.QueueSize = 64
	}
	return &cfg, nil
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.SourceChannelID == 0 {
		return fmt.Errorf("telegram.source_channel_id is required")
	}
	if c.Telegram.TargetGroupID == 0 {
		return fmt.Errorf("telegram.target_group_id is required")
	}
	return nil
}
