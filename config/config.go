// Package config loads process configuration from environment variables and
// manages the mutable settings document (config.json) that holds the channel
// name and the spin thresholds. Env config is fixed for the process lifetime;
// the settings document is re-read from disk on every access because chat
// commands can change thresholds while a computation is in flight.
package config

import (
	"fmt"
	"os"
)

// Default thresholds applied when the settings document does not carry them.
const (
	DefaultBitThreshold     = 1000
	DefaultGiftSubThreshold = 3
)

// Config is the process-level configuration read once at startup.
type Config struct {
	// Storage
	DataDir string

	// HTTP
	HTTPAddr string

	// Twitch chat credentials. Both empty means the bot connects anonymously
	// (read-only), which is enough for tracking.
	TwitchBotUsername string
	TwitchOAuthToken  string
}

// Load reads environment variables and applies defaults. Missing Twitch
// credentials do not fail the load; the chat listener falls back to an
// anonymous connection.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DataDir = os.Getenv("DATA_DIR")
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.TwitchBotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.TwitchOAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")

	return cfg, nil
}

// ValidateChatAuth checks that authenticated chat credentials are complete.
// Call it only when an authenticated (non-anonymous) connection is required.
func (c *Config) ValidateChatAuth() error {
	if c.TwitchBotUsername == "" || c.TwitchOAuthToken == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_BOT_USERNAME, TWITCH_OAUTH_TOKEN")
	}
	return nil
}
