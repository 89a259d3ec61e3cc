package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATA_DIR", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("TWITCH_BOT_USERNAME", "")
	t.Setenv("TWITCH_OAUTH_TOKEN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q, want data", cfg.DataDir)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATA_DIR", "/var/lib/tracker")
	t.Setenv("HTTP_ADDR", ":9999")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "/var/lib/tracker" || cfg.HTTPAddr != ":9999" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestValidateChatAuth(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateChatAuth(); err == nil {
		t.Error("empty creds passed validation")
	}
	cfg = &Config{TwitchBotUsername: "bot", TwitchOAuthToken: "oauth:xyz"}
	if err := cfg.ValidateChatAuth(); err != nil {
		t.Errorf("complete creds failed validation: %v", err)
	}
}
