package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestApplyEnvOverridesDefaults(t *testing.T) {
	cfg := Default()
	err := applyEnv(&cfg, envFrom(map[string]string{
		"TASKDECK_API_URL":           "https://todo.example.com/api/",
		"TASKDECK_REMINDER_INTERVAL": "10",
		"TASKDECK_REFRESH_INTERVAL":  "2m",
		"TELEGRAM_TOKEN":             "tg",
		"TELEGRAM_CHAT_ID":           "12345",
	}))
	if err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if cfg.APIBaseURL != "https://todo.example.com/api" {
		t.Errorf("trailing slash not trimmed: %q", cfg.APIBaseURL)
	}
	if cfg.ReminderInterval != 10*time.Second {
		t.Errorf("expected 10s, got %v", cfg.ReminderInterval)
	}
	if cfg.RefreshInterval != 2*time.Minute {
		t.Errorf("expected 2m, got %v", cfg.RefreshInterval)
	}
	if cfg.TelegramChatID != 12345 {
		t.Errorf("expected chat id, got %d", cfg.TelegramChatID)
	}
	if cfg.ReminderGrace != 5*time.Minute {
		t.Errorf("untouched default changed: %v", cfg.ReminderGrace)
	}
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	for key, value := range map[string]string{
		"TASKDECK_HTTP_TIMEOUT": "soon",
		"TELEGRAM_CHAT_ID":      "me",
		"TASKDECK_REMINDER_GRACE": "-5",
	} {
		cfg := Default()
		if err := applyEnv(&cfg, envFrom(map[string]string{key: value})); err == nil {
			t.Errorf("expected error for %s=%q", key, value)
		}
	}
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskdeck.yaml")
	content := "api_url: http://remote:8000/api\nreminder_interval: 45s\nlisten_addr: \":9090\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TASKDECK_CONFIG", path)
	t.Setenv("TASKDECK_LISTEN_ADDR", ":7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBaseURL != "http://remote:8000/api" {
		t.Errorf("file value ignored: %q", cfg.APIBaseURL)
	}
	if cfg.ReminderInterval != 45*time.Second {
		t.Errorf("expected 45s, got %v", cfg.ReminderInterval)
	}
	if cfg.ListenAddr != ":7070" {
		t.Errorf("env must win over file, got %q", cfg.ListenAddr)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.TelegramChatID = 1
	if err := cfg.Validate(); err == nil {
		t.Error("chat id without token must fail")
	}
	cfg = Default()
	cfg.RefreshInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero refresh interval must fail")
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}
