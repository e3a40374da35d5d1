package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config keeps runtime settings for the engine and its adapters.
type Config struct {
	APIBaseURL       string        `yaml:"api_url"`
	Token            string        `yaml:"token"`
	DatabaseURL      string        `yaml:"database_url"`
	ReminderInterval time.Duration `yaml:"reminder_interval"`
	RefreshInterval  time.Duration `yaml:"refresh_interval"`
	ReminderGrace    time.Duration `yaml:"reminder_grace"`
	HTTPTimeout      time.Duration `yaml:"http_timeout"`
	ListenAddr       string        `yaml:"listen_addr"`
	TelegramToken    string        `yaml:"telegram_token"`
	TelegramChatID   int64         `yaml:"telegram_chat_id"`
	LogLevel         string        `yaml:"log_level"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		APIBaseURL:       "http://localhost:5000/api",
		DatabaseURL:      "taskdeck.db",
		ReminderInterval: 30 * time.Second,
		RefreshInterval:  60 * time.Second,
		ReminderGrace:    5 * time.Minute,
		HTTPTimeout:      15 * time.Second,
		LogLevel:         "info",
	}
}

// Load starts from Default, overlays the YAML file named by TASKDECK_CONFIG (if any)
// and finally the environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("TASKDECK_CONFIG")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("TASKDECK_API_URL is required")
	}
	if c.ReminderInterval <= 0 {
		return fmt.Errorf("reminder interval must be positive")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive")
	}
	if c.TelegramChatID != 0 && c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_CHAT_ID needs TELEGRAM_TOKEN")
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		d, err := parseInterval(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("TASKDECK_API_URL", &cfg.APIBaseURL)
	str("TASKDECK_TOKEN", &cfg.Token)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("TASKDECK_LISTEN_ADDR", &cfg.ListenAddr)
	str("TELEGRAM_TOKEN", &cfg.TelegramToken)
	str("TASKDECK_LOG_LEVEL", &cfg.LogLevel)

	for key, dst := range map[string]*time.Duration{
		"TASKDECK_REMINDER_INTERVAL": &cfg.ReminderInterval,
		"TASKDECK_REFRESH_INTERVAL":  &cfg.RefreshInterval,
		"TASKDECK_REMINDER_GRACE":    &cfg.ReminderGrace,
		"TASKDECK_HTTP_TIMEOUT":      &cfg.HTTPTimeout,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}

	if v := strings.TrimSpace(getenv("TELEGRAM_CHAT_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return nil
}

// parseInterval accepts Go durations ("45s") and bare seconds ("30").
func parseInterval(raw string) (time.Duration, error) {
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative interval %q", raw)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q", raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative interval %q", raw)
	}
	return d, nil
}
