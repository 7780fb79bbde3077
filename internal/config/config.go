// Package config handles pressbot configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/pressbot/config.yaml, /etc/pressbot/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "pressbot", "config.yaml"))
	}

	paths = append(paths, "/etc/pressbot/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all pressbot configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Renderer RendererConfig `yaml:"renderer"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	DataDir  string         `yaml:"data_dir"`
	LogLevel string         `yaml:"log_level"`
}

// TelegramConfig defines the Telegram bot connection and the fixed
// audit channel that receives start/publish notifications.
type TelegramConfig struct {
	// Token is the bot token issued by BotFather.
	Token string `yaml:"token"`
	// AuditChannelID is the chat ID of the audit channel. Zero
	// disables audit forwarding.
	AuditChannelID int64 `yaml:"audit_channel_id"`
	// PollTimeoutSec is the long-poll timeout for getUpdates (default 30).
	PollTimeoutSec int `yaml:"poll_timeout_sec"`
}

// RendererConfig defines the external image renderer invocation.
type RendererConfig struct {
	// Command is the interpreter or binary to run (default "python3").
	Command string `yaml:"command"`
	// Script is passed as the first argument when non-empty
	// (e.g., the path to newspaper_template.py).
	Script string `yaml:"script"`
	// PlaceholderImage is shown before the user supplies a photo and
	// passed to the renderer when the photo field is unset.
	PlaceholderImage string `yaml:"placeholder_image"`
	// TimeoutSec bounds a single render run (default 30).
	TimeoutSec int `yaml:"timeout_sec"`
}

// MQTTConfig defines the optional broker connection for publish events.
type MQTTConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Broker     string `yaml:"broker"` // e.g. mqtt://host:1883 or mqtts://host:8883
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	DeviceName string `yaml:"device_name"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollTimeoutSec: 30,
		},
		Renderer: RendererConfig{
			Command:    "python3",
			TimeoutSec: 30,
		},
		DataDir: "data",
	}
}

// Validate checks that the fields required to serve are present.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if c.Renderer.Command == "" && c.Renderer.Script == "" {
		return fmt.Errorf("renderer.command or renderer.script is required")
	}
	return nil
}
