package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Settings holds the user-tunable behavior of the notification client.
// Persisted across restarts; mutated only through explicit user action.
type Settings struct {
	// EnableStream controls whether the live event stream is opened at all.
	EnableStream bool `mapstructure:"enable_stream" yaml:"enable_stream"`

	// EnableDesktopAlert shows a toast line in the status bar on arrival.
	EnableDesktopAlert bool `mapstructure:"enable_desktop_alert" yaml:"enable_desktop_alert"`

	// EnableSound rings the terminal bell for high/urgent arrivals.
	EnableSound bool `mapstructure:"enable_sound" yaml:"enable_sound"`

	// AutoRefresh enables the periodic fetch that backstops the stream.
	AutoRefresh bool `mapstructure:"auto_refresh" yaml:"auto_refresh"`

	// RefreshIntervalSec is how often (in seconds) to refetch the current
	// page and unread count. Out-of-range values are accepted here and
	// clamped by the sync controller before use.
	RefreshIntervalSec int `mapstructure:"refresh_interval_sec" yaml:"refresh_interval_sec"`

	// DisplayCount is the hard cap on notifications retained in memory.
	DisplayCount int `mapstructure:"display_count" yaml:"display_count"`
}

// SettingsPatch is a partial update to Settings. Nil fields are left
// unchanged. No range validation happens here: the sync controller clamps
// the refresh interval before arming timers.
type SettingsPatch struct {
	EnableStream       *bool
	EnableDesktopAlert *bool
	EnableSound        *bool
	AutoRefresh        *bool
	RefreshIntervalSec *int
	DisplayCount       *int
}

// Apply merges the patch into s and returns the result.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.EnableStream != nil {
		s.EnableStream = *p.EnableStream
	}
	if p.EnableDesktopAlert != nil {
		s.EnableDesktopAlert = *p.EnableDesktopAlert
	}
	if p.EnableSound != nil {
		s.EnableSound = *p.EnableSound
	}
	if p.AutoRefresh != nil {
		s.AutoRefresh = *p.AutoRefresh
	}
	if p.RefreshIntervalSec != nil {
		s.RefreshIntervalSec = *p.RefreshIntervalSec
	}
	if p.DisplayCount != nil {
		s.DisplayCount = *p.DisplayCount
	}
	return s
}

// ServerConfig locates the remote notification service.
type ServerConfig struct {
	// BaseURL is the root URL of the notification API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// StreamPath is the path of the SSE endpoint, relative to BaseURL.
	StreamPath string `mapstructure:"stream_path" yaml:"stream_path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server   ServerConfig `mapstructure:"server" yaml:"server"`
	Settings Settings     `mapstructure:"settings" yaml:"settings"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/notification-center/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "notification-center", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			StreamPath: "/api/notifications/stream",
		},
		Settings: Settings{
			EnableStream:       true,
			EnableDesktopAlert: true,
			EnableSound:        false,
			AutoRefresh:        true,
			RefreshIntervalSec: 60,
			DisplayCount:       50,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("server.stream_path", "/api/notifications/stream")
	v.SetDefault("settings.enable_stream", true)
	v.SetDefault("settings.enable_desktop_alert", true)
	v.SetDefault("settings.enable_sound", false)
	v.SetDefault("settings.auto_refresh", true)
	v.SetDefault("settings.refresh_interval_sec", 60)
	v.SetDefault("settings.display_count", 50)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("settings", cfg.Settings)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
