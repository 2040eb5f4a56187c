// Package config handles loading and managing inboxvault configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DataConfig holds storage configuration.
type DataConfig struct {
	DataDir string `toml:"data_dir"` // Base data directory
	RootDir string `toml:"root_dir"` // Inbox storage root (default: <data_dir>/InboxStorages)
}

// QuotaConfig holds per-user storage quota configuration.
type QuotaConfig struct {
	DefaultBytes int64            `toml:"default_bytes"` // Uniform quota (default: 5 GiB)
	UserBytes    map[string]int64 `toml:"user_bytes"`    // Per-user overrides
}

// ThumbConfig holds thumbnail generation configuration.
type ThumbConfig struct {
	Width   int `toml:"width"`   // Canvas width (default: 320)
	Height  int `toml:"height"`  // Canvas height (default: 240)
	Quality int `toml:"quality"` // WEBP quality (default: 80)
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	APIPort       int      `toml:"api_port"`  // HTTP server port (default: 8080)
	BindAddr      string   `toml:"bind_addr"` // Bind address (default: 127.0.0.1)
	APIKey        string   `toml:"api_key"`   // API authentication key
	CORS          []string `toml:"cors_origins"`
	AllowInsecure bool     `toml:"allow_insecure"` // Permit unauthenticated non-loopback binds
}

// ValidateSecure rejects a non-loopback bind without an API key unless
// allow_insecure is set explicitly.
func (s ServerConfig) ValidateSecure() error {
	if s.APIKey != "" || s.AllowInsecure {
		return nil
	}
	addr := s.BindAddr
	if addr == "" {
		addr = "127.0.0.1"
	}
	ip := net.ParseIP(addr)
	if ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("refusing to bind %s without [server] api_key; set api_key or allow_insecure = true", addr)
}

// ScheduleConfig holds the cron expression for the thumbnail repair job.
type ScheduleConfig struct {
	ThumbRepair string `toml:"thumb_repair"` // Cron expression; empty disables the job
}

type Config struct {
	Data     DataConfig     `toml:"data"`
	Quota    QuotaConfig    `toml:"quota"`
	Thumb    ThumbConfig    `toml:"thumb"`
	Server   ServerConfig   `toml:"server"`
	Schedule ScheduleConfig `toml:"schedule"`

	// Computed (not from config file)
	HomeDir string `toml:"-"`
}

// DefaultQuotaBytes is the uniform per-user quota: 5 GiB.
const DefaultQuotaBytes = 5 * 1024 * 1024 * 1024

// DefaultHome returns the default inboxvault home directory.
// Respects the INBOXVAULT_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("INBOXVAULT_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".inboxvault"
	}
	return filepath.Join(home, ".inboxvault")
}

// Load reads the configuration from the specified file. If path is
// empty, the default location (<home>/config.toml) is used. The config
// file is optional; defaults apply when it is absent.
func Load(path string) (*Config, error) {
	homeDir := DefaultHome()

	if path == "" {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := &Config{
		HomeDir: homeDir,
		Data: DataConfig{
			DataDir: homeDir,
		},
		Quota: QuotaConfig{
			DefaultBytes: DefaultQuotaBytes,
		},
		Thumb: ThumbConfig{
			Width:   320,
			Height:  240,
			Quality: 80,
		},
		Server: ServerConfig{
			APIPort:  8080,
			BindAddr: "127.0.0.1",
		},
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Data.DataDir = expandPath(cfg.Data.DataDir)
	cfg.Data.RootDir = expandPath(cfg.Data.RootDir)

	if cfg.Quota.DefaultBytes <= 0 {
		cfg.Quota.DefaultBytes = DefaultQuotaBytes
	}
	if cfg.Thumb.Width <= 0 {
		cfg.Thumb.Width = 320
	}
	if cfg.Thumb.Height <= 0 {
		cfg.Thumb.Height = 240
	}
	if cfg.Thumb.Quality <= 0 {
		cfg.Thumb.Quality = 80
	}

	return cfg, nil
}

// InboxRoot returns the resolved Inbox storage root directory.
func (c *Config) InboxRoot() string {
	if c.Data.RootDir != "" {
		return c.Data.RootDir
	}
	return filepath.Join(c.Data.DataDir, "InboxStorages")
}

// QuotaForUser returns the quota in bytes for a user, honoring
// per-user overrides.
func (c *Config) QuotaForUser(sub string) int64 {
	if q, ok := c.Quota.UserBytes[sub]; ok && q > 0 {
		return q
	}
	return c.Quota.DefaultBytes
}

// EnsureHomeDir creates the home directory if it does not exist.
func (c *Config) EnsureHomeDir() error {
	return os.MkdirAll(c.HomeDir, 0755)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
