// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for tutorchat.
//
// Supports both TOML and YAML configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.tutorchat/config.toml
//   - ~/.tutorchat/config.yaml
//   - Built-in defaults
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/tutorchat/internal/util"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TUTORCHAT_"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete tutorchat configuration.
type Config struct {
	Version string `toml:"version" yaml:"version" json:"version"`

	Identity  IdentityConfig  `toml:"identity" yaml:"identity" json:"identity" envPrefix:"IDENTITY_"`
	Transport TransportConfig `toml:"transport" yaml:"transport" json:"transport" envPrefix:"TRANSPORT_"`
	Redis     RedisConfig     `toml:"redis" yaml:"redis" json:"redis" envPrefix:"REDIS_"`
	Storage   StorageConfig   `toml:"storage" yaml:"storage" json:"storage" envPrefix:"STORAGE_"`
	Chat      ChatConfig      `toml:"chat" yaml:"chat" json:"chat" envPrefix:"CHAT_"`
	Relay     RelayConfig     `toml:"relay" yaml:"relay" json:"relay" envPrefix:"RELAY_"`
	Log       LogConfig       `toml:"log" yaml:"log" json:"log" envPrefix:"LOG_"`
	Metrics   MetricsConfig   `toml:"metrics" yaml:"metrics" json:"metrics" envPrefix:"METRICS_"`
}

// IdentityConfig names the chat participant. When ProfileURL is set the
// username and role are fetched from the marketplace API instead.
type IdentityConfig struct {
	Username   string `toml:"username" yaml:"username" json:"username" env:"USERNAME"`
	Role       string `toml:"role" yaml:"role" json:"role" env:"ROLE"`
	UserID     string `toml:"user_id" yaml:"user_id" json:"user_id" env:"USER_ID"`
	Token      string `toml:"token" yaml:"token" json:"token" env:"TOKEN"`
	ProfileURL string `toml:"profile_url" yaml:"profile_url" json:"profile_url" env:"PROFILE_URL"`
}

// TransportConfig selects the realtime channel.
type TransportConfig struct {
	// Kind is websocket, redis or memory.
	Kind              string        `toml:"kind" yaml:"kind" json:"kind" env:"KIND"`
	URL               string        `toml:"url" yaml:"url" json:"url" env:"URL"`
	ReconnectAttempts int           `toml:"reconnect_attempts" yaml:"reconnect_attempts" json:"reconnect_attempts" env:"RECONNECT_ATTEMPTS"`
	ReconnectDelay    time.Duration `toml:"reconnect_delay" yaml:"reconnect_delay" json:"reconnect_delay" env:"RECONNECT_DELAY"`
	DialTimeout       time.Duration `toml:"dial_timeout" yaml:"dial_timeout" json:"dial_timeout" env:"DIAL_TIMEOUT"`
}

// RedisConfig is shared by the redis transport and the relay's redis backend.
type RedisConfig struct {
	Addr       string `toml:"addr" yaml:"addr" json:"addr" env:"ADDR"`
	Password   string `toml:"password" yaml:"password" json:"password" env:"PASSWORD"`
	DB         int    `toml:"db" yaml:"db" json:"db" env:"DB"`
	Channel    string `toml:"channel" yaml:"channel" json:"channel" env:"CHANNEL"`
	HistoryKey string `toml:"history_key" yaml:"history_key" json:"history_key" env:"HISTORY_KEY"`
}

// StorageConfig selects the local history backend.
type StorageConfig struct {
	// Backend is file, sqlite, pebble or memory.
	Backend      string `toml:"backend" yaml:"backend" json:"backend" env:"BACKEND"`
	Dir          string `toml:"dir" yaml:"dir" json:"dir" env:"DIR"`
	HistoryLimit int    `toml:"history_limit" yaml:"history_limit" json:"history_limit" env:"HISTORY_LIMIT"`
	// Watch reloads history written by another tutorchat process.
	Watch bool `toml:"watch" yaml:"watch" json:"watch" env:"WATCH"`
}

// ChatConfig sizes the render pipeline and send throttling.
type ChatConfig struct {
	WindowSize    int           `toml:"window_size" yaml:"window_size" json:"window_size" env:"WINDOW_SIZE"`
	BatchSize     int           `toml:"batch_size" yaml:"batch_size" json:"batch_size" env:"BATCH_SIZE"`
	BatchDelay    time.Duration `toml:"batch_delay" yaml:"batch_delay" json:"batch_delay" env:"BATCH_DELAY"`
	SweepInterval time.Duration `toml:"sweep_interval" yaml:"sweep_interval" json:"sweep_interval" env:"SWEEP_INTERVAL"`
	NearBottom    int           `toml:"near_bottom" yaml:"near_bottom" json:"near_bottom" env:"NEAR_BOTTOM"`
	SendRate      float64       `toml:"send_rate" yaml:"send_rate" json:"send_rate" env:"SEND_RATE"`
	SendBurst     int           `toml:"send_burst" yaml:"send_burst" json:"send_burst" env:"SEND_BURST"`
	Theme         string        `toml:"theme" yaml:"theme" json:"theme" env:"THEME"`
}

// RelayConfig configures `tutorchat relay`.
type RelayConfig struct {
	Listen         string   `toml:"listen" yaml:"listen" json:"listen" env:"LISTEN"`
	Retention      int      `toml:"retention" yaml:"retention" json:"retention" env:"RETENTION"`
	Backend        string   `toml:"backend" yaml:"backend" json:"backend" env:"BACKEND"`
	AllowedOrigins []string `toml:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Mode is dev or prod.
	Mode  string `toml:"mode" yaml:"mode" json:"mode" env:"MODE"`
	Level string `toml:"level" yaml:"level" json:"level" env:"LEVEL"`
	File  string `toml:"file" yaml:"file" json:"file" env:"FILE"`
}

// MetricsConfig exposes Prometheus metrics from the client when Listen is set.
type MetricsConfig struct {
	Listen string `toml:"listen" yaml:"listen" json:"listen" env:"LISTEN"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Identity: IdentityConfig{
			Role: "user",
		},
		Transport: TransportConfig{
			Kind:              "websocket",
			URL:               "ws://localhost:8080/ws",
			ReconnectAttempts: 5,
			ReconnectDelay:    time.Second,
			DialTimeout:       10 * time.Second,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			Channel:    "tutorchat:events",
			HistoryKey: "tutorchat:history",
		},
		Storage: StorageConfig{
			Backend:      "file",
			HistoryLimit: 200,
			Watch:        true,
		},
		Chat: ChatConfig{
			WindowSize:    50,
			BatchSize:     10,
			BatchDelay:    10 * time.Millisecond,
			SweepInterval: 60 * time.Second,
			NearBottom:    50,
			SendRate:      5,
			SendBurst:     10,
			Theme:         "dark",
		},
		Relay: RelayConfig{
			Listen:    ":8080",
			Retention: 100,
			Backend:   "memory",
		},
		Log: LogConfig{
			Mode:  "prod",
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the tutorchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".tutorchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions narrows config files to 0600; they may hold a token.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from ~/.tutorchat. A config file that fails to
// decode is reported alongside the defaults so the caller can warn and go on.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		cfg := Default()
		if ferr := cfg.finish(); ferr != nil {
			return nil, ferr
		}
		return cfg, err
	}
	return LoadDir(dir)
}

// LoadDir loads config.toml, config.yaml or config.yml from dir, whichever
// is found first, then applies environment overrides.
func LoadDir(dir string) (*Config, error) {
	var loadErr error
	for _, name := range []string{"config.toml", "config.yaml", "config.yml"} {
		path := filepath.Join(dir, name)
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg := Default()
		if err := decodeFile(cfg, path); err != nil {
			loadErr = fmt.Errorf("failed to load %s: %w", path, err)
			break
		}
		if err := cfg.finish(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := decodeFile(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read YAML file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode YAML file: %w", err)
		}
	default:
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("failed to decode TOML file: %w", err)
		}
	}
	return nil
}

func (c *Config) finish() error {
	if err := c.ApplyEnvOverrides(); err != nil {
		return err
	}
	fillDefaults(c)
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	d := Default()

	if cfg.Version == "" {
		cfg.Version = d.Version
	}
	if cfg.Identity.Role == "" {
		cfg.Identity.Role = d.Identity.Role
	}

	if cfg.Transport.Kind == "" {
		cfg.Transport.Kind = d.Transport.Kind
	}
	if cfg.Transport.URL == "" {
		cfg.Transport.URL = d.Transport.URL
	}
	if cfg.Transport.ReconnectDelay <= 0 {
		cfg.Transport.ReconnectDelay = d.Transport.ReconnectDelay
	}
	if cfg.Transport.DialTimeout <= 0 {
		cfg.Transport.DialTimeout = d.Transport.DialTimeout
	}

	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = d.Redis.Channel
	}
	if cfg.Redis.HistoryKey == "" {
		cfg.Redis.HistoryKey = d.Redis.HistoryKey
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = d.Storage.Backend
	}
	if cfg.Storage.HistoryLimit == 0 {
		cfg.Storage.HistoryLimit = d.Storage.HistoryLimit
	}

	if cfg.Chat.WindowSize == 0 {
		cfg.Chat.WindowSize = d.Chat.WindowSize
	}
	if cfg.Chat.BatchSize == 0 {
		cfg.Chat.BatchSize = d.Chat.BatchSize
	}
	if cfg.Chat.BatchDelay == 0 {
		cfg.Chat.BatchDelay = d.Chat.BatchDelay
	}
	if cfg.Chat.SweepInterval == 0 {
		cfg.Chat.SweepInterval = d.Chat.SweepInterval
	}
	if cfg.Chat.NearBottom == 0 {
		cfg.Chat.NearBottom = d.Chat.NearBottom
	}
	if cfg.Chat.SendRate == 0 {
		cfg.Chat.SendRate = d.Chat.SendRate
	}
	if cfg.Chat.SendBurst == 0 {
		cfg.Chat.SendBurst = d.Chat.SendBurst
	}
	if cfg.Chat.Theme == "" {
		cfg.Chat.Theme = d.Chat.Theme
	}

	if cfg.Relay.Listen == "" {
		cfg.Relay.Listen = d.Relay.Listen
	}
	if cfg.Relay.Retention == 0 {
		cfg.Relay.Retention = d.Relay.Retention
	}
	if cfg.Relay.Backend == "" {
		cfg.Relay.Backend = d.Relay.Backend
	}

	if cfg.Log.Mode == "" {
		cfg.Log.Mode = d.Log.Mode
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# tutorchat configuration file\n")
	b.WriteString("# Environment variables prefixed with " + EnvPrefix + " override these values.\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func oneOf(v string, allowed ...string) bool {
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Identity
	if !oneOf(c.Identity.Role, "", "user", "tutor", "master") {
		add("identity.role", "must be user or tutor, got %q", c.Identity.Role)
	}
	if c.Identity.ProfileURL != "" {
		if u, err := url.Parse(c.Identity.ProfileURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("identity.profile_url", "must be an http(s) URL")
		}
	}

	// Transport
	if !oneOf(c.Transport.Kind, "websocket", "redis", "memory") {
		add("transport.kind", "must be websocket, redis or memory, got %q", c.Transport.Kind)
	}
	if strings.EqualFold(c.Transport.Kind, "websocket") {
		if u, err := url.Parse(c.Transport.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			add("transport.url", "must be a ws:// or wss:// URL, got %q", c.Transport.URL)
		}
	}
	if c.Transport.ReconnectAttempts < 0 || c.Transport.ReconnectAttempts > 100 {
		add("transport.reconnect_attempts", "must be between 0 and 100")
	}

	// Redis
	if (strings.EqualFold(c.Transport.Kind, "redis") || strings.EqualFold(c.Relay.Backend, "redis")) && c.Redis.Addr == "" {
		add("redis.addr", "is required when redis is used")
	}

	// Storage
	if !oneOf(c.Storage.Backend, "file", "sqlite", "pebble", "memory") {
		add("storage.backend", "must be file, sqlite, pebble or memory, got %q", c.Storage.Backend)
	}
	if c.Storage.HistoryLimit < 1 || c.Storage.HistoryLimit > 10000 {
		add("storage.history_limit", "must be between 1 and 10000")
	}

	// Chat
	if c.Chat.WindowSize < 1 {
		add("chat.window_size", "must be positive")
	}
	if c.Chat.BatchSize < 1 {
		add("chat.batch_size", "must be positive")
	}
	if c.Chat.BatchDelay <= 0 {
		add("chat.batch_delay", "must be positive")
	}
	if c.Chat.SweepInterval < time.Second {
		add("chat.sweep_interval", "must be at least 1s")
	}
	if c.Chat.NearBottom < 1 {
		add("chat.near_bottom", "must be positive")
	}
	if c.Chat.SendRate <= 0 {
		add("chat.send_rate", "must be positive")
	}
	if c.Chat.SendBurst < 1 {
		add("chat.send_burst", "must be positive")
	}

	// Relay
	if c.Relay.Retention < 1 {
		add("relay.retention", "must be positive")
	}
	if !oneOf(c.Relay.Backend, "memory", "redis") {
		add("relay.backend", "must be memory or redis, got %q", c.Relay.Backend)
	}

	// Log
	if !oneOf(c.Log.Mode, "dev", "prod") {
		add("log.mode", "must be dev or prod, got %q", c.Log.Mode)
	}
	if !oneOf(c.Log.Level, "debug", "info", "warn", "error") {
		add("log.level", "must be debug, info, warn or error, got %q", c.Log.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies TUTORCHAT_* environment variables, for example
// TUTORCHAT_IDENTITY_USERNAME, TUTORCHAT_TRANSPORT_URL or
// TUTORCHAT_CHAT_SEND_RATE. Unset variables leave the field alone.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Relay.AllowedOrigins != nil {
		clone.Relay.AllowedOrigins = append([]string(nil), c.Relay.AllowedOrigins...)
	}
	return &clone
}

// String returns the config as JSON with secrets redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Identity.Token != "" {
		safe.Identity.Token = "[REDACTED]"
	}
	if safe.Redis.Password != "" {
		safe.Redis.Password = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
