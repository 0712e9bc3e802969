// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/jeranaias/atlas-tui/internal/util"
)

// =============================================================================
// CONFIG TYPES
// =============================================================================

// Config is the full atlas configuration.
type Config struct {
	Chat   ChatConfig   `toml:"chat"`
	Upload UploadConfig `toml:"upload"`
	Cache  CacheConfig  `toml:"cache"`
	UI     UIConfig     `toml:"ui"`
	Log    LogConfig    `toml:"log"`
	Server ServerConfig `toml:"server"`
}

// ChatConfig locates the chat stream endpoint.
type ChatConfig struct {
	Endpoint string `toml:"endpoint" env:"ATLAS_CHAT_URL"`
}

// Upload modes.
const (
	UploadModeBlob  = "blob"
	UploadModeLocal = "local"
)

// UploadConfig selects the upload backend.
type UploadConfig struct {
	// Mode is "blob" (signed two-step upload) or "local" (multipart dev server).
	Mode     string `toml:"mode" env:"ATLAS_UPLOAD_MODE"`
	TokenURL string `toml:"token_url" env:"ATLAS_UPLOAD_TOKEN_URL"`
	LocalURL string `toml:"local_url" env:"ATLAS_UPLOAD_LOCAL_URL"`
}

// CacheConfig controls the upload fingerprint cache.
type CacheConfig struct {
	Path           string `toml:"path" env:"ATLAS_CACHE_PATH"`
	RetentionHours int    `toml:"retention_hours" env:"ATLAS_CACHE_RETENTION_HOURS"`
}

// UIConfig holds terminal rendering settings. These are hot-reloaded.
type UIConfig struct {
	// FollowThreshold is the distance from the bottom, in lines, within
	// which new content keeps the view pinned.
	FollowThreshold int    `toml:"follow_threshold" env:"ATLAS_FOLLOW_THRESHOLD"`
	MarkdownStyle   string `toml:"markdown_style" env:"ATLAS_MARKDOWN_STYLE"`
	CodeTheme       string `toml:"code_theme" env:"ATLAS_CODE_THEME"`
	WordWrap        int    `toml:"word_wrap"`
}

// LogConfig controls the log file.
type LogConfig struct {
	Path  string `toml:"path" env:"ATLAS_LOG_PATH"`
	Level string `toml:"level" env:"ATLAS_LOG_LEVEL"`
}

// ServerConfig configures `atlas serve`.
type ServerConfig struct {
	Addr      string  `toml:"addr" env:"ATLAS_SERVER_ADDR"`
	DataDir   string  `toml:"data_dir" env:"ATLAS_SERVER_DATA_DIR"`
	PublicURL string  `toml:"public_url" env:"ATLAS_SERVER_PUBLIC_URL"`
	Secret    string  `toml:"secret" env:"ATLAS_BLOB_SECRET"`
	RateLimit float64 `toml:"rate_limit" env:"ATLAS_SERVER_RATE_LIMIT"`
	Burst     int     `toml:"burst" env:"ATLAS_SERVER_BURST"`
}

// Retention returns the cache retention as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Cache.RetentionHours) * time.Hour
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns the built-in configuration. Paths under the config
// directory are left empty and resolved by SetDefaults.
func Default() *Config {
	return &Config{
		Chat: ChatConfig{
			Endpoint: "http://localhost:3000/api/chat",
		},
		Upload: UploadConfig{
			Mode:     UploadModeBlob,
			TokenURL: "http://127.0.0.1:8790/api/blob/upload",
			LocalURL: "http://127.0.0.1:8790/api/upload",
		},
		Cache: CacheConfig{
			RetentionHours: 7 * 24,
		},
		UI: UIConfig{
			FollowThreshold: 4,
			MarkdownStyle:   "auto",
			CodeTheme:       "monokai",
			WordWrap:        100,
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8790",
			RateLimit: 5,
			Burst:     20,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the atlas configuration directory. ATLAS_HOME overrides
// the default of ~/.atlas.
func ConfigDir() (string, error) {
	if dir := os.Getenv("ATLAS_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".atlas"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LoadDotEnv loads .env files that exist, in order. Variables already set
// in the environment win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads the default config file, then environment overrides.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads path over the defaults. A missing file is not an
// error. Environment variables override file values.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML file %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.SetDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies ATLAS_* environment variables.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// SetDefaults fills empty paths relative to the config directory.
func (c *Config) SetDefaults() error {
	if c.Cache.Path != "" && c.Log.Path != "" && c.Server.DataDir != "" {
		return nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if c.Cache.Path == "" {
		c.Cache.Path = filepath.Join(dir, "upload_cache.json")
	}
	if c.Log.Path == "" {
		c.Log.Path = filepath.Join(dir, "atlas.log")
	}
	if c.Server.DataDir == "" {
		c.Server.DataDir = filepath.Join(dir, "blobs")
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to path atomically with owner-only permissions.
func Save(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# atlas configuration file\n")
	buf.WriteString("# Environment variables (ATLAS_*) override values here.\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
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

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !isHTTPURL(c.Chat.Endpoint) {
		add("chat.endpoint", "must be an http(s) URL, got %q", c.Chat.Endpoint)
	}

	switch strings.ToLower(c.Upload.Mode) {
	case UploadModeBlob:
		if !isHTTPURL(c.Upload.TokenURL) {
			add("upload.token_url", "must be an http(s) URL, got %q", c.Upload.TokenURL)
		}
	case UploadModeLocal:
		if !isHTTPURL(c.Upload.LocalURL) {
			add("upload.local_url", "must be an http(s) URL, got %q", c.Upload.LocalURL)
		}
	default:
		add("upload.mode", "invalid mode %q, must be one of: blob, local", c.Upload.Mode)
	}

	if c.Cache.RetentionHours <= 0 {
		add("cache.retention_hours", "must be positive, got %d", c.Cache.RetentionHours)
	}

	if c.UI.FollowThreshold <= 0 {
		add("ui.follow_threshold", "must be positive, got %d", c.UI.FollowThreshold)
	}
	if c.UI.WordWrap < 0 {
		add("ui.word_wrap", "must not be negative, got %d", c.UI.WordWrap)
	}

	if !validLevels[strings.ToLower(c.Log.Level)] {
		add("log.level", "invalid level %q, must be one of: debug, info, warn, error", c.Log.Level)
	}

	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "must not be negative")
	}
	if c.Server.PublicURL != "" && !isHTTPURL(c.Server.PublicURL) {
		add("server.public_url", "must be an http(s) URL, got %q", c.Server.PublicURL)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// String returns the config as TOML with the server secret redacted.
func (c *Config) String() string {
	clone := *c
	if clone.Server.Secret != "" {
		clone.Server.Secret = "[REDACTED]"
	}
	var buf bytes.Buffer
	_ = toml.NewEncoder(&buf).Encode(&clone)
	return buf.String()
}
