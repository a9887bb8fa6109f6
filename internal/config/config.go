// Package config provides configuration loading and management for brief.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	RootDir          string          `json:"root_dir"          mapstructure:"root_dir"`
	LockWaitMS       int             `json:"lock_wait_ms"      mapstructure:"lock_wait_ms"`
	RequireCitations *bool           `json:"require_citations" mapstructure:"require_citations"`
	Retention        RetentionPolicy `json:"retention"         mapstructure:"retention"`
}

// RetentionPolicy defines how many backups to keep when pruning. Zero
// values keep everything.
type RetentionPolicy struct {
	KeepLast int `json:"keep_last,omitempty" mapstructure:"keep_last"`
	KeepDays int `json:"keep_days,omitempty" mapstructure:"keep_days"`
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	return Config{
		RootDir:    ".brief",
		LockWaitMS: 5000,
	}
}

// LockWait returns the bounded lock wait as a duration.
func (c Config) LockWait() time.Duration {
	if c.LockWaitMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.LockWaitMS) * time.Millisecond
}

// CitationsRequired reports whether new insights must carry citations.
// Defaults to true; the per-call bypass flag still applies on top.
func (c Config) CitationsRequired() bool {
	if c.RequireCitations == nil {
		return true
	}
	return *c.RequireCitations
}

// ReportsDir returns the directory holding per-report subdirectories.
func (c Config) ReportsDir() string { return filepath.Join(c.RootDir, "reports") }

// TrashDir returns the directory deleted reports are moved into.
func (c Config) TrashDir() string { return filepath.Join(c.RootDir, "trash") }

// IndexPath returns the global index log path.
func (c Config) IndexPath() string { return filepath.Join(c.RootDir, "index.jsonl") }

// HistoryPath returns the query-history database path.
func (c Config) HistoryPath() string { return filepath.Join(c.RootDir, "history.db") }

// Load reads the config file at path. A missing file yields defaults; a
// present file must parse and pass schema validation.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := ValidateSettings(v.AllSettings()); err != nil {
		return Config{}, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.RootDir == "" {
		cfg.RootDir = Default().RootDir
	}
	if cfg.LockWaitMS <= 0 {
		cfg.LockWaitMS = Default().LockWaitMS
	}
	return cfg, nil
}
