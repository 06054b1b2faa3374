// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dshills/memvault-mcp/pkg/types"
)

// Environment variable names.
const (
	EnvDir              = "MEMVAULT_DIR"
	EnvMaxSearchResults = "MEMVAULT_MAX_SEARCH_RESULTS"
	EnvEnableSync       = "MEMVAULT_ENABLE_SYNC"
	EnvGitRemote        = "MEMVAULT_GIT_REMOTE"
	EnvGitRetryAttempts = "MEMVAULT_GIT_RETRY_ATTEMPTS"
	EnvGitRetryDelay    = "MEMVAULT_GIT_RETRY_DELAY"
	EnvGitTimeout       = "MEMVAULT_GIT_TIMEOUT"
	EnvLogLevel         = "MEMVAULT_LOG_LEVEL"
)

// Defaults.
const (
	DefaultMaxSearchResults = 25
	DefaultGitRetryAttempts = 3
	DefaultGitRetryDelay    = time.Second
	DefaultGitTimeout       = 30 * time.Second
	DefaultLogLevel         = "info"
)

// Config holds all server settings.
type Config struct {
	BaseDir           string // repository root; record files live under files/
	MaxSearchResults  int
	EnableSync        bool
	GitRemoteURL      string
	GitRetryAttempts  int
	GitRetryDelay     time.Duration
	GitCommandTimeout time.Duration
	LogLevel          string
}

// FilesDir returns the directory that holds record files.
func (c Config) FilesDir() string {
	return filepath.Join(c.BaseDir, "files")
}

// LoadFromEnv builds a Config from MEMVAULT_* environment variables,
// applying defaults for anything unset.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		MaxSearchResults:  DefaultMaxSearchResults,
		EnableSync:        true,
		GitRetryAttempts:  DefaultGitRetryAttempts,
		GitRetryDelay:     DefaultGitRetryDelay,
		GitCommandTimeout: DefaultGitTimeout,
		LogLevel:          DefaultLogLevel,
	}

	cfg.BaseDir = os.Getenv(EnvDir)
	if cfg.BaseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, &types.ValidationError{Field: EnvDir, Reason: "unset and home directory unavailable"}
		}
		cfg.BaseDir = filepath.Join(home, ".memvault")
	}

	if v := os.Getenv(EnvMaxSearchResults); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, &types.ValidationError{Field: EnvMaxSearchResults, Reason: fmt.Sprintf("not an integer: %q", v)}
		}
		cfg.MaxSearchResults = n
	}

	if v := os.Getenv(EnvEnableSync); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, &types.ValidationError{Field: EnvEnableSync, Reason: fmt.Sprintf("not a boolean: %q", v)}
		}
		cfg.EnableSync = b
	}

	cfg.GitRemoteURL = os.Getenv(EnvGitRemote)

	if v := os.Getenv(EnvGitRetryAttempts); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, &types.ValidationError{Field: EnvGitRetryAttempts, Reason: fmt.Sprintf("not an integer: %q", v)}
		}
		cfg.GitRetryAttempts = n
	}

	if v := os.Getenv(EnvGitRetryDelay); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, &types.ValidationError{Field: EnvGitRetryDelay, Reason: fmt.Sprintf("not a duration: %q", v)}
		}
		cfg.GitRetryDelay = d
	}

	if v := os.Getenv(EnvGitTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, &types.ValidationError{Field: EnvGitTimeout, Reason: fmt.Sprintf("not a duration: %q", v)}
		}
		cfg.GitCommandTimeout = d
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks value ranges after loading.
func (c Config) Validate() error {
	if c.BaseDir == "" {
		return &types.ValidationError{Field: "BaseDir", Reason: "must not be empty"}
	}
	if c.MaxSearchResults <= 0 {
		return &types.ValidationError{Field: "MaxSearchResults", Reason: "must be positive"}
	}
	if c.GitRetryAttempts <= 0 {
		return &types.ValidationError{Field: "GitRetryAttempts", Reason: "must be positive"}
	}
	if c.GitRetryDelay < 0 {
		return &types.ValidationError{Field: "GitRetryDelay", Reason: "must not be negative"}
	}
	if c.GitCommandTimeout <= 0 {
		return &types.ValidationError{Field: "GitCommandTimeout", Reason: "must be positive"}
	}
	return nil
}
