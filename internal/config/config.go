package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.courtchat/config.toml.
type Config struct {
	// BaseURL is the root of the hosted chat backend, e.g. https://chat.example.com.
	BaseURL string `toml:"base_url"`
	// AccessToken is the bearer token presented on every remote call.
	AccessToken string `toml:"access_token"`
	// UserID identifies the viewer; sends are refused without it.
	UserID string `toml:"user_id"`
	// DefaultProfile selects the profile when no --profile flag is given.
	DefaultProfile string `toml:"default_profile"`
}

// Load reads config from the given path. Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Validate checks the fields required to reach the backend.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config: base_url is required")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("config: base_url %q must start with http:// or https://", c.BaseURL)
	}
	return nil
}
