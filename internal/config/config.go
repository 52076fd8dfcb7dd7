// Package config loads server configuration from a JSON5 file merged with
// MS365_MCP_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// graphCLIClientID is the Microsoft Graph Command Line Tools application id,
// usable for delegated device-code sign-in without app registration.
const graphCLIClientID = "14d82eec-204b-4c2f-b7e8-296a70dab67e"

// StoreConfig selects and locates the skill store backend.
type StoreConfig struct {
	Backend string `json:"backend"` // "file" (default) or "sqlite"
	Path    string `json:"path"`    // directory (file) or database file (sqlite)
}

// Config is the full server configuration.
type Config struct {
	ClientID  string      `json:"clientId"`
	Authority string      `json:"authority"`
	Scopes    []string    `json:"scopes"`
	ReadOnly  bool        `json:"readOnly"`
	GraphRPS  float64     `json:"graphRps"` // outbound Graph request rate; <= 0 disables throttling
	LogLevel  string      `json:"logLevel"`
	Store     StoreConfig `json:"store"`
}

// DefaultDir is where config, token fallback and the file store live.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ms365-mcp"
	}
	return filepath.Join(home, ".ms365-mcp")
}

func defaults() *Config {
	return &Config{
		ClientID: graphCLIClientID,
		GraphRPS: 4,
		LogLevel: "info",
		Store: StoreConfig{
			Backend: "file",
			Path:    filepath.Join(DefaultDir(), "skills"),
		},
	}
}

// Load reads the config file at path (missing file is fine) and applies
// environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = filepath.Join(DefaultDir(), "config.json5")
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)

	if cfg.Store.Backend != "file" && cfg.Store.Backend != "sqlite" {
		return nil, fmt.Errorf("unknown store backend %q (want file or sqlite)", cfg.Store.Backend)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MS365_MCP_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := os.Getenv("MS365_MCP_AUTHORITY"); v != "" {
		cfg.Authority = v
	}
	if v := os.Getenv("MS365_MCP_SCOPES"); v != "" {
		cfg.Scopes = strings.Fields(v)
	}
	if v := os.Getenv("MS365_MCP_READ_ONLY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ReadOnly = b
		}
	}
	if v := os.Getenv("MS365_MCP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MS365_MCP_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("MS365_MCP_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
}
