// Package config provides configuration management for the server.
package config

import (
	"encoding/json"
	"os"

	"github.com/warp/tariff-engine/internal/logging"
)

// Config is the main application configuration.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `json:"server"`

	// Database contains storage settings.
	Database DatabaseConfig `json:"database"`

	// Pricing contains price-source settings.
	Pricing PricingConfig `json:"pricing"`

	// Catalog contains catalog seed-file settings.
	Catalog CatalogConfig `json:"catalog"`

	// Logging contains logging configuration.
	Logging logging.Config `json:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Port is the HTTP listen port.
	Port int `json:"port"`

	// EnableScenarios exposes the demo scenario endpoints. Never enable
	// in production: loading a scenario wipes the store.
	EnableScenarios bool `json:"enable_scenarios"`
}

// DatabaseConfig contains storage settings.
type DatabaseConfig struct {
	// Path is the SQLite database path. ":memory:" for in-memory.
	Path string `json:"path"`
}

// PricingConfig contains price-source settings.
type PricingConfig struct {
	// LookupTimeoutSeconds bounds a single price lookup; a slow source
	// degrades into "unavailable" instead of stalling a summary.
	LookupTimeoutSeconds int `json:"lookup_timeout_seconds"`
}

// CatalogConfig contains catalog seed-file settings.
type CatalogConfig struct {
	// SKUFile is an optional JSON file of catalog SKUs loaded at startup.
	SKUFile string `json:"sku_file,omitempty"`

	// SalesFile is an optional JSON file of sales records loaded at startup.
	SalesFile string `json:"sales_file,omitempty"`
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			EnableScenarios: false,
		},
		Database: DatabaseConfig{
			Path: "tariff.db",
		},
		Pricing: PricingConfig{
			LookupTimeoutSeconds: 5,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file, falling back to defaults when the
// file does not exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}
	return config, nil
}
