// Package config loads the workspace configuration from .parley/config.json,
// applying defaults for anything unset and environment overrides last.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all parley configuration.
type Config struct {
	// LLM configuration
	LLM LLMConfig `json:"llm"`

	// Logging
	Logging LoggingConfig `json:"logging"`

	// Point economy overrides
	Economy EconomyConfig `json:"economy"`

	// BCP 47 locale tag driving the language guarantee, e.g. "en-US"
	Locale string `json:"locale"`
}

// LLMConfig configures the generation backend.
type LLMConfig struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// LoggingConfig configures the categorized debug logger.
type LoggingConfig struct {
	DebugMode  bool     `json:"debug_mode"`
	Categories []string `json:"categories"` // empty = all categories
	Level      string   `json:"level"`
}

// EconomyConfig overrides the built-in point economy numbers. Zero values
// mean "use the default".
type EconomyConfig struct {
	DailyAllotment        int `json:"daily_allotment"`
	DeepThinkingSurcharge int `json:"deep_thinking_surcharge"`
	ScientificSurcharge   int `json:"scientific_surcharge"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Model: "gemini-2.5-flash",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Locale: "en-US",
	}
}

// DefaultPath returns the config path inside the given workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".parley", "config.json")
}

// Load reads configuration from path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration back to path, creating the directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides lets the environment win over the file. PARLEY_API_KEY
// takes precedence over GEMINI_API_KEY.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PARLEY_API_KEY"); v != "" {
		c.LLM.APIKey = v
	} else if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("PARLEY_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("PARLEY_LOCALE"); v != "" {
		c.Locale = v
	}
	if os.Getenv("PARLEY_DEBUG") == "1" {
		c.Logging.DebugMode = true
	}
}
