package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFileConfig loads configuration from a YAML file on top of Default,
// applies environment overrides and validates the result.
func LoadFileConfig(filePath string) (*FileConfig, error) {
	buf, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filePath, err)
	}
	return Parse(buf)
}

// Parse decodes YAML on top of Default, applies environment overrides and validates.
func Parse(buf []byte) (*FileConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// FromEnv builds a configuration from Default and the environment alone.
func FromEnv() (*FileConfig, error) {
	cfg := Default()
	ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides selected fields from MEMQUIZ_* variables.
func ApplyEnv(cfg *FileConfig) {
	if v := os.Getenv("MEMQUIZ_PRIMARY"); v != "" {
		cfg.API.Primary = v
	}
	if v := os.Getenv("MEMQUIZ_STABLE"); v != "" {
		cfg.API.Stable = v
	}
	if v := os.Getenv("MEMQUIZ_CREDENTIAL"); v != "" {
		cfg.API.Credential = v
	}
	if v := os.Getenv("MEMQUIZ_USER"); v != "" {
		cfg.Session.UserID = v
	}
}
