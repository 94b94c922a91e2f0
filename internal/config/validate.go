package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateGenerator(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateGenerator() error {
	if c.Generator.Script == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/snapsheet/config.toml"
		}
		return fmt.Errorf("generator.script is required. Set SNAPSHEET_GENERATOR_SCRIPT env var or edit %s (create with 'snapsheet config init')", defaultPath)
	}
	if c.Generator.TimeoutSeconds <= 0 {
		return errors.New("generator.timeout_seconds must be positive")
	}
	if c.Generator.MaxConcurrent <= 0 {
		return errors.New("generator.max_concurrent must be positive")
	}
	return nil
}

func (c *Config) validateRetention() error {
	if c.Retention.MaxAgeMinutes <= 0 {
		return errors.New("retention.max_age_minutes must be positive")
	}
	if c.Retention.SweepIntervalMinutes <= 0 {
		return errors.New("retention.sweep_interval_minutes must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
