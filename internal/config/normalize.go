package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeGenerator(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StorageDir) == "" {
		c.Paths.StorageDir = defaultStorageDir
	}
	if c.Paths.StorageDir, err = expandPath(c.Paths.StorageDir); err != nil {
		return fmt.Errorf("paths.storage_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ClientDir) != "" {
		if c.Paths.ClientDir, err = expandPath(c.Paths.ClientDir); err != nil {
			return fmt.Errorf("paths.client_dir: %w", err)
		}
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeGenerator() error {
	c.Generator.Command = strings.TrimSpace(c.Generator.Command)
	if c.Generator.Command == "" {
		c.Generator.Command = defaultGeneratorCommand
	}
	c.Generator.Script = strings.TrimSpace(c.Generator.Script)
	if c.Generator.Script == "" {
		if value, ok := os.LookupEnv("SNAPSHEET_GENERATOR_SCRIPT"); ok {
			c.Generator.Script = strings.TrimSpace(value)
		}
	}
	if c.Generator.Script != "" {
		expanded, err := expandPath(c.Generator.Script)
		if err != nil {
			return fmt.Errorf("generator.script: %w", err)
		}
		c.Generator.Script = expanded
	}
	if c.Generator.TimeoutSeconds <= 0 {
		c.Generator.TimeoutSeconds = defaultGeneratorTimeoutSec
	}
	if c.Generator.MaxConcurrent <= 0 {
		c.Generator.MaxConcurrent = defaultGeneratorMaxConcurrent
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
