package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSort(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSort() error {
	if c.Sort.Concurrency < 1 || c.Sort.Concurrency > maxConcurrency {
		return fmt.Errorf("sort.concurrency must be between 1 and %d", maxConcurrency)
	}
	switch c.Sort.OnCollision {
	case "overwrite", "rename":
	default:
		return fmt.Errorf("sort.on_collision must be overwrite or rename, got %q", c.Sort.OnCollision)
	}
	if c.Sort.DeadlineSeconds < 0 {
		return errors.New("sort.deadline_seconds must be >= 0")
	}
	if c.Sort.ProgressEvery < 1 {
		return errors.New("sort.progress_every must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json; got %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}
