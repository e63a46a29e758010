package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.SpoolDir) == "" {
		return errors.New("paths.spool_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DestinationDir) == "" {
		return errors.New("paths.destination_dir must be set")
	}
	if c.Paths.SpoolDir == c.Paths.DestinationDir {
		return errors.New("paths.spool_dir and paths.destination_dir must differ")
	}
	if strings.TrimSpace(c.Paths.CheckpointPath) == "" {
		return errors.New("paths.checkpoint_path must be set")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.URL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/ecreceive/config.toml"
		}
		return fmt.Errorf("catalog.url is required. Edit %s (create with 'ecreceive config init')", defaultPath)
	}
	if c.Catalog.BaseURL == "" {
		return errors.New("catalog.base_url must be set")
	}
	if c.Catalog.Source == "" {
		return errors.New("catalog.source must be set")
	}
	if c.Catalog.ServiceBackend == "" {
		return errors.New("catalog.service_backend must be set")
	}
	if c.Catalog.DataFormat == "" {
		return errors.New("catalog.data_format must be set")
	}
	if err := ensurePositiveMap(map[string]int{
		"catalog.lifetime_hours":  c.Catalog.LifetimeHours,
		"catalog.retry_interval":  c.Catalog.RetryInterval,
		"catalog.request_timeout": c.Catalog.RequestTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.Count <= 0 {
		return errors.New("workers.count must be positive")
	}
	if c.Workers.ResubmitDelay < 0 {
		return errors.New("workers.resubmit_delay must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
