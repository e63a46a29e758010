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
	c.normalizeCatalog()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.SpoolDir, err = expandPath(c.Paths.SpoolDir); err != nil {
		return fmt.Errorf("paths.spool_dir: %w", err)
	}
	if c.Paths.DestinationDir, err = expandPath(c.Paths.DestinationDir); err != nil {
		return fmt.Errorf("paths.destination_dir: %w", err)
	}
	if c.Paths.CheckpointPath, err = expandPath(c.Paths.CheckpointPath); err != nil {
		return fmt.Errorf("paths.checkpoint_path: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCatalog() {
	c.Catalog.URL = strings.TrimRight(strings.TrimSpace(c.Catalog.URL), "/")
	c.Catalog.Username = strings.TrimSpace(c.Catalog.Username)
	c.Catalog.APIKey = strings.TrimSpace(c.Catalog.APIKey)
	c.Catalog.Source = strings.TrimSpace(c.Catalog.Source)
	c.Catalog.ServiceBackend = strings.TrimSpace(c.Catalog.ServiceBackend)
	c.Catalog.DataFormat = strings.TrimSpace(c.Catalog.DataFormat)

	if c.Catalog.APIKey == "" {
		if key, ok := os.LookupEnv("ECRECEIVE_CATALOG_API_KEY"); ok {
			c.Catalog.APIKey = strings.TrimSpace(key)
		}
	}

	// The public base URL always carries a trailing slash so data instance
	// URLs can be built by bare concatenation with the filename.
	base := strings.TrimSpace(c.Catalog.BaseURL)
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	c.Catalog.BaseURL = base
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
