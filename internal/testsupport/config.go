package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"ecreceive/internal/config"
)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.SpoolDir = filepath.Join(base, "spool")
	cfg.Paths.DestinationDir = filepath.Join(base, "datasets")
	cfg.Paths.CheckpointPath = filepath.Join(base, "checkpoint.json")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Catalog.URL = "http://127.0.0.1:0/api/v1"
	cfg.Catalog.BaseURL = "http://data.example.org/"
	cfg.Catalog.Source = "ecmwf"
	cfg.Catalog.ServiceBackend = "datastore"

	for _, dir := range []string{cfg.Paths.SpoolDir, cfg.Paths.DestinationDir, cfg.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	return &cfg
}
