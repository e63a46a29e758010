package logging_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ecreceive/internal/logging"
)

func TestNewJSONLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("dataset published",
		logging.String(logging.FieldDataset, "BFS11120600111511001"),
		logging.Int("version", 1))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, data)
	}
	if entry["msg"] != "dataset published" {
		t.Fatalf("unexpected msg %v", entry["msg"])
	}
	if entry["level"] != "info" {
		t.Fatalf("unexpected level %v", entry["level"])
	}
	if entry[logging.FieldDataset] != "BFS11120600111511001" {
		t.Fatalf("missing dataset attribute, got %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatal("missing ts attribute")
	}
}

func TestNewConsoleLoggerFormatsComponent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logging.NewComponentLogger(logger, "watcher").Info("sidecar written",
		logging.String(logging.FieldDataset, "a.md5"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := strings.TrimSpace(string(data))
	if !strings.Contains(line, " watcher: sidecar written") {
		t.Fatalf("component prefix missing: %q", line)
	}
	if !strings.Contains(line, "dataset=a.md5") {
		t.Fatalf("attribute missing: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be extracted, not repeated: %q", line)
	}
}

func TestNewRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	logger, err := logging.New(logging.Options{
		Level:       "warn",
		Format:      "json",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("suppressed")
	logger.Warn("kept")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "suppressed") {
		t.Fatalf("info line should be filtered at warn level: %q", data)
	}
	if !strings.Contains(string(data), "kept") {
		t.Fatalf("warn line missing: %q", data)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected an error for an unsupported format")
	}
}

func TestCleanupOldLogsPrunesByAge(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.log")
	newPath := filepath.Join(dir, "new.log")
	keptPath := filepath.Join(dir, "excluded.log")
	for _, path := range []string{oldPath, newPath, keptPath} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	stale := time.Now().AddDate(0, 0, -30)
	for _, path := range []string{oldPath, keptPath} {
		if err := os.Chtimes(path, stale, stale); err != nil {
			t.Fatal(err)
		}
	}

	logging.CleanupOldLogs(logging.NewNop(), 7, logging.RetentionTarget{
		Dir:     dir,
		Pattern: "*.log",
		Exclude: []string{keptPath},
	})

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatal("stale log should have been pruned")
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Fatal("fresh log should survive pruning")
	}
	if _, err := os.Stat(keptPath); err != nil {
		t.Fatal("excluded log should survive pruning")
	}
}

func TestCleanupOldLogsDisabledByZeroRetention(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ancient.log")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	stale := time.Now().AddDate(-1, 0, 0)
	if err := os.Chtimes(path, stale, stale); err != nil {
		t.Fatal(err)
	}

	logging.CleanupOldLogs(logging.NewNop(), 0, logging.RetentionTarget{Dir: dir, Pattern: "*.log"})

	if _, err := os.Stat(path); err != nil {
		t.Fatal("zero retention should leave files untouched")
	}
}
