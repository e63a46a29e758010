package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"ecreceive/internal/checkpoint"
	"ecreceive/internal/config"
	"ecreceive/internal/daemon"
	"ecreceive/internal/dataset"
	"ecreceive/internal/logging"
	"ecreceive/internal/testsupport"
)

// agreeableCatalog resolves every filter to an existing resource and accepts
// every create, which is all a successful publish needs.
func agreeableCatalog(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			uri := strings.TrimSuffix(r.URL.Path, "/") + "/1/"
			_ = json.NewEncoder(w).Encode(map[string]any{
				"objects": []map[string]any{{
					"id":           "1",
					"resource_uri": uri,
					"name":         r.URL.Query().Get("name"),
				}},
			})
		case http.MethodPost:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"1","resource_uri":"/api/v1/datainstance/1/"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Catalog.URL = agreeableCatalog(t).URL
	cfg.Workers.Count = 2
	cfg.Workers.ResubmitDelay = 0
	cfg.Catalog.RetryInterval = 1
	return cfg
}

func startDaemon(t *testing.T, cfg *config.Config) {
	t.Helper()
	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(15 * time.Second):
			t.Error("daemon did not stop")
		}
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func datasetDelivered(cfg *config.Config, name string) bool {
	return fileExists(filepath.Join(cfg.Paths.DestinationDir, name)) &&
		fileExists(filepath.Join(cfg.Paths.DestinationDir, name+dataset.ChecksumSuffix)) &&
		!fileExists(filepath.Join(cfg.Paths.SpoolDir, name))
}

func checkpointEmpty(t *testing.T, cfg *config.Config) bool {
	t.Helper()
	store, err := checkpoint.Open(cfg.Paths.CheckpointPath)
	if err != nil {
		return false
	}
	return len(store.Keys()) == 0
}

func TestDaemonProcessesLiveDataset(t *testing.T) {
	cfg := newConfig(t)
	startDaemon(t, cfg)

	// Give the watcher a moment to establish before writing.
	time.Sleep(100 * time.Millisecond)

	const name = "BFS11120600111511001"
	testsupport.WriteDataset(t, cfg.Paths.SpoolDir, name, []byte("forecast payload"))

	waitFor(t, "dataset delivery", func() bool { return datasetDelivered(cfg, name) })
	waitFor(t, "checkpoint cleanup", func() bool { return checkpointEmpty(t, cfg) })
}

func TestDaemonRecoversSpooledDatasetOnStartup(t *testing.T) {
	cfg := newConfig(t)

	// The dataset arrived while the daemon was down.
	const name = "BFS11120600111511001"
	testsupport.WriteDataset(t, cfg.Paths.SpoolDir, name, []byte("forecast payload"))

	startDaemon(t, cfg)

	waitFor(t, "recovered dataset delivery", func() bool { return datasetDelivered(cfg, name) })
	waitFor(t, "checkpoint cleanup", func() bool { return checkpointEmpty(t, cfg) })
}

func TestDaemonClearsStaleLocksOnStartup(t *testing.T) {
	cfg := newConfig(t)

	// A previous run crashed mid-job: dataset still spooled, checkpoint
	// carrying EXISTS|LOCKED.
	const name = "BFS11120600111511001"
	testsupport.WriteDataset(t, cfg.Paths.SpoolDir, name, []byte("forecast payload"))
	store, err := checkpoint.Open(cfg.Paths.CheckpointPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Add(name, checkpoint.FlagExists|checkpoint.FlagLocked); err != nil {
		t.Fatalf("Add: %v", err)
	}

	startDaemon(t, cfg)

	waitFor(t, "recovered dataset delivery", func() bool { return datasetDelivered(cfg, name) })
	waitFor(t, "checkpoint cleanup", func() bool { return checkpointEmpty(t, cfg) })
}

func TestDaemonRefusesSecondInstance(t *testing.T) {
	cfg := newConfig(t)
	startDaemon(t, cfg)

	// Wait until the first instance actually holds the lock.
	probe := flock.New(filepath.Join(cfg.Paths.LogDir, "ecreceive.lock"))
	waitFor(t, "first instance lock", func() bool {
		ok, err := probe.TryLock()
		if err != nil {
			return false
		}
		if ok {
			_ = probe.Unlock()
			return false
		}
		return true
	})

	second, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := second.Run(ctx); err == nil {
		t.Fatal("second instance should fail to acquire the lock")
	}
}
