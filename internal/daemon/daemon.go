package daemon

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"ecreceive/internal/catalog"
	"ecreceive/internal/checkpoint"
	"ecreceive/internal/config"
	"ecreceive/internal/logging"
	"ecreceive/internal/pipeline"
	"ecreceive/internal/watcher"
)

// shutdownGrace is how long Run waits for components to unwind after the
// first cancellation before giving up on the join.
const shutdownGrace = 10 * time.Second

// Daemon owns the receiving pipeline: checkpoint service, distributor,
// worker pool, and spool watcher, bound together by a supervisor. It
// enforces single-instance execution through a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	lockPath string
	lock     *flock.Flock
}

// New constructs a daemon from a validated configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "ecreceive.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Run starts the pipeline and blocks until ctx is cancelled or a component
// fails fatally. It returns nil on clean shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", d.lockPath, err)
	}
	if !ok {
		return fmt.Errorf("another ecreceive instance is already running (lock %s held)", d.lockPath)
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release instance lock", logging.Error(err))
		}
	}()

	store, err := checkpoint.Open(d.cfg.Paths.CheckpointPath)
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}
	// Stale locks from a previous run must be cleared before any worker
	// can contend for them.
	if err := store.UnlockAll(); err != nil {
		return fmt.Errorf("clear stale locks: %w", err)
	}

	checkpoints := checkpoint.NewService(store, d.logger)
	distributor := pipeline.NewDistributor(d.logger)
	publisher := d.newPublisher()

	spoolWatcher, err := watcher.New(d.cfg.Paths.SpoolDir, distributor.Inbound(), d.logger)
	if err != nil {
		return err
	}

	supervisor := pipeline.NewSupervisor(ctx, d.logger)
	supervisor.Go("checkpoint", checkpoints.Run)
	supervisor.Go("distributor", distributor.Run)
	for i := 1; i <= d.cfg.Workers.Count; i++ {
		worker := pipeline.NewWorker(pipeline.WorkerOptions{
			ID:             i,
			SpoolDir:       d.cfg.Paths.SpoolDir,
			DestinationDir: d.cfg.Paths.DestinationDir,
			ResubmitDelay:  time.Duration(d.cfg.Workers.ResubmitDelay) * time.Second,
			Checkpoints:    checkpoints,
			Distributor:    distributor,
			Publisher:      publisher,
			Logger:         d.logger,
		})
		supervisor.Go(fmt.Sprintf("worker-%d", i), worker.Run)
	}

	// The inotify watch is already established, so events arriving during
	// recovery queue up in the kernel; replaying unfinished work first
	// keeps recovered jobs ahead of live ones.
	supervisor.Go("watcher", func(ctx context.Context) error {
		if err := pipeline.Recover(ctx, checkpoints, d.cfg.Paths.SpoolDir, distributor, d.logger); err != nil {
			_ = spoolWatcher.Close()
			return err
		}
		return spoolWatcher.Run(ctx)
	})

	hostname, _ := os.Hostname()
	d.logger.Info("ecreceive daemon started",
		logging.String("hostname", hostname),
		logging.String("spool", d.cfg.Paths.SpoolDir),
		logging.String("destination", d.cfg.Paths.DestinationDir),
		logging.Int("workers", d.cfg.Workers.Count),
		logging.String("lock", d.lockPath))

	return supervisor.Wait(shutdownGrace)
}

// newPublisher wires the catalog client and publisher from configuration.
func (d *Daemon) newPublisher() *catalog.Publisher {
	transport := http.DefaultTransport
	if !d.cfg.Catalog.VerifySSL {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	httpClient := &http.Client{
		Timeout:   time.Duration(d.cfg.Catalog.RequestTimeout) * time.Second,
		Transport: transport,
	}
	client := catalog.NewClient(d.cfg.Catalog.URL, d.cfg.Catalog.Username, d.cfg.Catalog.APIKey, httpClient)
	return catalog.NewPublisher(client, catalog.Settings{
		PublicBaseURL:  d.cfg.Catalog.BaseURL,
		Source:         d.cfg.Catalog.Source,
		DataFormat:     d.cfg.Catalog.DataFormat,
		ServiceBackend: d.cfg.Catalog.ServiceBackend,
		Lifetime:       time.Duration(d.cfg.Catalog.LifetimeHours) * time.Hour,
		RetryInterval:  time.Duration(d.cfg.Catalog.RetryInterval) * time.Second,
		// Catalog downtime must not drop data; publish retries forever.
		GiveUpAfter: 0,
	}, d.logger)
}
