package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"ecreceive/internal/catalog"
	"ecreceive/internal/checkpoint"
	"ecreceive/internal/dataset"
	"ecreceive/internal/logging"
)

// Publisher registers a validated dataset with the remote catalog.
type Publisher interface {
	Publish(ctx context.Context, ds *dataset.Dataset) error
}

// Worker consumes jobs from the distributor and drives each dataset through
// validate, lock, move, publish and checkpoint cleanup.
type Worker struct {
	id             int
	spoolDir       string
	destinationDir string
	resubmitDelay  time.Duration

	checkpoints *checkpoint.Service
	distributor *Distributor
	publisher   Publisher
	logger      *slog.Logger
	now         func() time.Time
}

// WorkerOptions wires a worker's collaborators.
type WorkerOptions struct {
	ID             int
	SpoolDir       string
	DestinationDir string

	// ResubmitDelay is how long a disrupted job waits before re-entering
	// the distributor.
	ResubmitDelay time.Duration

	Checkpoints *checkpoint.Service
	Distributor *Distributor
	Publisher   Publisher
	Logger      *slog.Logger

	// Now defaults to time.Now; injectable for deterministic filename
	// parsing in tests.
	Now func() time.Time
}

// NewWorker constructs a worker; Run starts it.
func NewWorker(opts WorkerOptions) *Worker {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Worker{
		id:             opts.ID,
		spoolDir:       opts.SpoolDir,
		destinationDir: opts.DestinationDir,
		resubmitDelay:  opts.ResubmitDelay,
		checkpoints:    opts.Checkpoints,
		distributor:    opts.Distributor,
		publisher:      opts.Publisher,
		logger:         logging.NewComponentLogger(opts.Logger, "worker"),
		now:            now,
	}
}

// Run processes jobs until ctx is cancelled. Disrupted jobs are resubmitted
// to the distributor; any unrecognized error is returned and treated as
// fatal by the supervisor.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case name := <-w.distributor.Jobs():
			logger := w.logger.With(
				logging.String(logging.FieldJobID, uuid.NewString()),
				logging.String(logging.FieldDataset, name),
				logging.Int(logging.FieldWorkerID, w.id),
			)
			err := w.process(ctx, logger, name)
			switch {
			case err == nil:
			case errors.Is(err, ErrTryAgain):
				logger.Warn("job disrupted, resubmitting",
					logging.Duration("resubmit_in", w.resubmitDelay),
					logging.Error(err))
				w.distributor.SubmitAfter(ctx, name, w.resubmitDelay)
			case errors.Is(err, context.Canceled):
				return nil
			default:
				return fmt.Errorf("worker %d: process %s: %w", w.id, name, err)
			}
		}
	}
}

// process runs one job to completion or abort. A nil return means the job
// is finished as far as this attempt goes, whether published or benignly
// dropped.
func (w *Worker) process(ctx context.Context, logger *slog.Logger, name string) error {
	logger.Info("start processing")

	ds := dataset.New(filepath.Join(w.spoolDir, name))
	if !ds.Complete() {
		relocated := dataset.New(filepath.Join(w.destinationDir, name))
		if !relocated.Complete() {
			logger.Info("incomplete dataset, ignoring", logging.String("state", ds.State()))
			return nil
		}
		ds = relocated
	}
	key := ds.Filename()

	locked, err := w.checkpoints.Lock(ctx, key)
	if err != nil {
		return err
	}
	if !locked {
		logger.Info("dataset locked by another execution, ignoring")
		return nil
	}

	if _, err := w.checkpoints.Add(ctx, key, checkpoint.FlagExists); err != nil {
		return err
	}

	valid, err := ds.Valid()
	if err != nil {
		if errors.Is(err, dataset.ErrIntegrity) || errors.Is(err, dataset.ErrIncomplete) {
			logger.Warn("dataset failed validation", logging.Error(err))
			return w.unlock(ctx, key)
		}
		return err
	}
	if !valid {
		logger.Warn("checksum mismatch, awaiting retransmission")
		return w.unlock(ctx, key)
	}

	if _, err := ds.ParseFilename(w.now()); err != nil {
		if errors.Is(err, dataset.ErrInvalidFilename) {
			logger.Warn("malformed filename, leaving for inspection", logging.Error(err))
			return w.unlock(ctx, key)
		}
		return err
	}

	flags, err := w.checkpoints.Get(ctx, key)
	if err != nil {
		return err
	}
	if flags.Has(checkpoint.FlagMoved) {
		logger.Info("already moved, resuming at publish")
	} else {
		if err := ds.Move(w.destinationDir); err != nil {
			if uerr := w.unlock(ctx, key); uerr != nil {
				return uerr
			}
			return fmt.Errorf("%w: move dataset: %w", ErrTryAgain, err)
		}
		if _, err := w.checkpoints.Add(ctx, key, checkpoint.FlagMoved); err != nil {
			return err
		}
		logger.Info("dataset moved", logging.String("destination", w.destinationDir))
	}

	if err := w.publisher.Publish(ctx, ds); err != nil {
		if errors.Is(err, catalog.ErrSchema) {
			if uerr := w.unlock(ctx, key); uerr != nil {
				return uerr
			}
			return fmt.Errorf("%w: %w", ErrTryAgain, err)
		}
		return err
	}

	if err := w.checkpoints.Delete(ctx, key); err != nil {
		return err
	}
	logger.Info("all done, processed successfully")
	return nil
}

func (w *Worker) unlock(ctx context.Context, key string) error {
	return w.checkpoints.Unlock(ctx, key)
}
