package pipeline

import (
	"context"
	"log/slog"
	"time"

	"ecreceive/internal/logging"
)

// Distributor fans jobs out across the worker pool. Jobs accumulate in an
// internal backlog so producers never deadlock against busy workers, and a
// resubmitted job may land on a different worker than its first attempt.
type Distributor struct {
	inbound  chan string
	outbound chan string
	logger   *slog.Logger
}

// NewDistributor constructs an idle distributor; Run starts it.
func NewDistributor(logger *slog.Logger) *Distributor {
	return &Distributor{
		inbound:  make(chan string),
		outbound: make(chan string),
		logger:   logging.NewComponentLogger(logger, "distributor"),
	}
}

// Submit queues a job for the next available worker.
func (d *Distributor) Submit(ctx context.Context, name string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case d.inbound <- name:
		return nil
	}
}

// SubmitAfter queues a job once delay has elapsed, without blocking the
// caller. The submission is dropped if ctx is cancelled first.
func (d *Distributor) SubmitAfter(ctx context.Context, name string, delay time.Duration) {
	if delay <= 0 {
		go func() { _ = d.Submit(ctx, name) }()
		return
	}
	timer := time.AfterFunc(delay, func() {
		_ = d.Submit(ctx, name)
	})
	context.AfterFunc(ctx, func() { timer.Stop() })
}

// Jobs is the channel workers receive from.
func (d *Distributor) Jobs() <-chan string {
	return d.outbound
}

// Inbound exposes the submission channel for producers that feed jobs
// directly, such as the directory watcher.
func (d *Distributor) Inbound() chan<- string {
	return d.inbound
}

// Run moves jobs from the inbound channel to whichever worker reads the
// outbound channel next, buffering arrivals in between.
func (d *Distributor) Run(ctx context.Context) error {
	var backlog []string
	for {
		var (
			outbound chan string
			next     string
		)
		if len(backlog) > 0 {
			outbound = d.outbound
			next = backlog[0]
		}
		select {
		case <-ctx.Done():
			if len(backlog) > 0 {
				d.logger.Info("stopping with jobs still queued", logging.Int("queued", len(backlog)))
			}
			return nil
		case name := <-d.inbound:
			backlog = append(backlog, name)
		case outbound <- next:
			backlog = backlog[1:]
		}
	}
}
