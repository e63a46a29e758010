package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ecreceive/internal/logging"
)

// Supervisor runs the pipeline's components as a group: the first fatal
// error from any component cancels all of them, and Wait joins the group
// with a bounded grace period.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewSupervisor derives a supervised context from parent. Cancelling parent
// shuts the group down cleanly.
func NewSupervisor(parent context.Context, logger *slog.Logger) *Supervisor {
	ctx, cancel := context.WithCancelCause(parent)
	return &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		logger: logging.NewComponentLogger(logger, "supervisor"),
	}
}

// Context is the cancellation signal shared by every supervised component.
func (s *Supervisor) Context() context.Context {
	return s.ctx
}

// Go starts fn as a supervised component. A non-nil return that is not a
// cancellation cancels the whole group with fn's error as the cause.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := fn(s.ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error("component failed",
			logging.String(logging.FieldComponent, name),
			logging.Error(err))
		s.cancel(fmt.Errorf("%s: %w", name, err))
	}()
}

// Wait blocks until the group is cancelled, then joins all components,
// giving up after grace. It returns the fatal error that brought the group
// down, or nil on a clean shutdown.
func (s *Supervisor) Wait(grace time.Duration) error {
	<-s.ctx.Done()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		s.logger.Warn("components did not stop within grace period",
			logging.Duration("grace", grace))
	}

	cause := context.Cause(s.ctx)
	if cause == nil || errors.Is(cause, context.Canceled) {
		return nil
	}
	return cause
}
