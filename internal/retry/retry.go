// Package retry wraps operations against flaky collaborators in a bounded
// or unbounded retry loop with escalating log severity.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ecreceive/internal/logging"
)

// ErrGaveUp marks an operation that exhausted its attempt budget. The last
// operation error is wrapped alongside it.
var ErrGaveUp = errors.New("gave up retrying")

// Options tunes a retry loop.
//
// WarnAfter and ErrorAfter are attempt counts at which logging escalates
// from info to warn and from warn to error. GiveUpAfter, when positive,
// bounds the total number of attempts; zero or negative retries forever.
type Options struct {
	// Interval is the pause between attempts.
	Interval time.Duration

	// IsRetryable decides whether an error is worth another attempt.
	// Errors it rejects propagate to the caller immediately.
	IsRetryable func(error) bool

	WarnAfter   int
	ErrorAfter  int
	GiveUpAfter int

	Logger *slog.Logger
}

func (o Options) validate() error {
	if o.IsRetryable == nil {
		return errors.New("retry: IsRetryable must be set")
	}
	if o.WarnAfter <= 0 || o.ErrorAfter <= o.WarnAfter {
		return fmt.Errorf("retry: thresholds must satisfy ErrorAfter > WarnAfter > 0, got warn=%d error=%d", o.WarnAfter, o.ErrorAfter)
	}
	if o.GiveUpAfter > 0 && o.GiveUpAfter <= o.ErrorAfter {
		return fmt.Errorf("retry: GiveUpAfter must be 0 or greater than ErrorAfter, got %d", o.GiveUpAfter)
	}
	return nil
}

// Do runs op until it succeeds, fails with a non-retryable error, the
// attempt budget runs out, or ctx is cancelled. name identifies the
// operation in log lines.
func Do(ctx context.Context, name string, op func() error, opts Options) error {
	if err := opts.validate(); err != nil {
		return err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retries",
					logging.String("operation", name),
					logging.Int(logging.FieldAttempt, attempt))
			}
			return nil
		}
		if !opts.IsRetryable(err) {
			return err
		}

		if opts.GiveUpAfter > 0 && attempt >= opts.GiveUpAfter {
			logger.Error("giving up on operation",
				logging.String("operation", name),
				logging.Int(logging.FieldAttempt, attempt),
				logging.Error(err))
			return fmt.Errorf("%w: %s: %w", ErrGaveUp, name, err)
		}

		switch {
		case attempt >= opts.ErrorAfter:
			logger.Error("operation still failing",
				logging.String("operation", name),
				logging.Int(logging.FieldAttempt, attempt),
				logging.Duration("retry_in", opts.Interval),
				logging.Error(err))
		case attempt >= opts.WarnAfter:
			logger.Warn("operation failing",
				logging.String("operation", name),
				logging.Int(logging.FieldAttempt, attempt),
				logging.Duration("retry_in", opts.Interval),
				logging.Error(err))
		default:
			logger.Info("operation failed, retrying",
				logging.String("operation", name),
				logging.Int(logging.FieldAttempt, attempt),
				logging.Duration("retry_in", opts.Interval),
				logging.Error(err))
		}

		if err := sleep(ctx, opts.Interval); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
