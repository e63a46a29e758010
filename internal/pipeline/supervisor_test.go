package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ecreceive/internal/logging"
	"ecreceive/internal/pipeline"
)

func TestSupervisorCleanShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sup := pipeline.NewSupervisor(ctx, logging.NewNop())

	stopped := make(chan struct{})
	sup.Go("component", func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return nil
	})

	cancel()
	if err := sup.Wait(5 * time.Second); err != nil {
		t.Fatalf("clean shutdown should return nil, got %v", err)
	}
	select {
	case <-stopped:
	default:
		t.Fatal("component was not joined before Wait returned")
	}
}

func TestSupervisorFatalErrorCancelsGroup(t *testing.T) {
	boom := errors.New("boom")
	sup := pipeline.NewSupervisor(context.Background(), logging.NewNop())

	peerStopped := make(chan struct{})
	sup.Go("healthy", func(ctx context.Context) error {
		<-ctx.Done()
		close(peerStopped)
		return nil
	})
	sup.Go("failing", func(ctx context.Context) error {
		return boom
	})

	err := sup.Wait(5 * time.Second)
	if !errors.Is(err, boom) {
		t.Fatalf("expected the component error, got %v", err)
	}
	select {
	case <-peerStopped:
	case <-time.After(5 * time.Second):
		t.Fatal("healthy component was not cancelled")
	}
}

func TestSupervisorIgnoresCancellationErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sup := pipeline.NewSupervisor(ctx, logging.NewNop())

	sup.Go("component", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	cancel()
	if err := sup.Wait(5 * time.Second); err != nil {
		t.Fatalf("context.Canceled returns must not be fatal, got %v", err)
	}
}
