package pipeline_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ecreceive/internal/logging"
	"ecreceive/internal/pipeline"
)

func startDistributor(t *testing.T) *pipeline.Distributor {
	t.Helper()
	dist := pipeline.NewDistributor(logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = dist.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("distributor did not stop")
		}
	})
	return dist
}

func TestDistributorDeliversEachJobOnce(t *testing.T) {
	dist := startDistributor(t)
	ctx := context.Background()

	const jobs = 50
	for i := 0; i < jobs; i++ {
		if err := dist.Submit(ctx, fmt.Sprintf("job-%d", i)); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	received := make(map[string]int)
	for i := 0; i < jobs; i++ {
		select {
		case name := <-dist.Jobs():
			received[name]++
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d jobs", i)
		}
	}
	for name, count := range received {
		if count != 1 {
			t.Fatalf("job %s delivered %d times", name, count)
		}
	}
	if len(received) != jobs {
		t.Fatalf("expected %d distinct jobs, got %d", jobs, len(received))
	}
}

func TestDistributorBuffersWithoutConsumers(t *testing.T) {
	dist := startDistributor(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// No worker is reading; submissions must still complete promptly.
	for i := 0; i < 100; i++ {
		if err := dist.Submit(ctx, fmt.Sprintf("queued-%d", i)); err != nil {
			t.Fatalf("Submit blocked at job %d: %v", i, err)
		}
	}

	select {
	case name := <-dist.Jobs():
		if name != "queued-0" {
			t.Fatalf("expected first queued job, got %q", name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("queued job never delivered")
	}
}

func TestDistributorSubmitAfterDelay(t *testing.T) {
	dist := startDistributor(t)
	ctx := context.Background()

	start := time.Now()
	dist.SubmitAfter(ctx, "delayed", 50*time.Millisecond)

	select {
	case name := <-dist.Jobs():
		if name != "delayed" {
			t.Fatalf("unexpected job %q", name)
		}
		if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
			t.Fatalf("job delivered after %v, want at least 50ms", elapsed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("delayed job never delivered")
	}
}

func TestDistributorSubmitAfterCancelledContext(t *testing.T) {
	dist := startDistributor(t)
	ctx, cancel := context.WithCancel(context.Background())

	dist.SubmitAfter(ctx, "dropped", 20*time.Millisecond)
	cancel()

	select {
	case name := <-dist.Jobs():
		t.Fatalf("cancelled submission delivered job %q", name)
	case <-time.After(150 * time.Millisecond):
	}
}
