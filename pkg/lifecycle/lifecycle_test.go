package lifecycle_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/insight/pkg/lifecycle"
)

func TestNotReadyBeforeStartup(t *testing.T) {
	lc := lifecycle.New()
	if lc.Ready() {
		t.Error("should not be ready before WaitForStartup")
	}
}

func TestStartupHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var count atomic.Int32
	for range 3 {
		lc.OnStartup(func() {
			count.Add(1)
		})
	}

	lc.WaitForStartup()

	if got := count.Load(); got != 3 {
		t.Errorf("startup hooks: got %d, want 3", got)
	}
	if !lc.Ready() {
		t.Error("should be ready after WaitForStartup")
	}
}

func TestShutdownHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var cleaned atomic.Bool
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		cleaned.Store(true)
	})

	lc.WaitForStartup()

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if !cleaned.Load() {
		t.Error("shutdown hook did not execute")
	}

	select {
	case <-lc.Context().Done():
	default:
		t.Error("context should be cancelled after shutdown")
	}
}

func TestShutdownTimeout(t *testing.T) {
	lc := lifecycle.New()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		time.Sleep(500 * time.Millisecond)
	})

	lc.WaitForStartup()

	if err := lc.Shutdown(50 * time.Millisecond); err == nil {
		t.Error("expected timeout error, got nil")
	}
}

func TestRunChecks(t *testing.T) {
	lc := lifecycle.New()
	down := errors.New("connection refused")

	lc.AddCheck("database", func(ctx context.Context) error { return nil })
	lc.AddCheck("cache", func(ctx context.Context) error { return down })
	lc.AddCheck("storage", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	failures := lc.RunChecks(context.Background(), 20*time.Millisecond)

	if len(failures) != 2 {
		t.Fatalf("failures: got %d, want 2: %v", len(failures), failures)
	}
	if !errors.Is(failures["cache"], down) {
		t.Errorf("cache: got %v", failures["cache"])
	}
	if !errors.Is(failures["storage"], context.DeadlineExceeded) {
		t.Errorf("storage: got %v, want deadline exceeded", failures["storage"])
	}
	if _, ok := failures["database"]; ok {
		t.Error("database should be healthy")
	}
}
