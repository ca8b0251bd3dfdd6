package x11

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestProcessNameSelf(t *testing.T) {
	if _, err := os.Stat("/proc/self/comm"); err != nil {
		t.Skip("procfs not available")
	}

	name := processName(os.Getpid())
	if name == "" {
		t.Fatal("expected a process name for the test binary")
	}
}

func TestProcessNameMissing(t *testing.T) {
	if got := processName(-1); got != "" {
		t.Fatalf("expected empty name, got %q", got)
	}
}

func TestWithContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	release := make(chan struct{})
	defer close(release)

	_, err := withContext(ctx, func() (int, error) {
		<-release
		return 1, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWithContextResult(t *testing.T) {
	got, err := withContext(context.Background(), func() (string, error) {
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("unexpected result %q %v", got, err)
	}
}

func TestNewDetectorWithoutDisplay(t *testing.T) {
	t.Setenv("DISPLAY", "")

	if _, err := NewDetector(); err == nil {
		t.Fatal("expected error without a display")
	}
}
