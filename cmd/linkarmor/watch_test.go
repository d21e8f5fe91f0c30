package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/linkarmor/linkarmor/internal/config"
)

// watchTestConfig returns a config tuned for fast tests.
func watchTestConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.SiteHost = "example.com"
	cfg.PollInterval = 10 * time.Millisecond
	cfg.Debounce = 10 * time.Millisecond
	cfg.WriteInPlace = true
	return cfg
}

// waitForFile polls until the file content satisfies the condition.
func waitForFile(t *testing.T, path string, d time.Duration, cond func(string) bool) bool {
	t.Helper()

	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(path); err == nil && cond(string(data)) {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	data, _ := os.ReadFile(path)
	return cond(string(data))
}

// TestWatchFile tests the live rewrite session over a changing file.
func TestWatchFile(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, cmdTestHTML)
	cfg := watchTestConfig()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, cfg, logger)
	}()

	// Initial pass must rewrite the external link in place.
	if !waitForFile(t, path, 2*time.Second, func(s string) bool {
		return strings.Contains(s, `target="_blank"`)
	}) {
		t.Fatal("initial pass did not rewrite the file")
	}

	// Replace the file with new content carrying a fresh external link.
	updated := `<html><body><a href="https://fresh.org/new">Fresh</a></body></html>`
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatalf("failed to update file: %v", err)
	}

	if !waitForFile(t, path, 2*time.Second, func(s string) bool {
		return strings.Contains(s, "fresh.org") && strings.Contains(s, `rel="noopener"`)
	}) {
		t.Fatal("change was not picked up and rewritten")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected exit error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch session did not stop on cancellation")
	}
}

// TestWatchFileMissing tests startup failure on a missing file.
func TestWatchFileMissing(t *testing.T) {
	t.Parallel()

	cfg := watchTestConfig()
	logger := slog.Default()

	err := watchFile(context.Background(), "/nonexistent/file.html", cfg, logger)
	if err == nil {
		t.Error("expected error for missing file")
	}
}
