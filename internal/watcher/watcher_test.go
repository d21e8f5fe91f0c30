package watcher

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/linkarmor/linkarmor/internal/dom"
)

// newTestDocument parses a minimal document for watcher tests.
func newTestDocument(t *testing.T) *dom.Document {
	t.Helper()

	doc, err := dom.ParseString(`<html><body><p>seed</p></body></html>`, "watch.html")
	if err != nil {
		t.Fatalf("failed to parse document: %v", err)
	}
	return doc
}

// TestWatcher tests debounced re-scan scheduling.
func TestWatcher(t *testing.T) {
	t.Parallel()

	t.Run("link insertion triggers one re-scan", func(t *testing.T) {
		t.Parallel()

		doc := newTestDocument(t)
		var rescans atomic.Int32
		w := New(doc, func(context.Context) { rescans.Add(1) }, WithDebounce(20*time.Millisecond))
		if err := w.Start(context.Background()); err != nil {
			t.Fatalf("failed to start watcher: %v", err)
		}
		defer w.Close()

		if _, err := doc.AppendHTML(`<a href="https://other.com/x">x</a>`); err != nil {
			t.Fatalf("failed to append: %v", err)
		}

		waitFor(t, 2*time.Second, func() bool { return rescans.Load() == 1 })
		// Quiet period: no further re-scan should appear.
		time.Sleep(60 * time.Millisecond)
		if got := rescans.Load(); got != 1 {
			t.Errorf("expected exactly 1 re-scan, got %d", got)
		}
	})

	t.Run("burst collapses into one re-scan", func(t *testing.T) {
		t.Parallel()

		doc := newTestDocument(t)
		var rescans atomic.Int32
		w := New(doc, func(context.Context) { rescans.Add(1) }, WithDebounce(50*time.Millisecond))
		if err := w.Start(context.Background()); err != nil {
			t.Fatalf("failed to start watcher: %v", err)
		}
		defer w.Close()

		for i := 0; i < 5; i++ {
			if _, err := doc.AppendHTML(`<div><a href="https://other.com/x">x</a></div>`); err != nil {
				t.Fatalf("failed to append: %v", err)
			}
			time.Sleep(5 * time.Millisecond)
		}

		waitFor(t, 2*time.Second, func() bool { return rescans.Load() >= 1 })
		time.Sleep(100 * time.Millisecond)
		if got := rescans.Load(); got != 1 {
			t.Errorf("expected burst to collapse into 1 re-scan, got %d", got)
		}
	})

	t.Run("non-link mutations are ignored", func(t *testing.T) {
		t.Parallel()

		doc := newTestDocument(t)
		var rescans atomic.Int32
		w := New(doc, func(context.Context) { rescans.Add(1) }, WithDebounce(10*time.Millisecond))
		if err := w.Start(context.Background()); err != nil {
			t.Fatalf("failed to start watcher: %v", err)
		}
		defer w.Close()

		if _, err := doc.AppendHTML(`<div><p>no links here</p></div>`); err != nil {
			t.Fatalf("failed to append: %v", err)
		}

		time.Sleep(50 * time.Millisecond)
		if got := rescans.Load(); got != 0 {
			t.Errorf("expected no re-scan for link-free mutation, got %d", got)
		}
	})

	t.Run("close cancels pending re-scan", func(t *testing.T) {
		t.Parallel()

		doc := newTestDocument(t)
		var rescans atomic.Int32
		w := New(doc, func(context.Context) { rescans.Add(1) }, WithDebounce(50*time.Millisecond))
		if err := w.Start(context.Background()); err != nil {
			t.Fatalf("failed to start watcher: %v", err)
		}

		if _, err := doc.AppendHTML(`<a href="https://other.com/x">x</a>`); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
		w.Close()

		time.Sleep(120 * time.Millisecond)
		if got := rescans.Load(); got != 0 {
			t.Errorf("expected pending re-scan to be cancelled by Close, got %d", got)
		}
	})

	t.Run("cancelled context silences fired timer", func(t *testing.T) {
		t.Parallel()

		doc := newTestDocument(t)
		var rescans atomic.Int32
		w := New(doc, func(context.Context) { rescans.Add(1) }, WithDebounce(20*time.Millisecond))

		ctx, cancel := context.WithCancel(context.Background())
		if err := w.Start(ctx); err != nil {
			t.Fatalf("failed to start watcher: %v", err)
		}
		defer w.Close()

		if _, err := doc.AppendHTML(`<a href="https://other.com/x">x</a>`); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
		cancel()

		time.Sleep(80 * time.Millisecond)
		if got := rescans.Load(); got != 0 {
			t.Errorf("expected no re-scan after context cancellation, got %d", got)
		}
	})

	t.Run("start on closed document degrades with error", func(t *testing.T) {
		t.Parallel()

		doc := newTestDocument(t)
		doc.Close()

		w := New(doc, func(context.Context) {})
		if err := w.Start(context.Background()); err == nil {
			t.Error("expected error starting watcher on closed document")
		}
	})
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
