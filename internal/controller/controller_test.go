package controller

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/linkarmor/linkarmor/internal/dom"
	"github.com/linkarmor/linkarmor/internal/model"
	"github.com/linkarmor/linkarmor/internal/scanner"
	"github.com/linkarmor/linkarmor/internal/watcher"
)

const sessionHTML = `<html><body>
<a href="/home">Home</a>
<a href="https://partner.org/">Partner</a>
</body></html>`

// newSession builds a controller over a parsed document with test-fast
// scheduling and debounce.
func newSession(t *testing.T) (*Controller, *dom.Document) {
	t.Helper()

	doc, err := dom.ParseString(sessionHTML, "index.html")
	if err != nil {
		t.Fatalf("failed to parse document: %v", err)
	}
	t.Cleanup(doc.Close)

	c := New(doc, model.NewIdentity("example.com", "https"),
		WithScannerOptions(scanner.WithScheduler(scanner.ImmediateScheduler{})),
		WithWatcherOptions(watcher.WithDebounce(10*time.Millisecond)),
	)
	t.Cleanup(c.Close)

	return c, doc
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

// renderDoc serializes the document for assertions.
func renderDoc(t *testing.T, doc *dom.Document) string {
	t.Helper()

	var sb strings.Builder
	if err := doc.Render(&sb); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	return sb.String()
}

// TestControllerStart tests the initial scan pass.
func TestControllerStart(t *testing.T) {
	t.Parallel()

	c, doc := newSession(t)

	stats, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if stats.Collected != 2 {
		t.Errorf("collected = %d, want 2", stats.Collected)
	}
	if stats.Rewritten != 1 {
		t.Errorf("rewritten = %d, want 1", stats.Rewritten)
	}

	out := renderDoc(t, doc)
	if !strings.Contains(out, `target="_blank"`) || !strings.Contains(out, `rel="noopener"`) {
		t.Errorf("external link not rewritten:\n%s", out)
	}
}

// TestControllerRescanOnInsert tests that dynamically added links are
// picked up by the watcher-triggered re-scan.
func TestControllerRescanOnInsert(t *testing.T) {
	t.Parallel()

	c, doc := newSession(t)

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	before := c.Scanner().ProcessedCount()

	if _, err := doc.AppendHTML(`<a href="https://late.org/">Late</a>`); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if !waitFor(t, time.Second, func() bool {
		return c.Scanner().ProcessedCount() == before+1
	}) {
		t.Fatalf("re-scan did not process the inserted anchor (processed=%d)", c.Scanner().ProcessedCount())
	}

	out := renderDoc(t, doc)
	if !strings.Contains(out, `href="https://late.org/" target="_blank"`) &&
		!strings.Contains(out, `late.org`) {
		t.Fatalf("inserted link missing:\n%s", out)
	}
	if strings.Count(out, `target="_blank"`) != 2 {
		t.Errorf("expected both external links rewritten:\n%s", out)
	}
}

// TestControllerClose tests teardown semantics.
func TestControllerClose(t *testing.T) {
	t.Parallel()

	t.Run("pending rescan cancelled", func(t *testing.T) {
		t.Parallel()

		c, doc := newSession(t)
		if _, err := c.Start(context.Background()); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		before := c.Scanner().ProcessedCount()

		if _, err := doc.AppendHTML(`<a href="https://late.org/">Late</a>`); err != nil {
			t.Fatalf("append failed: %v", err)
		}
		c.Close()

		time.Sleep(30 * time.Millisecond)
		if got := c.Scanner().ProcessedCount(); got != before {
			t.Errorf("processed = %d after close, want %d", got, before)
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		t.Parallel()

		c, _ := newSession(t)
		if _, err := c.Start(context.Background()); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		c.Close()
		c.Close()
	})

	t.Run("start after close fails", func(t *testing.T) {
		t.Parallel()

		c, _ := newSession(t)
		c.Close()
		if _, err := c.Start(context.Background()); err == nil {
			t.Error("expected error starting a closed controller")
		}
	})

	t.Run("double start fails", func(t *testing.T) {
		t.Parallel()

		c, _ := newSession(t)
		if _, err := c.Start(context.Background()); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if _, err := c.Start(context.Background()); err == nil {
			t.Error("expected error on second start")
		}
	})
}

// TestControllerPendingDocument tests waiting for deferred content.
func TestControllerPendingDocument(t *testing.T) {
	t.Parallel()

	t.Run("start waits for load", func(t *testing.T) {
		t.Parallel()

		doc := dom.NewPending("slow.html")
		t.Cleanup(doc.Close)

		c := New(doc, model.NewIdentity("example.com", ""),
			WithScannerOptions(scanner.WithScheduler(scanner.ImmediateScheduler{})),
		)
		t.Cleanup(c.Close)

		go func() {
			time.Sleep(10 * time.Millisecond)
			_ = doc.Load(strings.NewReader(sessionHTML), "")
		}()

		stats, err := c.Start(context.Background())
		if err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if stats.Collected != 2 {
			t.Errorf("collected = %d, want 2", stats.Collected)
		}
	})

	t.Run("cancelled before load", func(t *testing.T) {
		t.Parallel()

		doc := dom.NewPending("never.html")
		t.Cleanup(doc.Close)

		c := New(doc, model.Identity{})
		t.Cleanup(c.Close)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		if _, err := c.Start(ctx); err == nil {
			t.Error("expected error when context expires before load")
		}
	})
}
