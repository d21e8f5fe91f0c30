package watcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/linkarmor/linkarmor/internal/dom"
)

// DefaultDebounce is the quiet period required after the last
// link-bearing mutation before a re-scan starts. 100ms is long enough to
// swallow a burst of programmatic insertions and short enough that new
// content is rarely clickable before it has been rewritten.
const DefaultDebounce = 100 * time.Millisecond

// Rescan is invoked after the debounce window closes. Implementations
// are expected to run a scanner pass; the call happens on a timer
// goroutine, never on the goroutine that mutated the document.
type Rescan func(ctx context.Context)

// Watcher subscribes to a document's mutation notifications and
// schedules re-scans. A Watcher is single-use: once closed it cannot be
// restarted.
type Watcher struct {
	doc      *dom.Document
	rescan   Rescan
	debounce time.Duration
	logger   *slog.Logger

	mu          sync.Mutex
	timer       *time.Timer
	unsubscribe func()
	closed      bool

	// ctx carries the lifetime handed to Start; re-scans triggered by
	// the timer inherit it.
	ctx context.Context
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce window. Non-positive values keep the
// default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a Watcher for the document. Nothing is observed until
// Start is called.
func New(doc *dom.Document, rescan Rescan, opts ...Option) *Watcher {
	w := &Watcher{
		doc:      doc,
		rescan:   rescan,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Start subscribes to the document's mutations. The context bounds all
// re-scans the watcher will ever trigger; cancelling it effectively
// silences the watcher even before Close.
//
// If the document cannot deliver mutation notifications (already closed),
// Start returns the error and the caller is expected to degrade to
// initial-scan-only operation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return dom.ErrClosed
	}

	unsubscribe, err := w.doc.Subscribe(w.onMutation)
	if err != nil {
		return err
	}
	w.unsubscribe = unsubscribe
	w.ctx = ctx

	w.logger.Debug("watcher started",
		"document", w.doc.Name(),
		"debounce", w.debounce,
	)
	return nil
}

// onMutation inspects the added nodes of one mutation batch and, when
// any of them is or contains an anchor-like element, (re-)arms the
// debounce timer. A timer that has not fired yet is replaced, so rapid
// mutation bursts produce exactly one re-scan.
func (w *Watcher) onMutation(m dom.Mutation) {
	if !hasNewLinks(m) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)

	w.logger.Debug("re-scan scheduled",
		"document", w.doc.Name(),
		"added_nodes", len(m.Added),
	)
}

// fire runs when the debounce window closes without further mutations.
func (w *Watcher) fire() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	ctx := w.ctx
	w.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	w.logger.Debug("debounce elapsed, re-scanning", "document", w.doc.Name())
	w.rescan(ctx)
}

// Close detaches the watcher from the document and cancels a pending
// debounced re-scan. Safe to call multiple times.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.unsubscribe != nil {
		w.unsubscribe()
		w.unsubscribe = nil
	}

	w.logger.Debug("watcher closed", "document", w.doc.Name())
}

// hasNewLinks reports whether any added subtree carries an anchor-like
// element.
func hasNewLinks(m dom.Mutation) bool {
	for _, n := range m.Added {
		if dom.ContainsAnchor(n) {
			return true
		}
	}
	return false
}
