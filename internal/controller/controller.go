package controller

import (
	"context"
	"log/slog"
	"sync"

	"github.com/linkarmor/linkarmor/internal/dom"
	"github.com/linkarmor/linkarmor/internal/model"
	"github.com/linkarmor/linkarmor/internal/scanner"
	"github.com/linkarmor/linkarmor/internal/watcher"
)

// Controller owns one document rewrite session.
type Controller struct {
	doc      *dom.Document
	identity model.Identity
	logger   *slog.Logger

	scanOpts []scanner.Option
	debounce []watcher.Option
	onRescan func(*scanner.Stats)

	mu      sync.Mutex
	scanner *scanner.Scanner
	watcher *watcher.Watcher
	started bool
	closed  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets a custom logger, also inherited by the scanner and
// watcher the controller creates.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithScannerOptions forwards options to the controller's scanner.
func WithScannerOptions(opts ...scanner.Option) Option {
	return func(c *Controller) {
		c.scanOpts = append(c.scanOpts, opts...)
	}
}

// WithWatcherOptions forwards options to the controller's watcher.
func WithWatcherOptions(opts ...watcher.Option) Option {
	return func(c *Controller) {
		c.debounce = append(c.debounce, opts...)
	}
}

// WithRescanHook registers fn to run after each watcher-triggered
// re-scan completes. Watch mode uses this to persist the document after
// dynamic content settles.
func WithRescanHook(fn func(*scanner.Stats)) Option {
	return func(c *Controller) {
		c.onRescan = fn
	}
}

// New creates a Controller for the document. The identity's scheme is
// defaulted if empty; an empty host is accepted and simply makes every
// absolute link external.
func New(doc *dom.Document, identity model.Identity, opts ...Option) *Controller {
	c := &Controller{
		doc:      doc,
		identity: model.NewIdentity(identity.Host, identity.Scheme),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Start runs the session: wait for document content, run the initial
// scan pass, then attach the change watcher. Returns the initial pass
// statistics.
//
// If the watcher cannot attach, the error is logged and the session
// continues in scan-only mode; dynamically inserted links will then not
// be processed. Only the initial scan failing is a hard error.
func (c *Controller) Start(ctx context.Context) (*scanner.Stats, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.doc.Ready():
	}

	s := scanner.New(c.doc, c.identity,
		append([]scanner.Option{scanner.WithLogger(c.logger)}, c.scanOpts...)...)

	c.mu.Lock()
	c.scanner = s
	c.mu.Unlock()

	stats, err := s.Scan(ctx)
	if err != nil {
		return stats, err
	}

	c.logger.Info("initial scan complete",
		"document", c.doc.Name(),
		"site", c.identity.Host,
		"links", stats.Collected,
		"rewritten", stats.Rewritten,
	)

	w := watcher.New(c.doc, c.rescan,
		append([]watcher.Option{watcher.WithLogger(c.logger)}, c.debounce...)...)
	if err := w.Start(ctx); err != nil {
		// Accepted degradation: the initial pass stands, new content
		// just will not be re-scanned.
		c.logger.Warn("change watching unavailable, running scan-only",
			"document", c.doc.Name(),
			"error", err,
		)
		return stats, nil
	}

	c.mu.Lock()
	if c.closed {
		// Closed while we were starting the watcher.
		c.mu.Unlock()
		w.Close()
		return stats, nil
	}
	c.watcher = w
	c.mu.Unlock()

	return stats, nil
}

// rescan is the watcher's debounced callback.
func (c *Controller) rescan(ctx context.Context) {
	c.mu.Lock()
	s := c.scanner
	closed := c.closed
	c.mu.Unlock()
	if closed || s == nil {
		return
	}

	stats, err := s.Scan(ctx)
	if err != nil {
		c.logger.Warn("re-scan aborted",
			"document", c.doc.Name(),
			"error", err,
		)
		return
	}
	c.logger.Info("re-scan complete",
		"document", c.doc.Name(),
		"evaluated", stats.Evaluated,
		"rewritten", stats.Rewritten,
	)

	if c.onRescan != nil {
		c.onRescan(stats)
	}
}

// Scanner returns the session's scanner, or nil before Start.
func (c *Controller) Scanner() *scanner.Scanner {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scanner
}

// Close tears the session down: the watcher is detached and any pending
// debounced re-scan is cancelled. Safe to call multiple times. The
// document itself is left open; the caller owns it.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	w := c.watcher
	c.watcher = nil
	c.mu.Unlock()

	if w != nil {
		w.Close()
	}
}
