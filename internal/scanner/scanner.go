package scanner

import (
	"context"
	"log/slog"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/linkarmor/linkarmor/internal/classify"
	"github.com/linkarmor/linkarmor/internal/dom"
	"github.com/linkarmor/linkarmor/internal/model"
	"github.com/linkarmor/linkarmor/internal/rewrite"
)

// DefaultChunkSize is the number of anchors processed per tick.
const DefaultChunkSize = 50

// Stats summarizes one scan pass. Only elements newly evaluated by the
// pass contribute findings; elements skipped because an earlier pass
// already processed them count toward Skipped.
type Stats struct {
	// Collected is the number of anchors present when the pass started.
	Collected int

	// Evaluated is the number of anchors classified by this pass.
	Evaluated int

	// Skipped counts anchors that were already processed or excluded by
	// an ignore selector.
	Skipped int

	// Rewritten counts anchors the mutator was applied to.
	Rewritten int

	// Findings holds the per-link outcomes of this pass.
	Findings []model.LinkFinding
}

// Scanner applies classification and rewriting to a document's anchors
// in chunked passes. A Scanner is bound to one document and one identity
// for its lifetime; create a new Scanner per document.
type Scanner struct {
	doc      *dom.Document
	identity model.Identity
	logger   *slog.Logger

	chunkSize       int
	sched           Scheduler
	relOpts         rewrite.Options
	ignoreSelectors []string

	// mu guards processed. Scan passes may overlap when the watcher
	// triggers a re-scan while an earlier pass is waiting between
	// chunks; membership is monotone so overlap only costs duplicate
	// skips, never duplicate mutation.
	mu        sync.Mutex
	processed map[*html.Node]struct{}
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithChunkSize sets the number of anchors handled per tick.
// Non-positive values keep the default.
func WithChunkSize(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithScheduler sets the yield primitive used between chunks.
func WithScheduler(sched Scheduler) Option {
	return func(s *Scanner) {
		if sched != nil {
			s.sched = sched
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRelTokens sets extra rel tokens merged into rewritten links.
func WithRelTokens(tokens []string) Option {
	return func(s *Scanner) {
		s.relOpts = rewrite.Options{ExtraRelTokens: tokens}
	}
}

// WithIgnoreSelectors sets CSS selectors whose matched subtrees are
// exempt from rewriting. Anchors inside them are marked processed and
// left untouched.
func WithIgnoreSelectors(selectors []string) Option {
	return func(s *Scanner) {
		s.ignoreSelectors = selectors
	}
}

// New creates a Scanner for the given document and identity.
func New(doc *dom.Document, identity model.Identity, opts ...Option) *Scanner {
	s := &Scanner{
		doc:       doc,
		identity:  identity,
		chunkSize: DefaultChunkSize,
		sched:     NewTickScheduler(DefaultTickInterval),
		processed: make(map[*html.Node]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// ProcessedCount returns the number of anchors evaluated so far across
// all passes.
func (s *Scanner) ProcessedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed)
}

// Scan runs one full pass over the document's current anchors.
// Anchors are visited in document order, chunkSize at a time, yielding
// on the scheduler between chunks. Returns the pass statistics.
//
// The anchor sequence is snapshotted once at the start; anchors inserted
// mid-pass are picked up by the next pass (normally triggered by the
// change watcher), not this one.
func (s *Scanner) Scan(ctx context.Context) (*Stats, error) {
	anchors, err := s.doc.Anchors()
	if err != nil {
		return nil, err
	}

	excluded, err := s.excludedNodes()
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Collected: len(anchors),
		Findings:  make([]model.LinkFinding, 0),
	}

	s.logger.Debug("scan pass started",
		"document", s.doc.Name(),
		"anchors", len(anchors),
		"chunk_size", s.chunkSize,
	)

	for _, b := range chunks(len(anchors), s.chunkSize) {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		if err := s.doc.Mutate(func(*html.Node) {
			s.processChunk(anchors[b.start:b.end], excluded, stats)
		}); err != nil {
			return stats, err
		}

		// Cooperative yield before the next chunk. The final chunk
		// does not wait; there is no more work to pace.
		if b.end < len(anchors) {
			if err := s.sched.Wait(ctx); err != nil {
				return stats, err
			}
		}
	}

	s.logger.Debug("scan pass finished",
		"document", s.doc.Name(),
		"evaluated", stats.Evaluated,
		"rewritten", stats.Rewritten,
		"skipped", stats.Skipped,
	)

	return stats, nil
}

// processChunk evaluates one contiguous run of anchors. Runs under the
// document write lock.
func (s *Scanner) processChunk(anchors []*html.Node, excluded map[*html.Node]struct{}, stats *Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range anchors {
		if _, done := s.processed[n]; done {
			stats.Skipped++
			continue
		}

		if s.isExcluded(n, excluded) {
			s.processed[n] = struct{}{}
			stats.Skipped++
			continue
		}

		// The collection snapshot required an href, but it may have
		// been removed since; an anchor without one is nothing to
		// classify.
		if !dom.HasAttr(n, "href") {
			s.processed[n] = struct{}{}
			stats.Skipped++
			continue
		}
		href := dom.GetAttr(n, "href")

		class, host := classify.Classify(href, s.identity)
		finding := model.LinkFinding{Href: href, Class: class, Host: host}

		if class == model.ClassExternal {
			rewrite.MarkExternal(n, s.relOpts)
			finding.Rewritten = true
			stats.Rewritten++
		}

		s.processed[n] = struct{}{}
		stats.Evaluated++
		stats.Findings = append(stats.Findings, finding)
	}
}

// excludedNodes resolves the configured ignore selectors against the
// current tree. Selector parse errors disable that selector only; a bad
// pattern must not stop the scan.
func (s *Scanner) excludedNodes() (map[*html.Node]struct{}, error) {
	if len(s.ignoreSelectors) == 0 {
		return nil, nil
	}

	excluded := make(map[*html.Node]struct{})
	err := s.doc.View(func(root *html.Node) {
		gq := goquery.NewDocumentFromNode(root)
		for _, sel := range s.ignoreSelectors {
			matcher, err := cascadia.Compile(sel)
			if err != nil {
				s.logger.Warn("ignoring invalid selector", "selector", sel, "error", err)
				continue
			}
			matched := gq.FindMatcher(matcher)
			for _, n := range matched.Nodes {
				excluded[n] = struct{}{}
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return excluded, nil
}

// isExcluded reports whether n or any ancestor is in the excluded set.
// Caller holds s.mu; tree reads are covered by the document lock held by
// processChunk's caller.
func (s *Scanner) isExcluded(n *html.Node, excluded map[*html.Node]struct{}) bool {
	if len(excluded) == 0 {
		return false
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if _, ok := excluded[cur]; ok {
			return true
		}
	}
	return false
}

// chunk is a contiguous half-open cursor [start, end) over the anchor
// sequence.
type chunk struct {
	start, end int
}

// chunks splits n items into contiguous, non-overlapping runs of at most
// size items that together cover the full range.
func chunks(n, size int) []chunk {
	if n <= 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	out := make([]chunk, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, chunk{start: start, end: end})
	}
	return out
}
