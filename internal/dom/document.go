package dom

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/sha3"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// ErrClosed is returned when an operation is attempted on a closed
// document.
var ErrClosed = errors.New("document is closed")

// Mutation describes one batch of structural changes to the document.
// Only added nodes are reported; removals and attribute changes are not
// observed, so a link whose href changes after it was first evaluated
// keeps its original classification.
type Mutation struct {
	// Added holds the roots of the inserted subtrees, in insertion
	// order. Descendants are not listed individually; observers that
	// care about descendants walk the subtree themselves.
	Added []*html.Node
}

// MutationFunc receives mutation notifications. Callbacks run on the
// goroutine that performed the insertion, after the tree lock has been
// released, so they may call back into the Document.
type MutationFunc func(Mutation)

// Document owns a parsed HTML tree and coordinates access to it.
// All exported methods are safe for concurrent use.
type Document struct {
	mu     sync.RWMutex
	root   *html.Node
	name   string
	closed bool

	readyOnce sync.Once
	ready     chan struct{}

	subMu  sync.Mutex
	subs   map[int]MutationFunc
	nextID int
}

// Parse reads and parses an HTML document. The reader's content is
// decoded according to contentType (pass "" to sniff), so non-UTF-8
// documents are handled. The returned document is immediately ready.
func Parse(r io.Reader, name, contentType string) (*Document, error) {
	decoded, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to detect document encoding: %w", err)
	}

	root, err := html.Parse(decoded)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	d := newDocument(name)
	d.root = root
	d.markReady()
	return d, nil
}

// ParseString parses an in-memory HTML string. Used mostly by tests.
func ParseString(content, name string) (*Document, error) {
	return Parse(strings.NewReader(content), name, "text/html; charset=utf-8")
}

// NewPending creates a document whose content has not loaded yet.
// Ready() stays open until Load is called; a lifecycle controller built
// on such a document defers its initial scan until then.
func NewPending(name string) *Document {
	return newDocument(name)
}

func newDocument(name string) *Document {
	return &Document{
		name:  name,
		ready: make(chan struct{}),
		subs:  make(map[int]MutationFunc),
	}
}

// Name returns the document's display name (usually its file path).
func (d *Document) Name() string {
	return d.name
}

// Ready returns a channel that is closed once the document has content.
func (d *Document) Ready() <-chan struct{} {
	return d.ready
}

// IsReady reports whether the document has content.
func (d *Document) IsReady() bool {
	select {
	case <-d.ready:
		return true
	default:
		return false
	}
}

func (d *Document) markReady() {
	d.readyOnce.Do(func() { close(d.ready) })
}

// Load parses content into a pending document and marks it ready.
// Loading an already-ready document replaces its tree without emitting
// mutations; use Reload for that.
func (d *Document) Load(r io.Reader, contentType string) error {
	decoded, err := charset.NewReader(r, contentType)
	if err != nil {
		return fmt.Errorf("failed to detect document encoding: %w", err)
	}
	root, err := html.Parse(decoded)
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.root = root
	d.mu.Unlock()

	d.markReady()
	return nil
}

// View runs fn with read access to the document root. The tree must not
// be modified inside fn.
func (d *Document) View(fn func(root *html.Node)) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed || d.root == nil {
		return ErrClosed
	}
	fn(d.root)
	return nil
}

// Mutate runs fn with exclusive access to the document root. Use this
// for attribute changes; structural insertions should go through
// AppendHTML or Reload so observers are notified.
func (d *Document) Mutate(fn func(root *html.Node)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.root == nil {
		return ErrClosed
	}
	fn(d.root)
	return nil
}

// AppendHTML parses an HTML fragment in the context of the document body
// and appends the resulting nodes to it. Subscribers are notified with
// the inserted roots. Returns the inserted nodes.
func (d *Document) AppendHTML(fragment string) ([]*html.Node, error) {
	d.mu.Lock()
	if d.closed || d.root == nil {
		d.mu.Unlock()
		return nil, ErrClosed
	}

	body := findElement(d.root, atom.Body)
	if body == nil {
		d.mu.Unlock()
		return nil, errors.New("document has no body element")
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	d.mu.Unlock()

	if len(nodes) > 0 {
		d.notify(Mutation{Added: nodes})
	}
	return nodes, nil
}

// Reload replaces the document content with a freshly parsed tree and
// notifies subscribers with the new body's element children as added
// nodes. This is how externally rewritten source files (watch mode) feed
// back into a live document.
func (d *Document) Reload(r io.Reader, contentType string) error {
	decoded, err := charset.NewReader(r, contentType)
	if err != nil {
		return fmt.Errorf("failed to detect document encoding: %w", err)
	}
	root, err := html.Parse(decoded)
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.root = root
	added := make([]*html.Node, 0)
	if body := findElement(root, atom.Body); body != nil {
		for c := body.FirstChild; c != nil; c = c.NextSibling {
			added = append(added, c)
		}
	}
	d.mu.Unlock()

	d.markReady()
	if len(added) > 0 {
		d.notify(Mutation{Added: added})
	}
	return nil
}

// Subscribe registers a mutation observer and returns a function that
// removes it. Subscribing to a closed document returns ErrClosed; the
// caller is expected to degrade to scan-only operation in that case.
func (d *Document) Subscribe(fn MutationFunc) (func(), error) {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	d.subMu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = fn
	d.subMu.Unlock()

	return func() {
		d.subMu.Lock()
		delete(d.subs, id)
		d.subMu.Unlock()
	}, nil
}

// notify delivers a mutation to all subscribers. Called without the tree
// lock held so observers may read the document.
func (d *Document) notify(m Mutation) {
	d.subMu.Lock()
	fns := make([]MutationFunc, 0, len(d.subs))
	for _, fn := range d.subs {
		fns = append(fns, fn)
	}
	d.subMu.Unlock()

	for _, fn := range fns {
		fn(m)
	}
}

// Anchors returns all anchor-like elements (a, area) carrying an href
// attribute, in document order. The slice is a snapshot; elements added
// after the call are not included.
func (d *Document) Anchors() ([]*html.Node, error) {
	var anchors []*html.Node
	err := d.View(func(root *html.Node) {
		walk(root, func(n *html.Node) {
			if IsAnchor(n) && HasAttr(n, "href") {
				anchors = append(anchors, n)
			}
		})
	})
	if err != nil {
		return nil, err
	}
	return anchors, nil
}

// Render serializes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed || d.root == nil {
		return ErrClosed
	}
	return html.Render(w, d.root)
}

// ContentHash returns the SHA3-256 hex digest of the rendered document.
// Two documents with the same serialized form hash equal, which is what
// the audit trail and watch-mode change detection need.
func (d *Document) ContentHash() (string, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return "", err
	}
	sum := sha3.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// Close marks the document as torn down. Subsequent operations return
// ErrClosed and no further mutations are delivered.
func (d *Document) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.subMu.Lock()
	d.subs = make(map[int]MutationFunc)
	d.subMu.Unlock()
}

// walk visits n and all descendants in document order.
func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// findElement returns the first element with the given atom, or nil.
func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
