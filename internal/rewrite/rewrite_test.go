package rewrite

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/linkarmor/linkarmor/internal/dom"
)

// newAnchor builds a detached anchor node with the given attributes.
func newAnchor(attrs map[string]string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.A,
		Data:     "a",
	}
	for k, v := range attrs {
		n.Attr = append(n.Attr, html.Attribute{Key: k, Val: v})
	}
	return n
}

// relTokens returns the sorted lowercase rel tokens of a node.
func relTokens(n *html.Node) []string {
	tokens := strings.Fields(strings.ToLower(dom.GetAttr(n, "rel")))
	sort.Strings(tokens)
	return tokens
}

// TestMarkExternal tests the open-externally transformation.
func TestMarkExternal(t *testing.T) {
	t.Parallel()

	t.Run("sets target and noopener", func(t *testing.T) {
		t.Parallel()

		n := newAnchor(map[string]string{"href": "https://other.com"})
		MarkExternal(n, Options{})

		if got := dom.GetAttr(n, "target"); got != TargetBlank {
			t.Errorf("expected target %q, got %q", TargetBlank, got)
		}
		if got := dom.GetAttr(n, "rel"); got != RelNoOpener {
			t.Errorf("expected rel %q, got %q", RelNoOpener, got)
		}
	})

	t.Run("preserves existing rel tokens", func(t *testing.T) {
		t.Parallel()

		n := newAnchor(map[string]string{"href": "https://other.com", "rel": "nofollow"})
		MarkExternal(n, Options{})

		got := relTokens(n)
		want := []string{"nofollow", "noopener"}
		if len(got) != len(want) {
			t.Fatalf("expected tokens %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("expected tokens %v, got %v", want, got)
			}
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()

		n := newAnchor(map[string]string{"href": "https://other.com", "rel": "nofollow"})
		MarkExternal(n, Options{})
		first := dom.GetAttr(n, "rel")
		MarkExternal(n, Options{})
		second := dom.GetAttr(n, "rel")

		if first != second {
			t.Errorf("expected idempotent rel, got %q then %q", first, second)
		}
		if strings.Count(strings.ToLower(second), RelNoOpener) != 1 {
			t.Errorf("expected exactly one noopener token, got %q", second)
		}
	})

	t.Run("case-insensitive duplicate detection", func(t *testing.T) {
		t.Parallel()

		n := newAnchor(map[string]string{"href": "https://other.com", "rel": "NoOpener"})
		MarkExternal(n, Options{})

		if got := dom.GetAttr(n, "rel"); got != "NoOpener" {
			t.Errorf("expected existing spelling to be kept untouched, got %q", got)
		}
	})

	t.Run("never adds noreferrer", func(t *testing.T) {
		t.Parallel()

		n := newAnchor(map[string]string{"href": "https://other.com"})
		MarkExternal(n, Options{ExtraRelTokens: []string{"noreferrer", "nofollow"}})

		tokens := relTokens(n)
		for _, tok := range tokens {
			if tok == "noreferrer" {
				t.Fatalf("noreferrer must never be added, got rel tokens %v", tokens)
			}
		}
		found := false
		for _, tok := range tokens {
			if tok == "nofollow" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected configured nofollow token, got %v", tokens)
		}
	})

	t.Run("preserves author-set noreferrer", func(t *testing.T) {
		t.Parallel()

		// Additive only: we never add noreferrer, but we also never
		// strip tokens the author put there.
		n := newAnchor(map[string]string{"href": "https://other.com", "rel": "noreferrer"})
		MarkExternal(n, Options{})

		tokens := relTokens(n)
		want := []string{"noopener", "noreferrer"}
		if len(tokens) != 2 || tokens[0] != want[0] || tokens[1] != want[1] {
			t.Errorf("expected tokens %v, got %v", want, tokens)
		}
	})

	t.Run("overwrites existing target", func(t *testing.T) {
		t.Parallel()

		n := newAnchor(map[string]string{"href": "https://other.com", "target": "_self"})
		MarkExternal(n, Options{})
		if got := dom.GetAttr(n, "target"); got != TargetBlank {
			t.Errorf("expected target %q, got %q", TargetBlank, got)
		}
	})
}
