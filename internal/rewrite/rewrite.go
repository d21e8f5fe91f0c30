package rewrite

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/linkarmor/linkarmor/internal/dom"
)

const (
	// TargetBlank opens the link in a new browsing context.
	TargetBlank = "_blank"

	// RelNoOpener prevents the opened context from reaching back to the
	// opener window via script (reverse tab-nabbing).
	RelNoOpener = "noopener"

	// relNoReferrer suppresses the Referer header on navigation. We
	// never add it — referrer preservation on outbound links is a
	// product requirement — and we refuse it even when configured as an
	// extra token.
	relNoReferrer = "noreferrer"
)

// Options adjusts the transformation.
type Options struct {
	// ExtraRelTokens are additional rel tokens to merge in alongside
	// noopener, e.g. "nofollow" or "external". Tokens equal to
	// noreferrer are silently dropped.
	ExtraRelTokens []string
}

// MarkExternal rewrites one anchor-like element to open externally.
// Callers must hold the owning document's write lock (dom.Document.Mutate)
// when the node is shared.
//
// Calling MarkExternal repeatedly on the same node is a no-op after the
// first call: the target attribute is simply overwritten with the same
// value and token merging never duplicates.
func MarkExternal(n *html.Node, opts Options) {
	dom.SetAttr(n, "target", TargetBlank)

	tokens := mergeRelTokens(dom.GetAttr(n, "rel"), opts.ExtraRelTokens)
	dom.SetAttr(n, "rel", strings.Join(tokens, " "))
}

// mergeRelTokens merges noopener and any extra tokens into an existing
// rel attribute value. Existing tokens keep their original order and
// spelling; rel token comparison is case-insensitive per the HTML spec,
// so "NoOpener" already present blocks adding another.
func mergeRelTokens(existing string, extra []string) []string {
	tokens := strings.Fields(existing)
	seen := make(map[string]bool, len(tokens)+1+len(extra))
	for _, tok := range tokens {
		seen[strings.ToLower(tok)] = true
	}

	add := func(tok string) {
		lower := strings.ToLower(tok)
		if lower == "" || lower == relNoReferrer || seen[lower] {
			return
		}
		seen[lower] = true
		tokens = append(tokens, tok)
	}

	add(RelNoOpener)
	for _, tok := range extra {
		add(strings.TrimSpace(tok))
	}
	return tokens
}
