package model

// LinkClass categorizes a hyperlink relative to the site identity.
//
// Design decision: We use iota-based constants rather than string
// constants for efficiency in comparisons and aggregation. The String()
// method provides human-readable output when needed.
type LinkClass int

const (
	// ClassInternal indicates a link that stays on the site: relative
	// paths, fragments, query-only hrefs, and absolute URLs whose
	// normalized host equals the identity host. Also the fallback for
	// anything that cannot be confidently classified, because rewriting
	// an internal link changes user navigation while missing an
	// external one merely skips an enhancement.
	ClassInternal LinkClass = iota

	// ClassExternal indicates an absolute http(s) link whose normalized
	// host differs from the identity host. These links are rewritten to
	// open in a new browsing context.
	ClassExternal

	// ClassSpecial indicates a non-navigable href: empty, same-page
	// anchors, and reserved protocols (javascript:, mailto:, tel:,
	// sms:, ftp:). Special links are never mutated.
	ClassSpecial
)

// String returns a human-readable representation of the link class.
func (c LinkClass) String() string {
	switch c {
	case ClassInternal:
		return "internal"
	case ClassExternal:
		return "external"
	case ClassSpecial:
		return "special"
	default:
		return "unknown"
	}
}

// LinkFinding records the classification outcome for a single anchor.
// Findings are collected into the RewriteReport for auditing and report
// output; they do not reference DOM nodes so they stay serializable.
type LinkFinding struct {
	// Href is the raw href attribute value as found in the document.
	Href string `json:"href"`

	// Class is the classification result.
	Class LinkClass `json:"-"`

	// ClassText is the string form of Class, included for JSON output.
	ClassText string `json:"class"`

	// Host is the normalized target host for external links, empty
	// otherwise.
	Host string `json:"host,omitempty"`

	// Rewritten reports whether the mutator was applied to the element.
	// Only external links are ever rewritten, and an element already
	// carrying the full attribute set still counts as rewritten because
	// the mutation is idempotent.
	Rewritten bool `json:"rewritten"`
}
