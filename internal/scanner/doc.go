// Package scanner walks a document's anchor elements in document order,
// classifies each against the site identity, and rewrites external links
// to open in a new browsing context.
//
// # Batching
//
// Work is split into fixed-size contiguous chunks over the anchor
// sequence collected at scan start. Between chunks the scanner waits on
// a Scheduler tick, so one scan pass never holds the document lock (or
// the host's attention) for more than one chunk of work at a time.
//
// # Processed set
//
// Each Scanner instance owns a set of already-evaluated nodes keyed by
// node identity. A node is evaluated at most once for the scanner's
// lifetime; its classification is not revisited even if the href changes
// later. Overlapping scan passes are therefore safe: the second pass
// skips everything the first already handled, and the mutation itself is
// idempotent. The set lives exactly as long as the Scanner (one document
// session), so entries never outlive the tree they point into.
package scanner
