// Package dom wraps a parsed HTML tree (golang.org/x/net/html) in a
// Document type that the rest of linkarmor works against.
//
// # Architecture
//
// Document owns the node tree and serializes access to it: reads go
// through View, structural and attribute mutations go through Mutate.
// Content is inserted through the Document's own API (AppendHTML,
// Reload), which is also how mutation notifications are produced —
// subscribers receive the set of added nodes after each insertion, the
// way a browser mutation observer reports added subtrees.
//
// Design decision: We use golang.org/x/net/html directly rather than a
// higher-level DOM library because:
//  1. It correctly handles malformed HTML common on the web
//  2. Node identity (pointer equality) gives us cheap processed-set
//     membership without tagging elements
//  3. Rendering round-trips the document with minimal churn
//
// Character encodings are handled on ingestion via
// golang.org/x/net/html/charset, so documents declared as Shift_JIS or
// ISO-8859-1 parse correctly.
package dom
