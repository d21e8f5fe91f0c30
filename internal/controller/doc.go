// Package controller wires a document, scanner, and watcher into one
// rewrite session with a defined lifecycle.
//
// Start waits for the document to have content, runs one full scan pass,
// and then attaches the change watcher so dynamically inserted links are
// picked up. Close detaches the watcher and cancels any pending
// debounced re-scan, so no scheduled work outlives the session.
//
// Each Controller owns its own scanner state; two controllers over two
// documents never share anything, which keeps parallel sessions (and
// tests) independent.
package controller
