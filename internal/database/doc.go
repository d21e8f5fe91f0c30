// Package database provides SQLite-based storage for rewrite run history.
//
// Every completed run can be persisted with its counters, external
// domain list, and document content hash, so later runs can tell
// whether a document changed and operators can audit which sites a
// document links out to over time. The store backs the history command.
package database
