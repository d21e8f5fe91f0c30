// Package watcher observes structural document mutations and triggers
// debounced re-scans when inserted content carries links.
//
// Only added nodes are inspected. Removals are irrelevant (a removed
// link needs no rewriting) and attribute changes are deliberately not
// observed: an element keeps the classification it got when first
// evaluated, even if its href is changed afterwards.
//
// Bursts of insertions collapse into a single re-scan: each qualifying
// mutation re-arms a debounce timer, and only the timer's expiry starts
// the scan. Closing the watcher cancels a pending timer so no scheduled
// work survives document teardown.
package watcher
