// Package classify decides how a hyperlink relates to the site it appears
// on. It distinguishes special (non-navigable) hrefs, internal links, and
// external links whose host differs from the configured site identity.
//
// Classification is deliberately conservative in both directions: a link
// that cannot be confidently classified as external is treated as
// internal, because mutating an internal link changes user navigation
// while missing an external link only skips an enhancement. All functions
// are pure; the site identity is passed in explicitly so independent
// sessions never share state.
package classify
