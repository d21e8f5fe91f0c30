// Package rewrite applies the open-in-new-context transformation to a
// single anchor element: target="_blank" plus a noopener rel token.
//
// The transformation is idempotent and strictly additive on rel: existing
// tokens such as nofollow are preserved, nothing is duplicated, and a
// noreferrer token is never introduced — outbound referrer information is
// deliberately kept intact so destination sites retain attribution.
package rewrite
