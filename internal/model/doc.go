// Package model defines the core data structures shared across linkarmor.
// It contains the site identity used for link classification, the link
// classification vocabulary, and the rewrite report produced for each
// processed document.
package model
