// Package main provides the entry point for the linkarmor CLI.
//
// linkarmor rewrites external hyperlinks in HTML documents so they open
// in a new browsing context with target="_blank" and rel="noopener".
// Same-site links are left untouched.
//
// Usage:
//
//	linkarmor rewrite --site example.com index.html
//	linkarmor watch --site example.com public/*.html
//
// See --help for all available options.
package main

// main is the entry point for linkarmor.
func main() {
	Execute()
}
