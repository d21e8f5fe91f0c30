// Package log provides a sanitizing slog handler for linkarmor.
//
// The tool logs href values constantly, and real-world hrefs carry
// secrets: session tokens in query strings, credentials in the URL
// userinfo section, signed download links. The handler scrubs those from
// every attribute before the record reaches the underlying handler, so
// no call site has to remember to do it.
package log
