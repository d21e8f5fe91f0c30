package model

import "strings"

// DefaultScheme is used when no scheme is configured for a site identity.
// HTTPS is the safe assumption for modern sites and only affects how
// protocol-relative hrefs ("//host/path") are resolved.
const DefaultScheme = "https"

// Identity describes the site a document belongs to. Links whose host
// differs from the identity host (after normalization) are considered
// external and get rewritten.
//
// Design decision: The identity is supplied by the caller and passed
// explicitly into classification rather than read from process-global
// state. This allows multiple independent rewrite sessions (and tests)
// to run without cross-contamination.
type Identity struct {
	// Host is the site's own host name, e.g. "example.com".
	// An empty host is valid: with no identity to compare against,
	// every absolute http(s) link classifies as external. This is the
	// intended conservative behavior for unconfigured sites.
	Host string `json:"host" yaml:"host"`

	// Scheme is the site's scheme, "http" or "https". Used only to
	// complete protocol-relative hrefs before parsing. Empty means
	// DefaultScheme.
	Scheme string `json:"scheme" yaml:"scheme"`
}

// NewIdentity creates an Identity, applying the default scheme when none
// is given. The host is lowered but otherwise kept as supplied; the
// "www." normalization happens at comparison time, not here, so the
// configured value round-trips unchanged into reports.
func NewIdentity(host, scheme string) Identity {
	if scheme == "" {
		scheme = DefaultScheme
	}
	return Identity{
		Host:   strings.ToLower(strings.TrimSpace(host)),
		Scheme: strings.ToLower(strings.TrimSpace(scheme)),
	}
}

// EffectiveScheme returns the identity's scheme, falling back to
// DefaultScheme for the zero value.
func (i Identity) EffectiveScheme() string {
	if i.Scheme == "" {
		return DefaultScheme
	}
	return i.Scheme
}

// IsZero reports whether no host was configured.
func (i Identity) IsZero() bool {
	return i.Host == ""
}
