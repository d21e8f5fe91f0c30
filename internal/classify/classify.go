package classify

import (
	"net/url"
	"strings"

	"github.com/linkarmor/linkarmor/internal/model"
)

// specialPrefixes are reserved non-navigable protocols. Links using them
// must never be rewritten: opening a mailto: or tel: href in a new
// browsing context breaks the handler dispatch on several platforms.
// Matching is a case-insensitive prefix check, not a full URL parse,
// because these hrefs are frequently malformed in the wild.
var specialPrefixes = []string{
	"javascript:",
	"mailto:",
	"tel:",
	"sms:",
	"ftp:",
}

// IsSpecial reports whether an href is non-navigable and must be left
// untouched. Empty hrefs, same-page anchors ("#..."), and the reserved
// protocols all qualify.
func IsSpecial(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" {
		return true
	}
	if strings.HasPrefix(href, "#") {
		return true
	}

	lower := strings.ToLower(href)
	for _, prefix := range specialPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// IsExternal reports whether an href points at a host other than the
// site identity's host. The decision tree, in order:
//
//  1. Protocol-relative hrefs ("//host/path") are completed with the
//     identity scheme before parsing.
//  2. Site-relative hrefs ("/", "#", "?" prefixes) are internal.
//  3. Anything not starting with http:// or https:// is internal.
//     Unknown schemes cannot be compared by host, so the conservative
//     answer is "not external".
//  4. Parse failures are internal. A link we cannot parse is a link we
//     must not touch.
//  5. Otherwise the hosts are compared after normalization (lowercase,
//     one leading "www." label stripped). External iff they differ.
//
// With an empty identity host every absolute http(s) link compares as
// external. That is intentional: an unconfigured site has no notion of
// "same host", and opening outbound links in a new context is the safe
// default there.
func IsExternal(href string, identity model.Identity) bool {
	href = strings.TrimSpace(href)
	if href == "" {
		return false
	}

	// Protocol-relative must be recognized before the single-slash
	// check below swallows it.
	if strings.HasPrefix(href, "//") {
		href = identity.EffectiveScheme() + ":" + href
	} else {
		switch href[0] {
		case '/', '#', '?':
			return false
		}
	}

	lower := strings.ToLower(href)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}

	u, err := url.Parse(href)
	if err != nil {
		return false
	}

	host := NormalizeHost(u.Hostname())
	if host == "" {
		// An absolute URL without a host (e.g. "http://") cannot be
		// confidently external.
		return false
	}

	return host != NormalizeHost(identity.Host)
}

// Classify combines IsSpecial and IsExternal into a single decision.
// It returns the class and, for external links, the normalized target
// host.
func Classify(href string, identity model.Identity) (model.LinkClass, string) {
	if IsSpecial(href) {
		return model.ClassSpecial, ""
	}
	if IsExternal(href, identity) {
		return model.ClassExternal, TargetHost(href, identity)
	}
	return model.ClassInternal, ""
}

// TargetHost returns the normalized host an href points at, or the empty
// string when the href has no parseable absolute http(s) host.
func TargetHost(href string, identity model.Identity) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = identity.EffectiveScheme() + ":" + href
	}

	lower := strings.ToLower(href)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return NormalizeHost(u.Hostname())
}

// NormalizeHost lowercases a host and strips a single leading "www."
// label so that "www.example.com" and "example.com" compare equal.
// Only one label is stripped: "www.www.example.com" normalizes to
// "www.example.com", which is a different host.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}
