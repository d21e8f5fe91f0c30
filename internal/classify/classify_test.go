package classify

import (
	"testing"

	"github.com/linkarmor/linkarmor/internal/model"
)

// TestIsSpecial tests detection of non-navigable hrefs.
func TestIsSpecial(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		href string
		want bool
	}{
		{"empty href", "", true},
		{"whitespace only", "   ", true},
		{"bare fragment", "#", true},
		{"named fragment", "#section-2", true},
		{"javascript", "javascript:void(0)", true},
		{"javascript uppercase", "JAVASCRIPT:alert(1)", true},
		{"mailto", "mailto:admin@example.com", true},
		{"mailto mixed case", "MailTo:admin@example.com", true},
		{"tel", "tel:+1-555-0100", true},
		{"sms", "sms:+15550100", true},
		{"ftp", "ftp://files.example.com/a.zip", true},
		{"relative path", "/about", false},
		{"absolute http", "http://example.com", false},
		{"absolute https", "https://example.com", false},
		{"query only", "?page=2", false},
		{"data scheme is not special", "data:text/plain,hi", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsSpecial(tt.href); got != tt.want {
				t.Errorf("IsSpecial(%q) = %v, want %v", tt.href, got, tt.want)
			}
		})
	}
}

// TestIsExternal tests host-based external link detection.
func TestIsExternal(t *testing.T) {
	t.Parallel()

	identity := model.NewIdentity("example.com", "https")

	tests := []struct {
		name string
		href string
		want bool
	}{
		{"relative path", "/products", false},
		{"fragment", "#top", false},
		{"query", "?sort=asc", false},
		{"same host", "https://example.com/x", false},
		{"same host http", "http://example.com/x", false},
		{"same host uppercase", "HTTPS://EXAMPLE.COM/x", false},
		{"www variant of same host", "https://www.example.com/x", false},
		{"different host", "https://other.com/x", true},
		{"www variant of different host", "https://www.other.com/x", true},
		{"subdomain is a different host", "https://blog.example.com/x", true},
		{"protocol relative same host", "//example.com/x", false},
		{"protocol relative different host", "//other.com/x", true},
		{"unknown scheme", "gopher://example.org/1", false},
		{"data scheme", "data:text/plain,hi", false},
		{"bare word", "about.html", false},
		{"scheme without host", "http://", false},
		{"unparseable", "http://[::1]:namedport/", false},
		{"port ignored for comparison", "https://example.com:8443/x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsExternal(tt.href, identity); got != tt.want {
				t.Errorf("IsExternal(%q) = %v, want %v", tt.href, got, tt.want)
			}
		})
	}

	t.Run("empty identity treats all absolute links as external", func(t *testing.T) {
		t.Parallel()

		empty := model.NewIdentity("", "")
		if !IsExternal("https://anywhere.com/x", empty) {
			t.Error("expected absolute link to be external with empty identity")
		}
		if IsExternal("/still-relative", empty) {
			t.Error("expected relative link to stay internal with empty identity")
		}
	})

	t.Run("identity scheme completes protocol-relative hrefs", func(t *testing.T) {
		t.Parallel()

		httpID := model.NewIdentity("example.com", "http")
		if !IsExternal("//other.com/x", httpID) {
			t.Error("expected protocol-relative href to other.com to be external")
		}
		if IsExternal("//www.example.com/x", httpID) {
			t.Error("expected protocol-relative href to own host to be internal")
		}
	})
}

// TestClassify tests the combined classification entry point.
func TestClassify(t *testing.T) {
	t.Parallel()

	identity := model.NewIdentity("site.com", "https")

	tests := []struct {
		name     string
		href     string
		want     model.LinkClass
		wantHost string
	}{
		{"special wins over external", "mailto:a@other.com", model.ClassSpecial, ""},
		{"fragment", "#x", model.ClassSpecial, ""},
		{"internal relative", "/a", model.ClassInternal, ""},
		{"internal absolute", "https://www.site.com/a", model.ClassInternal, ""},
		{"external", "https://www.other.com/a", model.ClassExternal, "other.com"},
		{"external protocol relative", "//other.com/a", model.ClassExternal, "other.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			class, host := Classify(tt.href, identity)
			if class != tt.want {
				t.Errorf("Classify(%q) class = %v, want %v", tt.href, class, tt.want)
			}
			if host != tt.wantHost {
				t.Errorf("Classify(%q) host = %q, want %q", tt.href, host, tt.wantHost)
			}
		})
	}
}

// TestNormalizeHost tests www-stripping host normalization.
func TestNormalizeHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Example.COM", "example.com"},
		{"www.example.com", "example.com"},
		{"www.www.example.com", "www.example.com"},
		{"wwwexample.com", "wwwexample.com"},
		{" www.example.com ", "example.com"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeHost(tt.in); got != tt.want {
			t.Errorf("NormalizeHost(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
