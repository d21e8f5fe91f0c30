package config

// SiteConfig holds site-specific configuration for a single host.
// This allows customizing rewrite behavior per site when one config file
// covers several properties.
type SiteConfig struct {
	// Scheme overrides the scheme used to complete protocol-relative
	// hrefs for this site. Empty means the global default.
	Scheme string `yaml:"scheme,omitempty"`

	// RelTokens are extra rel tokens merged into rewritten links in
	// addition to noopener, e.g. ["nofollow", "external"].
	RelTokens []string `yaml:"relTokens,omitempty"`

	// IgnoreSelectors are CSS selectors whose matched subtrees are left
	// untouched, e.g. [".partner-links", "nav.social"].
	IgnoreSelectors []string `yaml:"ignoreSelectors,omitempty"`

	// ChunkSize overrides the global anchor chunk size for this site.
	// If zero, the global value is used.
	ChunkSize int `yaml:"chunkSize,omitempty"`
}

// File represents the structure of the .linkarmor configuration file.
type File struct {
	// Sites maps host names to their site-specific configurations.
	// Keys are bare hosts without a scheme (e.g. "example.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a specific host.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	// Start with defaults
	result := cf.Defaults

	// Override with site-specific configuration if present
	if siteConfig, ok := cf.Sites[host]; ok {
		if siteConfig.Scheme != "" {
			result.Scheme = siteConfig.Scheme
		}
		if siteConfig.ChunkSize != 0 {
			result.ChunkSize = siteConfig.ChunkSize
		}
		if len(siteConfig.RelTokens) > 0 {
			result.RelTokens = siteConfig.RelTokens
		}
		if len(siteConfig.IgnoreSelectors) > 0 {
			result.IgnoreSelectors = siteConfig.IgnoreSelectors
		}
	}

	return result
}

// Apply merges a site configuration into the top-level Config. Values
// already set by CLI flags win over the file; only unset (zero) fields
// are filled in.
func (c *Config) Apply(sc SiteConfig) {
	if c.SiteScheme == "" || c.SiteScheme == DefaultScheme {
		if sc.Scheme != "" {
			c.SiteScheme = sc.Scheme
		}
	}
	if len(c.RelTokens) == 0 {
		c.RelTokens = sc.RelTokens
	}
	if len(c.IgnoreSelectors) == 0 {
		c.IgnoreSelectors = sc.IgnoreSelectors
	}
	if c.ChunkSize == DefaultChunkSize && sc.ChunkSize > 0 {
		c.ChunkSize = sc.ChunkSize
	}
}
