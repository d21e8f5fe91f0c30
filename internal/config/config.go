package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values. These match the behavior of the original
// in-page script where applicable.
const (
	// DefaultScheme is assumed when a site's scheme is not configured.
	// It only affects how protocol-relative hrefs are completed.
	DefaultScheme = "https"

	// DefaultChunkSize is the number of anchors processed per scheduler
	// tick. 50 keeps per-tick work small enough that a document shared
	// with other consumers stays responsive, while a typical page still
	// finishes within a handful of ticks.
	DefaultChunkSize = 50

	// DefaultTickInterval approximates one display frame and paces the
	// chunks of a scan pass.
	DefaultTickInterval = 16 * time.Millisecond

	// DefaultDebounce is the quiet period after a link-bearing mutation
	// before a re-scan runs. Bursts of insertions within this window
	// collapse into a single pass.
	DefaultDebounce = 100 * time.Millisecond

	// DefaultBatchSize is the number of documents processed concurrently
	// when rewriting multiple files. Document rewriting is CPU-light and
	// I/O-heavy, so a moderate degree of parallelism is enough.
	DefaultBatchSize = 8

	// DefaultPollInterval is how often watch mode checks source files
	// for changes.
	DefaultPollInterval = time.Second

	// AppName is the application name used for XDG directory paths.
	AppName = "linkarmor"
)

// Config holds all configuration options for linkarmor.
// This struct is populated from CLI flags and passed through the
// application via dependency injection rather than global state.
type Config struct {
	// SiteHost is the site's own host name. Links to any other host are
	// rewritten. Empty means no identity is configured, in which case
	// every absolute http(s) link is treated as external.
	SiteHost string

	// SiteScheme is the site's scheme, used to complete protocol-relative
	// hrefs. Empty means DefaultScheme.
	SiteScheme string

	// ChunkSize is the number of anchors processed per scheduler tick.
	ChunkSize int

	// TickInterval is the pause between scan chunks.
	TickInterval time.Duration

	// Debounce is the quiet period before a mutation-triggered re-scan.
	Debounce time.Duration

	// RelTokens are extra rel tokens merged into rewritten links in
	// addition to noopener (e.g. "nofollow"). A configured "noreferrer"
	// is refused by the mutator.
	RelTokens []string

	// IgnoreSelectors are CSS selectors whose matched subtrees are
	// exempt from rewriting.
	IgnoreSelectors []string

	// BatchSize is the number of documents rewritten concurrently.
	BatchSize int

	// PollInterval is the file change poll interval for watch mode.
	PollInterval time.Duration

	// Targets is the list of HTML files to process. The single entry
	// "-" means stdin.
	Targets []string

	// WriteInPlace rewrites each target file in place. Mutually
	// exclusive with OutputPath.
	WriteInPlace bool

	// OutputPath is where the rewritten document is written. Empty
	// means stdout. Only valid with a single target.
	OutputPath string

	// JSONReport enables JSON report output instead of the human-readable
	// format. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report. When empty the
	// report goes to stderr so it never mixes with a document written
	// to stdout.
	ReportFile string

	// DBDir is the directory holding the SQLite audit database. Runs
	// are recorded there when SaveToDB is true.
	DBDir string

	// SaveToDB enables persisting rewrite runs to the audit database.
	SaveToDB bool

	// ConfigFilePath is the path to the configuration file. If empty,
	// the tool searches for .linkarmor in the current directory and
	// then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds per-site configurations loaded from the config
	// file.
	SiteConfigs *File

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (chunk size, debounce,
// intervals). This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		SiteScheme:   DefaultScheme,
		ChunkSize:    DefaultChunkSize,
		TickInterval: DefaultTickInterval,
		Debounce:     DefaultDebounce,
		BatchSize:    DefaultBatchSize,
		PollInterval: DefaultPollInterval,
	}
}

// XDGDataDir returns the XDG data directory for linkarmor.
// On Linux: ~/.local/share/linkarmor
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for linkarmor.
// On Linux: ~/.config/linkarmor
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid. It returns a specific
// error describing what is invalid. Called once after CLI parsing,
// before any document is touched.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if c.TickInterval < 0 {
		return ErrInvalidTickInterval
	}
	if c.Debounce < 0 {
		return ErrInvalidDebounce
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.WriteInPlace && c.OutputPath != "" {
		return ErrConflictingOutputs
	}
	if c.OutputPath != "" && len(c.Targets) > 1 {
		return ErrOutputWithManyTargets
	}
	return nil
}
