package config

import "errors"

// Configuration validation errors. These errors are returned by
// Config.Validate() and provide specific information about what is wrong
// with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoTarget is returned when no HTML document is specified.
	ErrNoTarget = errors.New("no target specified: provide one or more HTML files, or - for stdin")

	// ErrInvalidChunkSize is returned when the chunk size is not positive.
	// A chunk size of zero would make the scan unable to progress.
	ErrInvalidChunkSize = errors.New("invalid chunk size: must be positive")

	// ErrInvalidTickInterval is returned when the tick interval is negative.
	// Use 0 for an immediate scheduler with no pacing.
	ErrInvalidTickInterval = errors.New("invalid tick interval: must be non-negative")

	// ErrInvalidDebounce is returned when the debounce window is negative.
	ErrInvalidDebounce = errors.New("invalid debounce: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidPollInterval is returned when the watch poll interval is
	// not positive.
	ErrInvalidPollInterval = errors.New("invalid poll interval: must be positive")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are specified. Only one output format can be used at a
	// time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingOutputs is returned when both in-place writing and an
	// explicit output path are requested.
	ErrConflictingOutputs = errors.New("conflicting outputs: --in-place and --output cannot be used together")

	// ErrOutputWithManyTargets is returned when a single output path is
	// combined with multiple input documents.
	ErrOutputWithManyTargets = errors.New("invalid output: --output requires exactly one target (use --in-place for many)")
)
