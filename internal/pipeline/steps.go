package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/linkarmor/linkarmor/internal/database"
	"github.com/linkarmor/linkarmor/internal/dom"
	"github.com/linkarmor/linkarmor/internal/model"
	"github.com/linkarmor/linkarmor/internal/scanner"
)

// ParseStep reads and parses the job's input document, and initializes
// the run report with the pre-rewrite content hash.
type ParseStep struct {
	logger *slog.Logger
}

// NewParseStep creates a ParseStep.
func NewParseStep(logger *slog.Logger) *ParseStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParseStep{logger: logger}
}

// Name returns the step's name.
func (s *ParseStep) Name() string { return "parse" }

// Do opens the job's input file and parses it into a document.
func (s *ParseStep) Do(_ context.Context, job *Job) error {
	f, err := os.Open(job.Path)
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}
	defer func() { _ = f.Close() }()

	doc, err := dom.Parse(f, job.Path, "")
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	job.Doc = doc

	job.Report = model.NewRewriteReport(job.Path, job.Identity)
	if hash, err := doc.ContentHash(); err == nil {
		job.Report.ContentHash = hash
	} else {
		s.logger.Warn("content hash unavailable", "document", job.Path, "error", err)
	}

	return nil
}

// RewriteStep runs one full scan pass over the job's document and fills
// the report with the per-link findings.
type RewriteStep struct {
	logger   *slog.Logger
	scanOpts []scanner.Option
}

// NewRewriteStep creates a RewriteStep. The scanner options are applied
// to each job's scanner; batch jobs typically pass an immediate
// scheduler since there is no renderer to pace against.
func NewRewriteStep(logger *slog.Logger, opts ...scanner.Option) *RewriteStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &RewriteStep{logger: logger, scanOpts: opts}
}

// Name returns the step's name.
func (s *RewriteStep) Name() string { return "rewrite" }

// Do classifies and rewrites the document's links.
func (s *RewriteStep) Do(ctx context.Context, job *Job) error {
	if job.Doc == nil || job.Report == nil {
		return fmt.Errorf("document not parsed (missing parse step?)")
	}

	sc := scanner.New(job.Doc, job.Identity,
		append([]scanner.Option{
			scanner.WithLogger(s.logger),
			scanner.WithScheduler(scanner.ImmediateScheduler{}),
		}, s.scanOpts...)...)

	stats, err := sc.Scan(ctx)
	if stats != nil && job.Report != nil {
		for _, f := range stats.Findings {
			job.Report.AddFinding(f)
		}
		job.Report.SkippedLinks += stats.Skipped
	}
	if err != nil {
		return fmt.Errorf("failed to scan document: %w", err)
	}

	s.logger.Info("document rewritten",
		"document", job.Path,
		"links", stats.Collected,
		"rewritten", stats.Rewritten,
	)

	return nil
}

// WriteStep serializes the rewritten document back to disk.
type WriteStep struct {
	logger *slog.Logger

	// inPlace allows writing back to the input path when the job has
	// no explicit output path.
	inPlace bool
}

// NewWriteStep creates a WriteStep. When inPlace is false and a job has
// no OutputPath, the step is a no-op for that job.
func NewWriteStep(logger *slog.Logger, inPlace bool) *WriteStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &WriteStep{logger: logger, inPlace: inPlace}
}

// Name returns the step's name.
func (s *WriteStep) Name() string { return "write" }

// Do writes the document to the job's output path.
func (s *WriteStep) Do(_ context.Context, job *Job) error {
	if job.Doc == nil {
		return fmt.Errorf("document not parsed (missing parse step?)")
	}

	out := job.OutputPath
	if out == "" {
		if !s.inPlace {
			s.logger.Debug("no output configured, skipping write", "document", job.Path)
			return nil
		}
		out = job.Path
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Write to a temp file in the same directory, then rename. A crash
	// mid-write must not leave a truncated document behind.
	tmp, err := os.CreateTemp(filepath.Dir(out), ".linkarmor-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := job.Doc.Render(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to render document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set output permissions: %w", err)
	}
	if err := os.Rename(tmpName, out); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace output file: %w", err)
	}

	s.logger.Info("document written", "document", job.Path, "output", out)
	return nil
}

// AuditStep persists the finished report to the audit database.
type AuditStep struct {
	logger *slog.Logger
	db     *database.AuditDB
}

// NewAuditStep creates an AuditStep writing to the given database.
func NewAuditStep(logger *slog.Logger, db *database.AuditDB) *AuditStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditStep{logger: logger, db: db}
}

// Name returns the step's name.
func (s *AuditStep) Name() string { return "audit" }

// Do saves the job's report.
func (s *AuditStep) Do(ctx context.Context, job *Job) error {
	if job.Report == nil {
		return fmt.Errorf("no report to save (missing parse step?)")
	}

	job.Report.Finish()

	id, err := s.db.SaveRun(ctx, job.Report)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	s.logger.Debug("run saved", "document", job.Path, "run_id", id)
	return nil
}
