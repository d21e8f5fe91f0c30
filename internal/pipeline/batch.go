package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/linkarmor/linkarmor/internal/model"
)

// BatchProcessor handles concurrent processing of multiple documents.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchProcessor rather than adding
// batch functionality to Pipeline because:
// 1. It keeps the Pipeline focused on single-document execution
// 2. It allows different batch strategies (e.g., rate limiting, retries)
// 3. It provides cleaner separation of concerns
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each document.
	// We use a factory to ensure each document gets a fresh pipeline
	// instance.
	pipelineFactory func() *Pipeline

	// jobFactory builds the job for one document path, letting the
	// caller attach per-document identity and output configuration.
	jobFactory func(path string) *Job

	// concurrency is the maximum number of documents processed at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed jobs in input order.
	results []*Job
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent documents.
// Default is 8 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each document to create a
// fresh pipeline instance, so pipeline state doesn't leak between
// documents. The jobFactory builds each document's job; if nil, a job
// with just the path is used.
func NewBatchProcessor(pipelineFactory func() *Pipeline, jobFactory func(path string) *Job, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		jobFactory:      jobFactory,
		concurrency:     8,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	if bp.jobFactory == nil {
		bp.jobFactory = func(path string) *Job { return &Job{Path: path} }
	}

	return bp
}

// ProcessBatch runs the pipeline over multiple documents concurrently.
// It respects the configured concurrency limit and context cancellation.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Each document gets its own goroutine, but only 'concurrency'
// goroutines run simultaneously.
//
// Returns the reports in input order, including reports for documents
// that failed. The error return indicates cancellation; per-document
// failures are recorded in their reports.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, paths []string) ([]*model.RewriteReport, error) {
	bp.logger.Info("starting batch processing",
		"total_documents", len(paths),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	bp.results = make([]*Job, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Debug("processing document",
				"document", path,
				"index", i+1,
				"total", len(paths),
			)

			job := bp.jobFactory(path)
			pl := bp.pipelineFactory()
			err := pl.Execute(ctx, job)

			if job.Report == nil {
				// Parse never ran; synthesize a report so the failure
				// still shows up in the batch output.
				job.Report = model.NewRewriteReport(path, job.Identity)
			}
			if err != nil {
				job.Report.SetError(err)
			}
			job.Report.Finish()

			bp.mu.Lock()
			bp.results[i] = job
			bp.mu.Unlock()

			if err != nil {
				bp.logger.Warn("document failed",
					"document", path,
					"error", err,
				)
				// Don't return the error to errgroup - we want the rest
				// of the batch to run. The error is recorded in the
				// report.
				return nil
			}

			return nil
		})
	}

	err := g.Wait()

	reports := make([]*model.RewriteReport, 0, len(paths))
	for _, job := range bp.results {
		if job != nil {
			reports = append(reports, job.Report)
		}
	}

	bp.logger.Info("batch processing complete",
		"total_documents", len(paths),
		"elapsed", time.Since(startTime),
	)

	return reports, err
}

// ProcessBatchWithCallback runs the pipeline over multiple documents and
// calls a callback for each completed one. This is useful for streaming
// results.
//
// The callback receives the report and the index of the document in the
// original slice. It is called from the goroutine that completed the
// document, so it should be thread-safe if it accesses shared state.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	paths []string,
	callback func(report *model.RewriteReport, index int),
) error {
	bp.logger.Info("starting batch processing with callback",
		"total_documents", len(paths),
		"concurrency", bp.concurrency,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			job := bp.jobFactory(path)
			pl := bp.pipelineFactory()
			err := pl.Execute(ctx, job)

			if job.Report == nil {
				job.Report = model.NewRewriteReport(path, job.Identity)
			}
			if err != nil {
				job.Report.SetError(err)
			}
			job.Report.Finish()

			callback(job.Report, i)

			return nil
		})
	}

	return g.Wait()
}
