package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/linkarmor/linkarmor/internal/model"
)

// newBatchFixture writes n HTML documents and returns their paths.
func newBatchFixture(t *testing.T, n int) []string {
	t.Helper()

	dir := t.TempDir()
	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("page%d.html", i))
		content := fmt.Sprintf(`<html><body><a href="https://ext%d.org/">x</a><a href="/local">y</a></body></html>`, i)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write fixture: %v", err)
		}
		paths = append(paths, path)
	}
	return paths
}

// newTestProcessor builds a parse+rewrite batch processor.
func newTestProcessor(opts ...BatchOption) *BatchProcessor {
	factory := func() *Pipeline {
		p := New()
		p.AddSteps(NewParseStep(nil), NewRewriteStep(nil))
		return p
	}
	jobs := func(path string) *Job {
		return &Job{Path: path, Identity: model.NewIdentity("example.com", "https")}
	}
	return NewBatchProcessor(factory, jobs, opts...)
}

// TestProcessBatch tests concurrent multi-document processing.
func TestProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("reports returned in input order", func(t *testing.T) {
		t.Parallel()

		paths := newBatchFixture(t, 5)
		bp := newTestProcessor(WithConcurrency(2))

		reports, err := bp.ProcessBatch(context.Background(), paths)
		if err != nil {
			t.Fatalf("batch failed: %v", err)
		}
		if len(reports) != len(paths) {
			t.Fatalf("reports = %d, want %d", len(reports), len(paths))
		}
		for i, r := range reports {
			if r.Document != paths[i] {
				t.Errorf("report[%d] document = %q, want %q", i, r.Document, paths[i])
			}
			if r.RewrittenLinks != 1 {
				t.Errorf("report[%d] rewritten = %d, want 1", i, r.RewrittenLinks)
			}
			if r.FinishedAt.IsZero() {
				t.Errorf("report[%d] not finished", i)
			}
		}
	})

	t.Run("one failing document does not stop the batch", func(t *testing.T) {
		t.Parallel()

		paths := newBatchFixture(t, 3)
		paths[1] = filepath.Join(t.TempDir(), "missing.html")

		bp := newTestProcessor()
		reports, err := bp.ProcessBatch(context.Background(), paths)
		if err != nil {
			t.Fatalf("batch failed: %v", err)
		}
		if len(reports) != 3 {
			t.Fatalf("reports = %d, want 3", len(reports))
		}

		if reports[1].ErrorMessage == "" {
			t.Error("expected failure recorded for missing document")
		}
		if reports[0].ErrorMessage != "" || reports[2].ErrorMessage != "" {
			t.Error("healthy documents must not inherit the failure")
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		t.Parallel()

		bp := newTestProcessor()
		reports, err := bp.ProcessBatch(context.Background(), nil)
		if err != nil {
			t.Fatalf("batch failed: %v", err)
		}
		if len(reports) != 0 {
			t.Errorf("reports = %d, want 0", len(reports))
		}
	})
}

// TestProcessBatchWithCallback tests streaming batch results.
func TestProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	paths := newBatchFixture(t, 4)
	bp := newTestProcessor(WithConcurrency(2))

	var mu sync.Mutex
	seen := make(map[int]string)

	err := bp.ProcessBatchWithCallback(context.Background(), paths,
		func(report *model.RewriteReport, index int) {
			mu.Lock()
			seen[index] = report.Document
			mu.Unlock()
		})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}

	if len(seen) != len(paths) {
		t.Fatalf("callbacks = %d, want %d", len(seen), len(paths))
	}
	for i, path := range paths {
		if seen[i] != path {
			t.Errorf("callback[%d] = %q, want %q", i, seen[i], path)
		}
	}
}
