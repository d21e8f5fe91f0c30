package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/linkarmor/linkarmor/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *AuditDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// sampleReport builds a finished report for the given document.
func sampleReport(document string) *model.RewriteReport {
	report := model.NewRewriteReport(document, model.NewIdentity("example.com", "https"))
	report.AddFinding(model.LinkFinding{Href: "/about", Class: model.ClassInternal})
	report.AddFinding(model.LinkFinding{Href: "https://other.org/x", Class: model.ClassExternal, Host: "other.org", Rewritten: true})
	report.AddFinding(model.LinkFinding{Href: "https://cdn.example.net/y", Class: model.ClassExternal, Host: "cdn.example.net", Rewritten: true})
	report.AddFinding(model.LinkFinding{Href: "mailto:a@b.c", Class: model.ClassSpecial})
	report.ContentHash = "deadbeef"
	report.Finish()
	return report
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, DBFileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "missing")
		opts := Options{CreateIfNotExists: false, EnableWAL: true}

		if _, err := Open(dbDir, opts); err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()

		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		_ = db.Close()

		db2, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: false})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db2.Close()
	})
}

// TestSaveRunAndListRuns tests round-tripping run records.
func TestSaveRunAndListRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	id, err := db.SaveRun(ctx, sampleReport("index.html"))
	if err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero run id")
	}

	if _, err := db.SaveRun(ctx, sampleReport("about.html")); err != nil {
		t.Fatalf("failed to save second run: %v", err)
	}

	t.Run("filter by document", func(t *testing.T) {
		records, err := db.ListRuns(ctx, "index.html", 10)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(records))
		}

		rec := records[0]
		if rec.Document != "index.html" {
			t.Errorf("document = %q, want index.html", rec.Document)
		}
		if rec.SiteHost != "example.com" {
			t.Errorf("site host = %q, want example.com", rec.SiteHost)
		}
		if rec.TotalLinks != 4 || rec.ExternalLinks != 2 || rec.InternalLinks != 1 || rec.SpecialLinks != 1 {
			t.Errorf("unexpected counters: %+v", rec)
		}
		if rec.RewrittenLinks != 2 {
			t.Errorf("rewritten = %d, want 2", rec.RewrittenLinks)
		}
		if rec.ContentHash != "deadbeef" {
			t.Errorf("content hash = %q, want deadbeef", rec.ContentHash)
		}
		want := []string{"cdn.example.net", "other.org"}
		if len(rec.ExternalDomains) != len(want) {
			t.Fatalf("external domains = %v, want %v", rec.ExternalDomains, want)
		}
		for i, host := range want {
			if rec.ExternalDomains[i] != host {
				t.Errorf("external domain[%d] = %q, want %q", i, rec.ExternalDomains[i], host)
			}
		}
	})

	t.Run("all documents", func(t *testing.T) {
		records, err := db.ListRuns(ctx, "", 10)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("expected 2 records, got %d", len(records))
		}
	})

	t.Run("limit applies", func(t *testing.T) {
		records, err := db.ListRuns(ctx, "", 1)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(records) != 1 {
			t.Errorf("expected 1 record, got %d", len(records))
		}
	})
}

// TestLatestRun tests the newest-first ordering.
func TestLatestRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("no runs returns nil", func(t *testing.T) {
		rec, err := db.LatestRun(ctx, "never.html")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec != nil {
			t.Errorf("expected nil record, got %+v", rec)
		}
	})

	t.Run("returns newest run", func(t *testing.T) {
		first := sampleReport("page.html")
		if _, err := db.SaveRun(ctx, first); err != nil {
			t.Fatalf("failed to save first run: %v", err)
		}

		second := sampleReport("page.html")
		second.ContentHash = "cafef00d"
		if _, err := db.SaveRun(ctx, second); err != nil {
			t.Fatalf("failed to save second run: %v", err)
		}

		rec, err := db.LatestRun(ctx, "page.html")
		if err != nil {
			t.Fatalf("failed to get latest run: %v", err)
		}
		if rec == nil {
			t.Fatal("expected a record")
		}
		if rec.ContentHash != "cafef00d" {
			t.Errorf("content hash = %q, want cafef00d (newest run)", rec.ContentHash)
		}
	})
}

// TestExternalDomainCounts tests cross-run host aggregation.
func TestExternalDomainCounts(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.SaveRun(ctx, sampleReport("a.html")); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	if _, err := db.SaveRun(ctx, sampleReport("b.html")); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	counts, err := db.ExternalDomainCounts(ctx)
	if err != nil {
		t.Fatalf("failed to count domains: %v", err)
	}
	if counts["other.org"] != 2 {
		t.Errorf("other.org count = %d, want 2", counts["other.org"])
	}
	if counts["cdn.example.net"] != 2 {
		t.Errorf("cdn.example.net count = %d, want 2", counts["cdn.example.net"])
	}
}

// TestParseTimestamp tests the SQLite timestamp format fallbacks.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		zero bool
	}{
		{name: "sqlite default", in: "2026-08-23 10:30:00"},
		{name: "iso with z", in: "2026-08-23T10:30:00Z"},
		{name: "rfc3339", in: time.Now().Format(time.RFC3339)},
		{name: "garbage", in: "not a time", zero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := parseTimestamp(tt.in)
			if got.IsZero() != tt.zero {
				t.Errorf("parseTimestamp(%q).IsZero() = %v, want %v", tt.in, got.IsZero(), tt.zero)
			}
		})
	}
}
