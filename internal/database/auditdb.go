package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/linkarmor/linkarmor/internal/model"
)

// DBFileName is the SQLite database file created under the data
// directory.
const DBFileName = "linkarmor.db"

// AuditDB provides SQLite-based storage for rewrite run history.
//
// Design decision: We use a single database file for all documents
// rather than one per document. This keeps cross-document queries
// (which external domains does the whole site link to?) simple and
// makes backup a single-file operation.
type AuditDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures AuditDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates an AuditDB in the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*AuditDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string format: mode=rw prevents
	// creating new files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	adb := &AuditDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := adb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return adb, nil
}

// Close closes the database connection.
func (adb *AuditDB) Close() error {
	return adb.db.Close()
}

// Path returns the path to the SQLite database file.
func (adb *AuditDB) Path() string {
	return adb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (adb *AuditDB) createTables() error {
	schema := `
	-- Runs store one row per processed document per invocation
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document TEXT NOT NULL,
		site_host TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		total_links INTEGER NOT NULL,
		external_links INTEGER NOT NULL,
		internal_links INTEGER NOT NULL,
		special_links INTEGER NOT NULL,
		rewritten_links INTEGER NOT NULL,
		skipped_links INTEGER NOT NULL,
		content_hash TEXT,
		duration_ms INTEGER,
		error TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_document ON runs(document);
	CREATE INDEX IF NOT EXISTS idx_runs_site ON runs(site_host);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);

	-- External domains found per run, one row per distinct host
	CREATE TABLE IF NOT EXISTS external_domains (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		host TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_domains_run ON external_domains(run_id);
	CREATE INDEX IF NOT EXISTS idx_domains_host ON external_domains(host);
	`

	_, err := adb.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is a stored rewrite run.
type RunRecord struct {
	ID              int64
	Document        string
	SiteHost        string
	Timestamp       time.Time
	TotalLinks      int
	ExternalLinks   int
	InternalLinks   int
	SpecialLinks    int
	RewrittenLinks  int
	SkippedLinks    int
	ContentHash     string
	Duration        time.Duration
	Error           string
	ExternalDomains []string
}

// SaveRun persists a finished report and its external domains.
// Returns the new run's row ID.
func (adb *AuditDB) SaveRun(ctx context.Context, report *model.RewriteReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := adb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
	INSERT INTO runs (document, site_host, total_links, external_links, internal_links,
		special_links, rewritten_links, skipped_links, content_hash, duration_ms, error, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		report.Document,
		report.Identity.Host,
		report.TotalLinks,
		report.ExternalLinks,
		report.InternalLinks,
		report.SpecialLinks,
		report.RewrittenLinks,
		report.SkippedLinks,
		report.ContentHash,
		report.Duration().Milliseconds(),
		report.ErrorMessage,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	for _, host := range report.ExternalDomains {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO external_domains (run_id, host) VALUES (?, ?)", runID, host); err != nil {
			return 0, fmt.Errorf("failed to insert external domain: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	return runID, nil
}

// ListRuns returns runs for a document, newest first, up to limit rows.
// If document is empty, runs for all documents are returned.
func (adb *AuditDB) ListRuns(ctx context.Context, document string, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
	SELECT id, document, site_host, timestamp, total_links, external_links, internal_links,
		special_links, rewritten_links, skipped_links, content_hash, duration_ms, error
	FROM runs
	`
	args := []any{}
	if document != "" {
		query += " WHERE document = ?"
		args = append(args, document)
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := adb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	for _, record := range records {
		if err := adb.loadDomains(ctx, record); err != nil {
			return nil, err
		}
	}

	return records, nil
}

// LatestRun returns the most recent run for a document, or nil if the
// document has never been processed.
func (adb *AuditDB) LatestRun(ctx context.Context, document string) (*RunRecord, error) {
	records, err := adb.ListRuns(ctx, document, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// ExternalDomainCounts returns how many runs each external host
// appeared in, for all stored runs.
func (adb *AuditDB) ExternalDomainCounts(ctx context.Context) (map[string]int, error) {
	rows, err := adb.db.QueryContext(ctx,
		"SELECT host, COUNT(*) FROM external_domains GROUP BY host")
	if err != nil {
		return nil, fmt.Errorf("failed to query domain counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var host string
		var n int
		if err := rows.Scan(&host, &n); err != nil {
			return nil, fmt.Errorf("failed to scan domain count: %w", err)
		}
		counts[host] = n
	}
	return counts, rows.Err()
}

// scanRun reads one run row.
func scanRun(rows *sql.Rows) (*RunRecord, error) {
	var record RunRecord
	var timestamp string
	var durationMS int64

	err := rows.Scan(
		&record.ID,
		&record.Document,
		&record.SiteHost,
		&timestamp,
		&record.TotalLinks,
		&record.ExternalLinks,
		&record.InternalLinks,
		&record.SpecialLinks,
		&record.RewrittenLinks,
		&record.SkippedLinks,
		&record.ContentHash,
		&durationMS,
		&record.Error,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	record.Timestamp = parseTimestamp(timestamp)
	record.Duration = time.Duration(durationMS) * time.Millisecond
	return &record, nil
}

// loadDomains fills in the record's external domain list.
func (adb *AuditDB) loadDomains(ctx context.Context, record *RunRecord) error {
	rows, err := adb.db.QueryContext(ctx,
		"SELECT host FROM external_domains WHERE run_id = ? ORDER BY host", record.ID)
	if err != nil {
		return fmt.Errorf("failed to query external domains: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return fmt.Errorf("failed to scan external domain: %w", err)
		}
		record.ExternalDomains = append(record.ExternalDomains, host)
	}
	return rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple
// formats. SQLite may return timestamps in different formats depending
// on configuration. If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
