package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/linkarmor/linkarmor/internal/config"
	"github.com/linkarmor/linkarmor/internal/database"
	"github.com/linkarmor/linkarmor/internal/dom"
	logpkg "github.com/linkarmor/linkarmor/internal/log"
	"github.com/linkarmor/linkarmor/internal/model"
	"github.com/linkarmor/linkarmor/internal/pipeline"
	"github.com/linkarmor/linkarmor/internal/report"
	"github.com/linkarmor/linkarmor/internal/scanner"
)

// NewRewriteCmd creates the rewrite command.
func NewRewriteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewrite [files...]",
		Short: "Rewrite external links in HTML documents",
		Long: `Rewrite scans HTML documents, classifies every hyperlink against the
site's own host, and rewrites external links to open in a new tab with
target="_blank" and rel="noopener". Internal links, fragment links, and
non-navigable hrefs (mailto:, javascript:, tel:) are left untouched.

The rewrite is idempotent: running it twice produces the same output,
and author-set attributes are preserved (rel tokens are merged, never
replaced).

Examples:
  # Rewrite a file in place
  linkarmor rewrite --site example.com -i index.html

  # Rewrite to a new file
  linkarmor rewrite --site example.com -o out.html index.html

  # Rewrite from stdin to stdout
  cat index.html | linkarmor rewrite --site example.com -

  # Rewrite a whole directory tree concurrently
  linkarmor rewrite --site example.com -i public/**/*.html

  # Add extra rel tokens and skip a nav block
  linkarmor rewrite --site example.com --rel nofollow --ignore "nav.social" -i index.html

Configuration file (.linkarmor) example:
  sites:
    example.com:
      relTokens: ["nofollow"]
      ignoreSelectors: [".partner-links"]
    blog.example.com:
      scheme: http`,
		Args: cobra.ArbitraryArgs,
		RunE: runRewriteCmd,
	}

	// Site identity flags
	cmd.Flags().StringP("site", "s", "",
		"Site host name; links to any other host are rewritten")
	cmd.Flags().String("scheme", "",
		"Site scheme used to complete protocol-relative hrefs (default https)")

	// Rewrite behavior flags
	cmd.Flags().Int("chunk-size", config.DefaultChunkSize,
		"Number of links processed per scheduler tick")
	cmd.Flags().StringSlice("rel", nil,
		"Extra rel tokens merged into rewritten links (noreferrer is refused)")
	cmd.Flags().StringSlice("ignore", nil,
		"CSS selectors whose matched subtrees are left untouched")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of documents processed concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .linkarmor in current or home directory)")

	// Output flags
	cmd.Flags().BoolP("in-place", "i", false,
		"Rewrite each file in place (mutually exclusive with --output)")
	cmd.Flags().StringP("output", "o", "",
		"Output file for the rewritten document (single target only)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("report-file", "r", "",
		"Write the report to the specified file instead of stderr")
	cmd.Flags().Bool("no-db", false,
		"Do not record this run in the audit database")

	return cmd
}

// runRewriteCmd executes the rewrite command.
func runRewriteCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runRewrite(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.SiteHost, err = cmd.Flags().GetString("site")
	if err != nil {
		return nil, err
	}

	scheme, err := cmd.Flags().GetString("scheme")
	if err != nil {
		return nil, err
	}
	if scheme != "" {
		cfg.SiteScheme = scheme
	}

	cfg.ChunkSize, err = cmd.Flags().GetInt("chunk-size")
	if err != nil {
		return nil, err
	}

	cfg.RelTokens, err = cmd.Flags().GetStringSlice("rel")
	if err != nil {
		return nil, err
	}

	cfg.IgnoreSelectors, err = cmd.Flags().GetStringSlice("ignore")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	if err := loadSiteConfigs(cfg); err != nil {
		return nil, err
	}

	cfg.WriteInPlace, err = cmd.Flags().GetBool("in-place")
	if err != nil {
		return nil, err
	}

	cfg.OutputPath, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("report-file")
	if err != nil {
		return nil, err
	}

	noDB, err := cmd.Flags().GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	cfg.DBDir = config.XDGDataDir()

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Targets = args

	// Merge site-specific file settings under explicit CLI flags.
	if cfg.SiteConfigs != nil && cfg.SiteHost != "" {
		cfg.Apply(cfg.SiteConfigs.GetSiteConfig(cfg.SiteHost))
	}

	return cfg, nil
}

// loadSiteConfigs resolves and loads the configuration file.
// If the user explicitly specified a path, a missing file is an error.
// Otherwise a missing file silently yields an empty configuration.
func loadSiteConfigs(cfg *config.Config) error {
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		siteConfigs, err := config.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.SiteConfigs = siteConfigs
		return nil
	}
	if explicitConfigPath {
		return fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}
	cfg.SiteConfigs = &config.File{
		Sites: make(map[string]config.SiteConfig),
	}
	return nil
}

// setupLogger creates a structured logger based on verbosity setting.
// All records pass through the sanitizing handler so credentials in
// logged hrefs never reach the output.
func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := logpkg.NewSanitizeHandler(slog.NewTextHandler(os.Stderr, opts))
	return slog.New(handler)
}

// identityFromConfig builds the site identity used for classification.
func identityFromConfig(cfg *config.Config) model.Identity {
	return model.NewIdentity(cfg.SiteHost, cfg.SiteScheme)
}

// scannerOptions translates config into scanner options.
func scannerOptions(cfg *config.Config, logger *slog.Logger) []scanner.Option {
	return []scanner.Option{
		scanner.WithLogger(logger),
		scanner.WithChunkSize(cfg.ChunkSize),
		scanner.WithRelTokens(cfg.RelTokens),
		scanner.WithIgnoreSelectors(cfg.IgnoreSelectors),
	}
}

// runRewrite executes the rewrite over all targets.
func runRewrite(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var db *database.AuditDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open audit database: %w", err)
		}
		defer func() { _ = db.Close() }()
		logger.Info("audit database opened", "dir", cfg.DBDir)
	}

	// Stdin is a single-document special case: the document flows
	// stdin -> stdout (or --output), the report goes to stderr.
	if len(cfg.Targets) == 1 && cfg.Targets[0] == "-" {
		return rewriteStdin(ctx, cfg, db, logger)
	}

	newPipeline := func() *pipeline.Pipeline {
		p := pipeline.New(pipeline.WithLogger(logger), pipeline.WithContinueOnError(false))
		p.AddSteps(
			pipeline.NewParseStep(logger),
			pipeline.NewRewriteStep(logger, scannerOptions(cfg, logger)...),
			pipeline.NewWriteStep(logger, cfg.WriteInPlace),
		)
		if db != nil {
			p.AddStep(pipeline.NewAuditStep(logger, db))
		}
		return p
	}
	newJob := func(path string) *pipeline.Job {
		return &pipeline.Job{
			Path:       path,
			OutputPath: cfg.OutputPath,
			Identity:   identityFromConfig(cfg),
		}
	}

	bp := pipeline.NewBatchProcessor(newPipeline, newJob,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	var mu sync.Mutex
	var failed int
	err := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(r *model.RewriteReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		if r.ErrorMessage != "" {
			failed++
		}
		if err := outputReport(cfg, r); err != nil {
			logger.Error("report output failed", "document", r.Document, "error", err)
		}
	})
	if err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d document(s) failed", failed, len(cfg.Targets))
	}
	return nil
}

// rewriteStdin processes a document from standard input.
func rewriteStdin(ctx context.Context, cfg *config.Config, db *database.AuditDB, logger *slog.Logger) error {
	doc, err := dom.Parse(os.Stdin, "stdin", "")
	if err != nil {
		return fmt.Errorf("failed to parse stdin: %w", err)
	}
	defer doc.Close()

	identity := identityFromConfig(cfg)
	rep := model.NewRewriteReport("stdin", identity)
	if hash, err := doc.ContentHash(); err == nil {
		rep.ContentHash = hash
	}

	sc := scanner.New(doc, identity,
		append(scannerOptions(cfg, logger), scanner.WithScheduler(scanner.ImmediateScheduler{}))...)

	stats, err := sc.Scan(ctx)
	if stats != nil {
		for _, f := range stats.Findings {
			rep.AddFinding(f)
		}
		rep.SkippedLinks += stats.Skipped
	}
	if err != nil {
		rep.SetError(err)
	}
	rep.Finish()

	out := os.Stdout
	if cfg.OutputPath != "" {
		if dir := filepath.Dir(cfg.OutputPath); dir != "" && dir != "." {
			if mkErr := os.MkdirAll(dir, 0750); mkErr != nil {
				return fmt.Errorf("failed to create output directory: %w", mkErr)
			}
		}
		f, openErr := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if openErr != nil {
			return fmt.Errorf("failed to create output file: %w", openErr)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	if renderErr := doc.Render(out); renderErr != nil {
		return fmt.Errorf("failed to render document: %w", renderErr)
	}

	if db != nil {
		if _, saveErr := db.SaveRun(ctx, rep); saveErr != nil {
			logger.Error("failed to save run", "error", saveErr)
		}
	}
	if repErr := outputReport(cfg, rep); repErr != nil {
		logger.Error("report output failed", "error", repErr)
	}

	return err
}

// outputReport writes the run report in the requested format.
// When no report file is configured, the report goes to stderr so it
// never mixes with a document written to stdout.
func outputReport(cfg *config.Config, rep *model.RewriteReport) error {
	var output *os.File
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create report directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer func() { _ = f.Close() }()
		output = f
	} else {
		output = os.Stderr
	}

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output, report.WithFindings(cfg.Verbose))
	}

	_, err := w.Write(rep)
	return err
}
