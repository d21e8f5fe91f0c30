package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/linkarmor/linkarmor/internal/config"
	"github.com/linkarmor/linkarmor/internal/controller"
	"github.com/linkarmor/linkarmor/internal/dom"
	"github.com/linkarmor/linkarmor/internal/scanner"
	"github.com/linkarmor/linkarmor/internal/watcher"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [files...]",
		Short: "Watch HTML documents and keep their external links rewritten",
		Long: `Watch keeps documents' external links rewritten as they change. Each
file is scanned once at startup, then polled for modifications; when a
file changes, its document is reloaded and newly appearing external
links are rewritten after a short debounce, collapsing bursts of edits
into a single pass.

Rewritten documents are written back in place. Press Ctrl-C to stop.

Examples:
  # Watch a site's pages
  linkarmor watch --site example.com public/index.html public/about.html

  # Poll less often and report every pass
  linkarmor watch --site example.com --poll 5s -v index.html`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWatchCmd,
	}

	cmd.Flags().StringP("site", "s", "",
		"Site host name; links to any other host are rewritten")
	cmd.Flags().String("scheme", "",
		"Site scheme used to complete protocol-relative hrefs (default https)")
	cmd.Flags().Int("chunk-size", config.DefaultChunkSize,
		"Number of links processed per scheduler tick")
	cmd.Flags().StringSlice("rel", nil,
		"Extra rel tokens merged into rewritten links (noreferrer is refused)")
	cmd.Flags().StringSlice("ignore", nil,
		"CSS selectors whose matched subtrees are left untouched")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .linkarmor in current or home directory)")
	cmd.Flags().Duration("poll", config.DefaultPollInterval,
		"How often to check files for changes")
	cmd.Flags().Duration("debounce", config.DefaultDebounce,
		"Quiet period after a change before re-scanning")
	cmd.Flags().Bool("no-write", false,
		"Do not write rewritten documents back to disk")

	return cmd
}

// runWatchCmd executes the watch command.
func runWatchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildWatchConfig(cmd, args)
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
		logger.Info("received shutdown signal, stopping watch...")
		cancel()
	}()

	noWrite, err := cmd.Flags().GetBool("no-write")
	if err != nil {
		return err
	}
	cfg.WriteInPlace = !noWrite

	return runWatch(ctx, cfg, logger)
}

// buildWatchConfig creates a Config from watch command flags.
func buildWatchConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
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

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	if err := loadSiteConfigs(cfg); err != nil {
		return nil, err
	}

	cfg.PollInterval, err = cmd.Flags().GetDuration("poll")
	if err != nil {
		return nil, err
	}

	cfg.Debounce, err = cmd.Flags().GetDuration("debounce")
	if err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Targets = args

	if cfg.SiteConfigs != nil && cfg.SiteHost != "" {
		cfg.Apply(cfg.SiteConfigs.GetSiteConfig(cfg.SiteHost))
	}

	return cfg, nil
}

// runWatch watches all target files until the context is cancelled.
func runWatch(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	fmt.Printf("Watching %d file(s), poll interval %s. Press Ctrl-C to stop.\n",
		len(cfg.Targets), cfg.PollInterval)

	g, ctx := errgroup.WithContext(ctx)
	for _, path := range cfg.Targets {
		g.Go(func() error {
			return watchFile(ctx, path, cfg, logger)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// fileWatch is the live rewrite session for one watched file.
type fileWatch struct {
	path   string
	cfg    *config.Config
	logger *slog.Logger
	doc    *dom.Document

	mu      sync.Mutex
	modTime time.Time
}

// watchFile runs the rewrite session for one file until cancellation.
func watchFile(ctx context.Context, path string, cfg *config.Config, logger *slog.Logger) error {
	fw := &fileWatch{path: path, cfg: cfg, logger: logger}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	fw.modTime = info.ModTime()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	doc, err := dom.Parse(f, path, "")
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	fw.doc = doc
	defer doc.Close()

	ctrl := controller.New(doc, identityFromConfig(cfg),
		controller.WithLogger(logger),
		controller.WithScannerOptions(append(scannerOptions(cfg, logger),
			scanner.WithScheduler(scanner.NewTickScheduler(cfg.TickInterval)))...),
		controller.WithWatcherOptions(watcher.WithDebounce(cfg.Debounce)),
		controller.WithRescanHook(func(stats *scanner.Stats) {
			if stats.Rewritten > 0 {
				fw.persist()
			}
		}),
	)
	defer ctrl.Close()

	stats, err := ctrl.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start session for %s: %w", path, err)
	}
	fmt.Printf("[%s] %d link(s), %d rewritten\n", path, stats.Collected, stats.Rewritten)
	if stats.Rewritten > 0 {
		fw.persist()
	}

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := fw.checkForChange(); err != nil {
				logger.Warn("poll failed", "document", path, "error", err)
			}
		}
	}
}

// checkForChange reloads the document if the file changed on disk.
// Reloading emits a mutation, which drives the debounced re-scan.
func (fw *fileWatch) checkForChange() error {
	info, err := os.Stat(fw.path)
	if err != nil {
		return err
	}

	fw.mu.Lock()
	changed := info.ModTime().After(fw.modTime)
	if changed {
		fw.modTime = info.ModTime()
	}
	fw.mu.Unlock()
	if !changed {
		return nil
	}

	f, err := os.Open(fw.path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	fw.logger.Info("file changed, reloading", "document", fw.path)
	return fw.doc.Reload(f, "")
}

// persist writes the rewritten document back to disk and records the
// resulting modification time so the write does not count as an
// external change on the next poll.
func (fw *fileWatch) persist() {
	if !fw.cfg.WriteInPlace {
		return
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(fw.path), ".linkarmor-*")
	if err != nil {
		fw.logger.Error("failed to create temp file", "document", fw.path, "error", err)
		return
	}
	tmpName := tmp.Name()

	if err := fw.doc.Render(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		fw.logger.Error("failed to render document", "document", fw.path, "error", err)
		return
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		fw.logger.Error("failed to close temp file", "document", fw.path, "error", err)
		return
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		fw.logger.Error("failed to set permissions", "document", fw.path, "error", err)
		return
	}
	if err := os.Rename(tmpName, fw.path); err != nil {
		_ = os.Remove(tmpName)
		fw.logger.Error("failed to replace file", "document", fw.path, "error", err)
		return
	}

	if info, err := os.Stat(fw.path); err == nil {
		fw.modTime = info.ModTime()
	}
	fw.logger.Info("document written", "document", fw.path)
}
