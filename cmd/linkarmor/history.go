package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linkarmor/linkarmor/internal/config"
	"github.com/linkarmor/linkarmor/internal/database"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past rewrite runs from the audit database",
		Long: `History lists rewrite runs recorded in the audit database, newest
first. Each run shows the document, link counts, and the distinct
external domains it links out to.

Examples:
  # Show the most recent runs across all documents
  linkarmor history

  # Show runs for one document
  linkarmor history -d public/index.html

  # Show which external domains appear most often
  linkarmor history --domains

  # Machine-readable output
  linkarmor history -j`,
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("document", "d", "",
		"Only show runs for this document path")
	cmd.Flags().IntP("limit", "n", 20,
		"Maximum number of runs to show")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON instead of the table")
	cmd.Flags().Bool("domains", false,
		"Show external domain frequency across all runs instead of runs")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	document, err := cmd.Flags().GetString("document")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	domains, err := cmd.Flags().GetBool("domains")
	if err != nil {
		return err
	}

	db, err := database.Open(config.XDGDataDir(),
		database.Options{CreateIfNotExists: false, EnableWAL: false})
	if err != nil {
		return fmt.Errorf("no audit history yet (run 'linkarmor rewrite' first): %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if domains {
		counts, err := db.ExternalDomainCounts(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(counts)
		}
		return printDomainCounts(out, counts)
	}

	records, err := db.ListRuns(ctx, document, limit)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	for _, rec := range records {
		fmt.Fprintf(out, "%s  %s\n", rec.Timestamp.Format("2006-01-02 15:04:05"), rec.Document)
		fmt.Fprintf(out, "    site: %s  links: %d  rewritten: %d  external domains: %d\n",
			displayHost(rec.SiteHost), rec.TotalLinks, rec.RewrittenLinks, len(rec.ExternalDomains))
		if len(rec.ExternalDomains) > 0 {
			fmt.Fprintf(out, "    -> %s\n", strings.Join(rec.ExternalDomains, ", "))
		}
		if rec.Error != "" {
			fmt.Fprintf(out, "    error: %s\n", rec.Error)
		}
	}

	return nil
}

// printDomainCounts renders host frequencies, most frequent first.
func printDomainCounts(out io.Writer, counts map[string]int) error {
	type hostCount struct {
		host string
		n    int
	}
	sorted := make([]hostCount, 0, len(counts))
	for host, n := range counts {
		sorted = append(sorted, hostCount{host, n})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].n != sorted[j].n {
			return sorted[i].n > sorted[j].n
		}
		return sorted[i].host < sorted[j].host
	})

	if len(sorted) == 0 {
		fmt.Fprintln(out, "No external domains recorded.")
		return nil
	}
	for _, hc := range sorted {
		fmt.Fprintf(out, "%6d  %s\n", hc.n, hc.host)
	}
	return nil
}

// displayHost renders an empty site host readably.
func displayHost(host string) string {
	if host == "" {
		return "(none)"
	}
	return host
}
