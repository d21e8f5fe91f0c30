package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for linkarmor.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkarmor",
		Short: "Rewrite external links to open safely in a new tab",
		Long: `linkarmor detects external hyperlinks in HTML documents and rewrites
them to open in a new browsing context with target="_blank" and
rel="noopener". Links within the site's own host are left untouched,
and the Referer header is preserved (noreferrer is never added).`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewRewriteCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
