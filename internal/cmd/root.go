package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for grepwin
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grepwin",
		Short: "Parallel regex search and replace over directory trees",
		Long: `grepwin walks one or more filesystem roots, selects files by name,
size, date and attribute predicates, scans their contents for a literal or
regular expression pattern, and can rewrite matching files in place with
crash-safe semantics and original-metadata preservation.

Text files are decoded (ANSI, UTF-8, UTF-16LE/BE) and matched as
characters; binary and very large files are scanned as raw bytes through a
memory map.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	// Add subcommands
	cmd.AddCommand(NewSearchCommand())
	cmd.AddCommand(NewPresetsCommand())

	return cmd
}
