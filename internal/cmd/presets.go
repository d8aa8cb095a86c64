package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/grepwin/internal/config"
)

// NewPresetsCommand creates the presets command
func NewPresetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List saved search presets",
		Long: `List the named search presets stored in the presets file.

A preset bundles the commonly varied search options (pattern, file masks,
flags) under a name that "search --preset <name>" applies before the other
flags are read, so flags still override preset values.`,
		RunE: runPresetsCommand,
	}

	cmd.Flags().String("presets-file", "", "presets file (default: ~/.grepwin/presets.yaml)")

	return cmd
}

// runPresetsCommand implements the presets command logic
func runPresetsCommand(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("presets-file")
	if path == "" {
		path = defaultPresetsPath()
	}

	pf, err := config.LoadPresets(path)
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}

	if len(pf.Presets) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no presets in %s\n", path)
		return nil
	}

	for _, name := range pf.Names() {
		preset := pf.Presets[name]
		mode := "literal"
		if preset.UseRegex {
			mode = "regex"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s %q", name, mode, preset.SearchFor)
		if preset.ReplaceWith != "" {
			fmt.Fprintf(cmd.OutOrStdout(), " -> %q", preset.ReplaceWith)
		}
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}
