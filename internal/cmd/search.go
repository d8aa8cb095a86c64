package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/grepwin/internal/config"
	"github.com/harrison/grepwin/internal/display"
	"github.com/harrison/grepwin/internal/engine"
	"github.com/harrison/grepwin/internal/logger"
)

// Exit codes surfaced to the shell.
const (
	ExitOK            = 0
	ExitConfigError   = 1
	ExitCancelled     = 2
	ExitReplaceFailed = 3
)

// ExitError carries a specific process exit code through cobra's error
// path. main unwraps it.
type ExitError struct {
	Code int
	Err  error
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewSearchCommand creates the search command
func NewSearchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search (and optionally replace) across one or more roots",
		Long: `Search the given paths for a pattern, printing every matching file
with its match positions and line texts.

With --replacewith the matched files are rewritten in place: the new
content is written next to the original and swapped in atomically, with
optional backups and timestamp preservation.

Examples:
  # Literal search over a tree
  grepwin search --searchpath /src --searchfor TODO

  # Regex replace with back-references and a backup per file
  grepwin search --searchpath /src --searchfor 'foo=(\d)' --replacewith 'bar=$1' --regex --backup

  # Report files NOT containing a pattern
  grepwin search --searchpath /src --searchfor Copyright --notsearch

  # Inventory mode: list everything that passes the filters
  grepwin search --searchpath /data --countonly --filematch '*.log'`,
		RunE: runSearchCommand,
	}

	flags := cmd.Flags()
	flags.String("searchpath", "", "'|'-separated list of files and directories to search")
	flags.String("searchfor", "", "search expression (literal unless --regex)")
	flags.String("replacewith", "", "replacement expression; enables replace mode")
	flags.Bool("regex", false, "treat the search expression as a regular expression")
	flags.Bool("casesensitive", false, "match case sensitively")
	flags.Bool("dotmatchnewline", false, "let '.' match line breaks in regex mode")
	flags.Bool("wholewords", false, "match whole words only (literal mode)")
	flags.Bool("utf8", false, "treat undecided files as UTF-8")
	flags.Bool("binary", false, "scan every file as raw bytes")
	flags.Bool("backup", false, "back up files before replacing")
	flags.Bool("backupfolder", false, "place backups in a grepWin_backup subfolder of the root")
	flags.Bool("keepfiledate", false, "preserve file timestamps across a replace")
	flags.Bool("includesubfolders", true, "recurse into subdirectories")
	flags.Bool("includesymlink", false, "follow symbolic links and reparse points")
	flags.Bool("includehidden", false, "include hidden files and directories")
	flags.Bool("includesystem", false, "include system files")
	flags.Bool("includebinary", false, "scan files detected as binary")
	flags.Int64("size", -1, "size predicate operand in KiB")
	flags.Int("sizecmp", 0, "size comparison: 0 less, 1 equal, 2 greater")
	flags.Bool("allsize", true, "disable the size predicate")
	flags.Int("datelimit", 0, "date predicate: 0 all, 1 newer, 2 older, 3 between")
	flags.String("date1", "", "first date operand (YYYY-MM-DD)")
	flags.String("date2", "", "second date operand (YYYY-MM-DD)")
	flags.String("filematch", "", "file name globs ('|'-separated, '-' prefix excludes)")
	flags.Bool("filematchregex", false, "treat --filematch as a regular expression")
	flags.String("excludedirs", "", "regex of directories to skip")
	flags.Bool("notsearch", false, "report files that do NOT match")
	flags.Bool("capturesearch", false, "print the rendered replacement instead of the line; never writes")
	flags.Bool("countonly", false, "inventory mode: list files passing the filters")
	flags.String("preset", "", "apply a named preset before other flags")
	flags.String("presets-file", "", "presets file (default: ~/.grepwin/presets.yaml)")
	flags.String("config", "", "config file (default: .grepwin/config.yaml)")
	flags.Int("threads", 0, "worker pool width (0 = CPU count - 2)")
	flags.String("log-level", "", "log verbosity: trace, debug, info, warn, error")
	flags.String("log-dir", "", "also write a run log into this directory")
	flags.Bool("quiet", false, "print only file headers, no line texts")

	return cmd
}

// runSearchCommand implements the search command logic
func runSearchCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := loadRuntimeConfig(cmd)
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}

	req, err := buildRequest(cmd)
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}

	log, closeLog, err := buildLogger(cmd, cfg)
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}
	defer closeLog()

	eng, err := engine.New(req, cfg, log)
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	printer := display.NewPrinter(cmd.OutOrStdout(), !quiet)

	// Ctrl-C flips the engine's cancel flag; the run drains and ends
	// cleanly with partial results.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	done := make(chan struct{})
	var summary logger.Summary
	go func() {
		defer close(done)
		for ev := range eng.Events() {
			switch ev.Kind {
			case engine.EventFound:
				if req.CountOnly() {
					printer.PrintInventory(ev.Result)
				} else {
					printer.PrintResult(ev.Result)
				}
			case engine.EventEnd:
				summary = logger.Summary{
					Processed:       ev.Stats.Processed,
					Matched:         ev.Stats.Matched,
					ReplaceFailures: ev.Stats.ReplaceFailures,
					Cancelled:       ev.Stats.Cancelled,
					Duration:        ev.Stats.Duration,
				}
			}
		}
	}()

	runErr := eng.Run(ctx)
	<-done
	log.LogSummary(summary)

	switch {
	case errors.Is(runErr, engine.ErrCancelled):
		return &ExitError{Code: ExitCancelled, Err: runErr}
	case errors.Is(runErr, engine.ErrReplaceFailed):
		return &ExitError{Code: ExitReplaceFailed, Err: runErr}
	case runErr != nil:
		return &ExitError{Code: ExitConfigError, Err: runErr}
	}
	return nil
}

// buildRequest maps flags (and an optional preset) onto the engine request.
func buildRequest(cmd *cobra.Command) (*config.Request, error) {
	flags := cmd.Flags()
	req := &config.Request{IncludeSubfolders: true}

	presetName, _ := flags.GetString("preset")
	if presetName != "" {
		presetsPath, _ := flags.GetString("presets-file")
		if presetsPath == "" {
			presetsPath = defaultPresetsPath()
		}
		pf, err := config.LoadPresets(presetsPath)
		if err != nil {
			return nil, err
		}
		preset, ok := pf.Presets[presetName]
		if !ok {
			return nil, fmt.Errorf("unknown preset %q in %s", presetName, presetsPath)
		}
		preset.Apply(req)
	}

	searchPath, _ := flags.GetString("searchpath")
	req.Roots = config.SplitSearchPaths(searchPath)

	if flags.Changed("searchfor") {
		req.Pattern, _ = flags.GetString("searchfor")
	}
	if flags.Changed("replacewith") {
		req.Replacement, _ = flags.GetString("replacewith")
		req.Replace = true
	}
	if countOnly, _ := flags.GetBool("countonly"); countOnly {
		req.Pattern = ""
		req.Replace = false
	}

	boolFlag := func(name string, dst *bool) {
		if flags.Changed(name) {
			*dst, _ = flags.GetBool(name)
		}
	}
	boolFlag("regex", &req.UseRegex)
	boolFlag("casesensitive", &req.CaseSensitive)
	boolFlag("dotmatchnewline", &req.DotMatchesNewline)
	boolFlag("wholewords", &req.WholeWords)
	boolFlag("utf8", &req.ForceUTF8)
	boolFlag("binary", &req.ForceBinary)
	boolFlag("backup", &req.CreateBackup)
	boolFlag("backupfolder", &req.BackupInSubfolder)
	boolFlag("keepfiledate", &req.KeepFileDate)
	boolFlag("includesymlink", &req.IncludeSymlinks)
	boolFlag("includehidden", &req.IncludeHidden)
	boolFlag("includesystem", &req.IncludeSystem)
	boolFlag("includebinary", &req.IncludeBinary)
	boolFlag("notsearch", &req.NotSearch)
	boolFlag("capturesearch", &req.CaptureSearch)
	boolFlag("includesubfolders", &req.IncludeSubfolders)
	if req.BackupInSubfolder {
		req.CreateBackup = true
	}

	if allSize, _ := flags.GetBool("allsize"); !allSize || flags.Changed("size") {
		sizeKiB, _ := flags.GetInt64("size")
		if sizeKiB >= 0 {
			sizeCmp, _ := flags.GetInt("sizecmp")
			switch sizeCmp {
			case 0:
				req.SizeOp = config.SizeLessThan
			case 1:
				req.SizeOp = config.SizeEqual
			case 2:
				req.SizeOp = config.SizeGreaterThan
			default:
				return nil, fmt.Errorf("invalid sizecmp %d, want 0, 1 or 2", sizeCmp)
			}
			req.SizeBytes = sizeKiB * 1024
		}
	}

	dateLimit, _ := flags.GetInt("datelimit")
	if dateLimit < 0 || dateLimit > 3 {
		return nil, fmt.Errorf("invalid datelimit %d, want 0..3", dateLimit)
	}
	req.DateLimit = config.DateLimit(dateLimit)
	if req.DateLimit != config.DateAll {
		date1, _ := flags.GetString("date1")
		t1, err := config.ParseDate(date1)
		if err != nil {
			return nil, err
		}
		req.Date1 = t1
		if req.DateLimit == config.DateBetween {
			date2, _ := flags.GetString("date2")
			t2, err := config.ParseDate(date2)
			if err != nil {
				return nil, err
			}
			req.Date2 = t2
		}
	}

	if flags.Changed("filematch") {
		fileMatch, _ := flags.GetString("filematch")
		if useRegex, _ := flags.GetBool("filematchregex"); useRegex {
			req.NameRegex = fileMatch
			req.UseRegexForName = true
			req.NamePatterns = nil
		} else {
			req.NamePatterns = config.SplitNamePatterns(fileMatch)
			req.UseRegexForName = false
		}
	}
	if flags.Changed("excludedirs") {
		req.ExcludeDirsRegex, _ = flags.GetString("excludedirs")
	}

	if req.Pattern == "" && !countOnlySet(cmd) {
		return nil, fmt.Errorf("nothing to do: give --searchfor or --countonly")
	}

	return req, nil
}

func countOnlySet(cmd *cobra.Command) bool {
	countOnly, _ := cmd.Flags().GetBool("countonly")
	return countOnly
}

// loadRuntimeConfig loads the runtime configuration and applies flag
// overrides.
func loadRuntimeConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	configPath, _ := flags.GetString("config")
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg, err = config.LoadConfigFromDir(".")
	}
	if err != nil {
		return nil, err
	}

	if threads, _ := flags.GetInt("threads"); threads > 0 {
		cfg.Threads = threads
	}
	if level, _ := flags.GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildLogger assembles the console logger and, when requested, a file
// logger alongside it.
func buildLogger(cmd *cobra.Command, cfg *config.Config) (searchLogger, func(), error) {
	console := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	logDir, _ := cmd.Flags().GetString("log-dir")
	if logDir == "" {
		return console, func() {}, nil
	}

	fileLog, err := logger.NewFileLoggerWithDirAndLevel(logDir, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	tee := &teeLogger{console: console, file: fileLog}
	return tee, func() { fileLog.Close() }, nil
}

// searchLogger is what the command needs from a logger: the engine's
// leveled interface plus summary reporting.
type searchLogger interface {
	engine.Logger
	LogSummary(summary logger.Summary)
}

// teeLogger fans log calls out to the console and the run log file.
type teeLogger struct {
	console *logger.ConsoleLogger
	file    *logger.FileLogger
}

func (t *teeLogger) LogDebug(message string) {
	t.console.LogDebug(message)
	t.file.LogDebug(message)
}

func (t *teeLogger) LogInfo(message string) {
	t.console.LogInfo(message)
	t.file.LogInfo(message)
}

func (t *teeLogger) LogWarn(message string) {
	t.console.LogWarn(message)
	t.file.LogWarn(message)
}

func (t *teeLogger) LogError(message string) {
	t.console.LogError(message)
	t.file.LogError(message)
}

func (t *teeLogger) LogSummary(summary logger.Summary) {
	t.console.LogSummary(summary)
	t.file.LogSummary(summary)
}

// defaultPresetsPath locates the user's presets file.
func defaultPresetsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".grepwin", "presets.yaml")
	}
	return filepath.Join(home, ".grepwin", "presets.yaml")
}
