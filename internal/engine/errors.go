package engine

import "errors"

// Run-level error kinds. Per-file I/O and encoding problems attach to the
// file's result instead; only these abort or annotate the whole run.
var (
	// ErrInvalidConfig reports an unusable request (missing or relative
	// roots, contradictory flags).
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidPattern reports a search expression that does not compile.
	ErrInvalidPattern = errors.New("invalid search pattern")

	// ErrCancelled reports a run stopped by the host. It is a silent
	// stop: partial results delivered before it remain valid.
	ErrCancelled = errors.New("search cancelled")

	// ErrReplaceFailed reports that at least one file could not be
	// rewritten. The run itself completed.
	ErrReplaceFailed = errors.New("one or more files could not be rewritten")
)
