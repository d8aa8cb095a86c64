package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/harrison/grepwin/internal/models"
)

// EventKind discriminates the four messages the engine sends its host.
type EventKind int

// The event protocol: Start and End bracket the run, Progress arrives once
// per processed file, Found only for files that qualify under the run's
// reporting predicate. For a given file, Found (if any) precedes Progress
// and both come from the same worker.
const (
	EventStart EventKind = iota
	EventProgress
	EventFound
	EventEnd
)

// Stats summarizes a finished run.
type Stats struct {
	// Processed counts every file that produced a Progress event.
	Processed int64
	// Matched counts files that produced a Found event.
	Matched int64
	// ReplaceFailures counts files whose rewrite failed.
	ReplaceFailures int64
	// Cancelled reports the run was stopped early.
	Cancelled bool
	// Duration is the wall time of the run.
	Duration time.Duration
}

// Event is one message on the engine's event stream.
type Event struct {
	Kind  EventKind
	RunID uuid.UUID

	// Matched accompanies Progress.
	Matched bool
	// Result accompanies Found. The result, including its line text
	// cache, is immutable once emitted.
	Result *models.FileResult
	// Stats accompanies End.
	Stats Stats
}
