// Package engine drives a search-and-replace run: it walks the request's
// roots on a dedicated goroutine, fans per-file work out to a fixed-width
// worker pool, and reports progress and results to the host through a
// typed event stream.
package engine

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/grepwin/internal/config"
	"github.com/harrison/grepwin/internal/models"
	"github.com/harrison/grepwin/internal/search"
	"github.com/harrison/grepwin/internal/walker"
)

// Logger is the subset of logging the engine needs. A nil logger disables
// logging.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

// Engine executes one immutable request. Create one per run.
type Engine struct {
	req   *config.Request
	cfg   *config.Config
	log   Logger
	runID uuid.UUID

	events   chan Event
	cancel   atomic.Bool
	inFlight *InFlightSet

	processed       atomic.Int64
	matched         atomic.Int64
	replaceFailures atomic.Int64

	// sharedRegex is the pattern compiled once for the run. It is nil
	// when the expression carries per-file placeholders, in which case
	// each worker compiles its own per-file pattern.
	sharedRegex *regexp.Regexp
}

// New validates the request and prepares an engine for it.
func New(req *config.Request, cfg *config.Config, log Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if req.NullBytesPerMiB == 0 && cfg.NullBytesPerMiB != 0 {
		req.NullBytesPerMiB = cfg.NullBytesPerMiB
	}
	if req.MaxDecodeSize == 0 && cfg.MaxDecodeMiB > 0 {
		req.MaxDecodeSize = int64(cfg.MaxDecodeMiB) << 20
	}

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	e := &Engine{
		req:      req,
		cfg:      cfg,
		log:      log,
		runID:    uuid.New(),
		events:   make(chan Event, 256),
		inFlight: NewInFlightSet(),
	}

	if !req.CountOnly() {
		expr := req.Pattern
		if !req.UseRegex || !search.HasPathVariables(expr) {
			re, err := search.CompilePattern(expr, req.UseRegex, req.CaseSensitive, req.DotMatchesNewline, req.WholeWords)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
			}
			e.sharedRegex = re
		} else if _, err := regexp.Compile(expr); err != nil {
			// Per-file patterns still have to be syntactically valid
			// before placeholder substitution.
			return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
	}

	return e, nil
}

// RunID identifies this run across events and log lines.
func (e *Engine) RunID() uuid.UUID {
	return e.runID
}

// Events returns the event stream. The engine closes it after End.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Cancel asks the run to stop. Every component observes the flag at its
// next suspension point and returns a non-fatal partial result.
func (e *Engine) Cancel() {
	e.cancel.Store(true)
}

// Cancelled reports whether the run has been asked to stop.
func (e *Engine) Cancelled() bool {
	return e.cancel.Load()
}

// Run walks the roots and processes every eligible file. It blocks until
// the run finishes and the End event has been emitted; the caller must
// consume Events concurrently.
func (e *Engine) Run(ctx context.Context) error {
	started := time.Now()

	// Propagate context cancellation into the engine's flag.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			e.cancel.Store(true)
		case <-watchDone:
		}
	}()
	defer close(watchDone)

	e.emit(Event{Kind: EventStart, RunID: e.runID})
	e.logInfo(fmt.Sprintf("search %s started: %d root(s)", e.runID, len(e.req.Roots)))

	w, err := walker.New(e.req, e.inFlight.Contains, e.Cancelled)
	if err != nil {
		// The filter regexes were validated up front, so this is
		// unexpected; surface it as a configuration error.
		e.finish(started)
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	queueSize := e.cfg.TaskQueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	tasks := make(chan models.FileTask, queueSize)

	var wg sync.WaitGroup
	workers := e.cfg.EffectiveThreads()
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				if e.Cancelled() {
					continue // drain
				}
				e.processFile(task)
			}
		}()
	}

	w.Walk(func(task models.FileTask, eligible bool) {
		if e.Cancelled() {
			return
		}
		if !eligible {
			e.processed.Add(1)
			e.emit(Event{Kind: EventProgress, RunID: e.runID, Matched: false})
			return
		}
		if e.req.CountOnly() {
			// Inventory mode: the walker reports entries directly.
			res := models.NewFileResult(task)
			e.sendResult(res, 0, true)
			return
		}
		tasks <- task
	})

	close(tasks)
	wg.Wait()

	return e.finish(started)
}

// finish emits the End event, closes the stream, and converts run counters
// into the caller-facing error.
func (e *Engine) finish(started time.Time) error {
	stats := Stats{
		Processed:       e.processed.Load(),
		Matched:         e.matched.Load(),
		ReplaceFailures: e.replaceFailures.Load(),
		Cancelled:       e.Cancelled(),
		Duration:        time.Since(started),
	}
	e.emit(Event{Kind: EventEnd, RunID: e.runID, Stats: stats})
	close(e.events)
	e.logInfo(fmt.Sprintf("search %s finished: %d processed, %d matched", e.runID, stats.Processed, stats.Matched))

	if stats.Cancelled {
		return ErrCancelled
	}
	if stats.ReplaceFailures > 0 {
		return fmt.Errorf("%w (%d file(s))", ErrReplaceFailed, stats.ReplaceFailures)
	}
	return nil
}

// sendResult reports one processed file: Found when the file qualifies
// under the run's reporting predicate, then Progress. asResult forces the
// Found event regardless of count (inventory entries, read errors).
func (e *Engine) sendResult(res *models.FileResult, count int, asResult bool) {
	qualifies := asResult
	if !qualifies {
		if e.req.NotSearch {
			qualifies = count == 0
		} else {
			qualifies = count > 0
		}
	}
	if res.ReadError {
		qualifies = true
	}

	if qualifies {
		e.matched.Add(1)
		e.emit(Event{Kind: EventFound, RunID: e.runID, Result: res})
	}
	e.processed.Add(1)
	e.emit(Event{Kind: EventProgress, RunID: e.runID, Matched: qualifies})
}

func (e *Engine) emit(ev Event) {
	e.events <- ev
}

func (e *Engine) logInfo(msg string) {
	if e.log != nil {
		e.log.LogInfo(msg)
	}
}

func (e *Engine) logDebug(msg string) {
	if e.log != nil {
		e.log.LogDebug(msg)
	}
}

func (e *Engine) logError(msg string) {
	if e.log != nil {
		e.log.LogError(msg)
	}
}
