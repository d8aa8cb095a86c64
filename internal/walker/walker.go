// Package walker enumerates filesystem roots and applies the attribute,
// name, size and date predicates that decide which files the engine scans.
package walker

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/harrison/grepwin/internal/config"
	"github.com/harrison/grepwin/internal/models"
)

// SkipFunc reports whether a path must not be entered. The engine uses it to
// keep the walker away from temp and backup files it is currently creating.
type SkipFunc func(path string) bool

// EmitFunc receives every enumerated entry. Eligible entries are candidates
// for scanning; ineligible ones are surfaced only for progress accounting.
type EmitFunc func(task models.FileTask, eligible bool)

// Walker performs the depth-first traversal over the request's roots.
type Walker struct {
	req       *config.Request
	filter    *Filter
	skip      SkipFunc
	cancelled func() bool
}

// New creates a Walker for the request. The filter is compiled once here;
// an invalid name or exclude-dirs expression surfaces as an error.
func New(req *config.Request, skip SkipFunc, cancelled func() bool) (*Walker, error) {
	filter, err := NewFilter(req)
	if err != nil {
		return nil, err
	}
	if skip == nil {
		skip = func(string) bool { return false }
	}
	if cancelled == nil {
		cancelled = func() bool { return false }
	}
	return &Walker{req: req, filter: filter, skip: skip, cancelled: cancelled}, nil
}

// Walk enumerates all roots in order. Roots that are plain files bypass the
// attribute and predicate gates entirely; the engine always scans them.
func (w *Walker) Walk(emit EmitFunc) {
	for _, root := range w.req.Roots {
		if w.cancelled() {
			return
		}
		info, err := os.Stat(root)
		if err != nil {
			emit(models.FileTask{Path: root, Root: root, ReadError: true}, true)
			continue
		}
		if !info.IsDir() {
			emit(models.FileTask{
				Path:      root,
				Root:      filepath.Dir(root),
				RootIsDir: false,
				Size:      info.Size(),
				Modified:  info.ModTime(),
			}, true)
			continue
		}
		w.walkDir(root, root, w.req.IncludeSubfolders, emit)
	}
}

// walkDir enumerates one directory, recursing where the exclusion gates
// allow it.
func (w *Walker) walkDir(root, dir string, recurse bool, emit EmitFunc) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		emit(models.FileTask{Path: dir, Root: root, RootIsDir: true, IsDir: true, ReadError: true}, true)
		return
	}

	for _, entry := range entries {
		if w.cancelled() {
			return
		}
		path := filepath.Join(dir, entry.Name())
		if w.skip(path) {
			continue
		}

		isSymlink := entry.Type()&fs.ModeSymlink != 0
		if isSymlink && !w.req.IncludeSymlinks {
			continue
		}

		info, ierr := entry.Info()
		if isSymlink {
			// Resolve the target so size and dir-ness describe what
			// would actually be scanned.
			if ti, terr := os.Stat(path); terr == nil {
				info = ti
				ierr = nil
			}
		}
		if ierr != nil {
			emit(models.FileTask{Path: path, Root: root, RootIsDir: true, ReadError: true}, true)
			continue
		}

		task := models.FileTask{
			Path:      path,
			Root:      root,
			RootIsDir: true,
			IsDir:     info.IsDir(),
			Size:      info.Size(),
			Modified:  info.ModTime(),
		}

		hidden := entryHidden(path, entry.Name())
		system := entrySystem(path)
		if !w.filter.AllowAttributes(hidden, system) {
			// Hidden or system entries are dropped without a progress
			// event, and never recursed into.
			continue
		}

		if task.IsDir {
			descend := recurse && !w.filter.ExcludeDir(entry.Name(), path, relativeTo(root, path))
			nameOK := w.filter.MatchName(path)
			if descend {
				w.walkDir(root, path, true, emit)
			}
			// Directories are reported only in counting mode.
			if w.req.CountOnly() && descend && nameOK {
				emit(task, true)
			}
			continue
		}

		if !w.filter.MatchName(path) {
			emit(task, false)
			continue
		}
		// Not-search is a forced operation: every name-matched file is
		// scanned so its absence of hits can be reported.
		if !w.req.NotSearch && !w.filter.SizeDateOK(task.Size, task.Modified) {
			emit(task, false)
			continue
		}
		emit(task, true)
	}
}

// relativeTo returns path relative to root, or an empty string when the
// relation cannot be expressed.
func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return ""
	}
	return rel
}
