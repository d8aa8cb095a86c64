//go:build !windows

package replace

import (
	"os"
	"time"
)

// fileTimes carries the timestamps preserved across a swap. The access
// time is approximated by the modification time; the field layouts of the
// raw stat structures differ across unix variants and the write time is
// the one the engine guarantees to keep.
type fileTimes struct {
	atime time.Time
	mtime time.Time
}

// fileAttrs carries the attribute state preserved across a swap. On unix
// that is the permission bits.
type fileAttrs struct {
	mode os.FileMode
}

// captureTimes reads the modification time.
func captureTimes(path string) (fileTimes, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileTimes{}, err
	}
	mtime := info.ModTime()
	return fileTimes{atime: mtime, mtime: mtime}, nil
}

// restoreTimes writes the captured times back.
func restoreTimes(path string, t fileTimes) error {
	return os.Chtimes(path, t.atime, t.mtime)
}

// captureAttrs reads the permission bits and reports whether the file is
// write-protected, the unix analogue of the read-only attribute.
func captureAttrs(path string) (fileAttrs, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileAttrs{}, false, err
	}
	mode := info.Mode().Perm()
	return fileAttrs{mode: mode}, mode&0200 == 0, nil
}

// clearAttrs makes the file writable so it can be renamed over.
func clearAttrs(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.Chmod(path, info.Mode().Perm()|0200)
}

// restoreAttrs writes the captured permission bits back.
func restoreAttrs(path string, a fileAttrs) error {
	return os.Chmod(path, a.mode)
}
