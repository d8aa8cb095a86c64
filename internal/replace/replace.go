// Package replace implements the crash-safe file rewrite protocol: the new
// content is written to a sibling temp file, the original is optionally
// snapshotted to a backup, and the temp file is renamed over the original
// in a single step. Timestamps and restrictive attributes are restored
// afterwards.
package replace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/harrison/grepwin/internal/filelock"
	"github.com/harrison/grepwin/internal/models"
)

// TempSuffix is appended to a file's path to form its temp sibling.
const TempSuffix = ".grepwinreplaced"

// BackupSuffix is appended to form a sibling backup.
const BackupSuffix = ".bak"

// BackupDirName is the per-root backup tree used by backup-in-subfolder.
const BackupDirName = "grepWin_backup"

// timestampRetries and timestampRetryDelay pace the restore of file times.
// NTFS can hold write attributes briefly after a rename, so the restore is
// retried a few times before giving up.
const (
	timestampRetries    = 5
	timestampRetryDelay = 50 * time.Millisecond
)

// Registry records paths the engine is currently creating so the walker
// skips them. The engine's in-flight set satisfies it.
type Registry interface {
	Add(path string)
}

// Options configures the protocol for one run.
type Options struct {
	CreateBackup      bool
	BackupInSubfolder bool
	KeepFileDate      bool
	// SearchRoot anchors the backup subtree for backup-in-subfolder.
	SearchRoot string
	Registry   Registry
	Cancelled  func() bool
}

// TempPath returns the sibling temp file path for an original.
func TempPath(path string) string {
	return path + TempSuffix
}

// BackupPath returns where the original is snapshotted: a .bak sibling, or
// the mirrored path under the root's backup tree.
func BackupPath(root, path string, inSubfolder bool) string {
	if !inSubfolder {
		return path + BackupSuffix
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		rel = filepath.Base(path)
	}
	return filepath.Join(root, BackupDirName, rel+BackupSuffix)
}

// AdoptTemp swaps the fully written temp file over the original. Steps:
// capture timestamps, capture and clear restrictive attributes, snapshot the
// original to its backup, rename, restore timestamps and attributes. Any
// failure leaves the original (or its backup) in place and is reported to
// the caller; the temp file is the caller's to keep or delete.
func AdoptTemp(path, tempPath string, res *models.FileResult, opts Options) error {
	if opts.Cancelled != nil && opts.Cancelled() {
		return fmt.Errorf("replace of %s cancelled", path)
	}

	var times fileTimes
	if opts.KeepFileDate {
		t, err := captureTimes(path)
		if err != nil {
			return fmt.Errorf("failed to read timestamps of %s: %w", path, err)
		}
		times = t
	}

	attrs, restrictive, err := captureAttrs(path)
	if err != nil {
		return fmt.Errorf("failed to read attributes of %s: %w", path, err)
	}
	if restrictive {
		if err := clearAttrs(path); err != nil {
			return fmt.Errorf("failed to clear attributes of %s: %w", path, err)
		}
	}

	if opts.CreateBackup && !res.BackedUp {
		if _, err := snapshotOriginal(path, opts); err != nil {
			return fmt.Errorf("failed to back up %s: %w", path, err)
		}
		res.BackedUp = true
	}

	// The swap itself: from here the rename completes or fails as a unit.
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	if opts.KeepFileDate {
		restoreTimesWithRetry(path, times)
	}
	if restrictive {
		if err := restoreAttrs(path, attrs); err != nil {
			return fmt.Errorf("failed to restore attributes of %s: %w", path, err)
		}
	}

	return nil
}

// snapshotOriginal moves the original to its backup location and registers
// the backup path so the walker never enters it. The rewritten content
// takes the original's place right after. When the backup lands in the
// shared per-root subtree, the tree is lock-guarded so two concurrent runs
// cannot interleave it.
func snapshotOriginal(path string, opts Options) (string, error) {
	backupPath := BackupPath(opts.SearchRoot, path, opts.BackupInSubfolder)

	if opts.BackupInSubfolder {
		backupRoot := filepath.Join(opts.SearchRoot, BackupDirName)
		if err := os.MkdirAll(filepath.Dir(backupPath), 0755); err != nil {
			return "", err
		}
		lock := filelock.NewFileLock(filepath.Join(backupRoot, ".lock"))
		if err := lock.Lock(); err != nil {
			return "", err
		}
		defer lock.Unlock()
	}

	if opts.Registry != nil {
		opts.Registry.Add(backupPath)
	}

	// A stale backup from an earlier run may be read-only; drop that
	// before overwriting.
	if _, err := os.Stat(backupPath); err == nil {
		_ = clearAttrs(backupPath)
	}

	if err := os.Rename(path, backupPath); err == nil {
		return backupPath, nil
	}
	// Cross-device moves degrade to copy-and-delete.
	if err := copyFile(path, backupPath); err != nil {
		return "", err
	}
	if err := os.Remove(path); err != nil {
		return "", err
	}
	return backupPath, nil
}

// restoreTimesWithRetry restores timestamps, retrying while the filesystem
// still holds write attributes from the rename. The swap has already
// happened, so a final failure is not fatal.
func restoreTimesWithRetry(path string, times fileTimes) {
	for i := 0; i < timestampRetries; i++ {
		if restoreTimes(path, times) == nil {
			return
		}
		time.Sleep(timestampRetryDelay)
	}
}

// copyFile copies src to dst, creating or truncating dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
