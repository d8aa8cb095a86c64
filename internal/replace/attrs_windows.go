//go:build windows

package replace

import (
	"time"

	"golang.org/x/sys/windows"
)

// fileTimes carries the timestamps preserved across a swap.
type fileTimes struct {
	creation   windows.Filetime
	lastAccess windows.Filetime
	lastWrite  windows.Filetime
}

// fileAttrs carries the attribute bits preserved across a swap.
type fileAttrs struct {
	attrs uint32
}

// restrictiveMask covers the attribute bits that block a rename-over.
const restrictiveMask = windows.FILE_ATTRIBUTE_HIDDEN |
	windows.FILE_ATTRIBUTE_READONLY |
	windows.FILE_ATTRIBUTE_SYSTEM

// captureTimes reads creation, access and write times.
func captureTimes(path string) (fileTimes, error) {
	h, err := openAttrHandle(path, windows.FILE_READ_ATTRIBUTES)
	if err != nil {
		return fileTimes{}, err
	}
	defer windows.CloseHandle(h)

	var t fileTimes
	if err := windows.GetFileTime(h, &t.creation, &t.lastAccess, &t.lastWrite); err != nil {
		return fileTimes{}, err
	}
	return t, nil
}

// restoreTimes writes the captured times back, including the creation time.
func restoreTimes(path string, t fileTimes) error {
	h, err := openAttrHandle(path, windows.FILE_WRITE_ATTRIBUTES)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)
	return windows.SetFileTime(h, &t.creation, &t.lastAccess, &t.lastWrite)
}

// captureAttrs reads the attribute bits and reports whether any of the
// hidden, system or read-only bits are set.
func captureAttrs(path string) (fileAttrs, bool, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return fileAttrs{}, false, err
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return fileAttrs{}, false, err
	}
	return fileAttrs{attrs: attrs}, attrs&restrictiveMask != 0, nil
}

// clearAttrs drops all attribute bits so the file can be renamed over.
func clearAttrs(path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	return windows.SetFileAttributes(p, windows.FILE_ATTRIBUTE_NORMAL)
}

// restoreAttrs writes the captured attribute bits back.
func restoreAttrs(path string, a fileAttrs) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	return windows.SetFileAttributes(p, a.attrs)
}

// openAttrHandle opens a handle suitable for reading or writing attributes
// while other handles remain open on the file.
func openAttrHandle(path string, access uint32) (windows.Handle, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	return windows.CreateFile(p, access,
		windows.FILE_SHARE_DELETE|windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil, windows.OPEN_EXISTING, 0, 0)
}
