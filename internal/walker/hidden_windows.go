//go:build windows

package walker

import (
	"golang.org/x/sys/windows"
)

// entryHidden reports whether an entry carries FILE_ATTRIBUTE_HIDDEN.
func entryHidden(path string, _ string) bool {
	attrs, err := fileAttributes(path)
	if err != nil {
		return false
	}
	return attrs&windows.FILE_ATTRIBUTE_HIDDEN != 0
}

// entrySystem reports whether an entry carries FILE_ATTRIBUTE_SYSTEM.
func entrySystem(path string) bool {
	attrs, err := fileAttributes(path)
	if err != nil {
		return false
	}
	return attrs&windows.FILE_ATTRIBUTE_SYSTEM != 0
}

func fileAttributes(path string) (uint32, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	return windows.GetFileAttributes(p)
}
