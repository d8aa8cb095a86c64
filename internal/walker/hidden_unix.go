//go:build !windows

package walker

import "strings"

// entryHidden reports whether an entry is hidden. On unix that is the
// dotfile convention.
func entryHidden(_ string, name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// entrySystem reports whether an entry carries the system attribute. Unix
// filesystems have no such bit.
func entrySystem(_ string) bool {
	return false
}
