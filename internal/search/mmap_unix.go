//go:build unix

package search

import (
	"os"

	"golang.org/x/sys/unix"
)

// mapFile maps a file read-only and returns the mapping together with a
// release function. Empty files yield an empty buffer without a mapping;
// mapping failures fall back to a plain read.
func mapFile(path string) ([]byte, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size := info.Size()
	if size == 0 {
		return nil, func() {}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		buf, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, nil, rerr
		}
		return buf, func() {}, nil
	}
	return data, func() { _ = unix.Munmap(data) }, nil
}
