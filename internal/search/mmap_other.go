//go:build !unix

package search

import "os"

// mapFile reads the whole file on platforms without the unix mmap path.
func mapFile(path string) ([]byte, func(), error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return data, func() {}, nil
}
