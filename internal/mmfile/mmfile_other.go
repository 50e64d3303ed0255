//go:build !unix

package mmfile

import (
	"io"
	"os"
)

// mapReadOnly reads the entire file when mmap is not available.
func mapReadOnly(f *os.File, size int) ([]byte, bool, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, false, err
	}
	return data, false, nil
}

func unmap([]byte) error { return nil }
