//go:build !linux && !darwin

package heap

import (
	"fmt"
	"io"
	"os"
)

// mapFile loads the file into memory on platforms without the mmap path.
func mapFile(f *os.File, size int64) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

func unmapFile(f *os.File, data []byte) error {
	_, err := f.WriteAt(data, 0)
	return err
}

// resize truncates the file and resizes the in-memory mirror.
func (r *File) resize(newSize int64) error {
	if err := r.f.Truncate(newSize); err != nil {
		return fmt.Errorf("%w: truncate to %d: %v", ErrExhausted, newSize, err)
	}
	data := make([]byte, newSize)
	copy(data, r.data)
	r.data = data
	r.size = newSize
	return nil
}

func (r *File) syncRange(off, n int) error {
	if _, err := r.f.WriteAt(r.data[off:off+n], int64(off)); err != nil {
		return err
	}
	return r.f.Sync()
}
