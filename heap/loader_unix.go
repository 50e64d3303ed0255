//go:build linux || darwin

package heap

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/joshuapare/segheap/internal/format"
)

func mapFile(f *os.File, size int64) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func unmapFile(_ *os.File, data []byte) error {
	err := unix.Munmap(data)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}

// resize unmaps, truncates the file to newSize and maps it again. On failure
// the previous mapping is restored so the region stays usable.
func (r *File) resize(newSize int64) error {
	fd := int(r.f.Fd())
	if r.data != nil {
		if err := unix.Munmap(r.data); err != nil {
			return fmt.Errorf("heap: failed to unmap before resize: %w", err)
		}
		r.data = nil
	}

	restore := func() {
		if r.size == 0 {
			return
		}
		_ = unix.Ftruncate(fd, r.size)
		data, _ := unix.Mmap(fd, 0, int(r.size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		r.data = data
	}

	if err := unix.Ftruncate(fd, newSize); err != nil {
		restore()
		return fmt.Errorf("%w: truncate to %d: %v", ErrExhausted, newSize, err)
	}
	if newSize == 0 {
		r.size = 0
		return nil
	}

	data, err := unix.Mmap(fd, 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		restore()
		return fmt.Errorf("%w: remap at %d bytes: %v", ErrExhausted, newSize, err)
	}
	r.data = data
	r.size = newSize
	return nil
}

func (r *File) syncRange(off, n int) error {
	start := format.AlignPageDown(off, os.Getpagesize())
	return unix.Msync(r.data[start:off+n], unix.MS_SYNC)
}
