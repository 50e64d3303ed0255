package heap

import (
	"fmt"
	"os"

	"github.com/joshuapare/segheap/internal/format"
)

// File is a Region persisted in a file. On linux and darwin the file is mapped
// MAP_SHARED; elsewhere it is mirrored into memory and written through on
// Sync.
type File struct {
	f    *os.File
	data []byte
	size int64
	max  int64
}

// Create creates (or truncates) path and returns an empty file region capped
// at max bytes. max <= 0 selects format.DefaultMaxHeap.
func Create(path string, max int64) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	return &File{f: f, max: normalizeMax(max)}, nil
}

// Open maps an existing heap file. The file's current length becomes the
// region size.
func Open(path string, max int64) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r := &File{f: f, max: normalizeMax(max)}
	if st.Size() > r.max {
		_ = f.Close()
		return nil, fmt.Errorf("heap: %s is %d bytes, above max %d", path, st.Size(), r.max)
	}
	if st.Size() == 0 {
		return r, nil
	}
	data, err := mapFile(f, st.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("heap: map %s: %w", path, err)
	}
	r.data = data
	r.size = st.Size()
	return r, nil
}

func normalizeMax(max int64) int64 {
	if max <= 0 {
		return format.DefaultMaxHeap
	}
	return max
}

func (r *File) Bytes() []byte { return r.data }

func (r *File) Size() int64 { return r.size }

// Name returns the path of the backing file.
func (r *File) Name() string {
	if r == nil || r.f == nil {
		return ""
	}
	return r.f.Name()
}

// Extend grows the file by n bytes and remaps it.
func (r *File) Extend(n int) (int, error) {
	if r == nil || r.f == nil {
		return 0, ErrClosed
	}
	if n < 0 {
		return 0, fmt.Errorf("heap: negative extend %d", n)
	}
	old := r.size
	if int64(n) > r.max-old {
		return 0, fmt.Errorf("%w: have %d, want %d more, max %d", ErrExhausted, old, n, r.max)
	}
	if n == 0 {
		return int(old), nil
	}
	if err := r.resize(old + int64(n)); err != nil {
		return 0, err
	}
	return int(old), nil
}

// Reset truncates the file to zero bytes.
func (r *File) Reset() error {
	if r == nil || r.f == nil {
		return ErrClosed
	}
	return r.resize(0)
}

// Sync flushes [off, off+n) to disk.
func (r *File) Sync(off, n int) error {
	if r == nil || r.f == nil {
		return ErrClosed
	}
	if off < 0 || n < 0 || int64(off+n) > r.size {
		return fmt.Errorf("heap: sync range [%d,%d) outside region of %d bytes", off, off+n, r.size)
	}
	if n == 0 {
		return nil
	}
	return r.syncRange(off, n)
}

// Close unmaps the region and closes the file.
func (r *File) Close() error {
	if r == nil || r.f == nil {
		return nil
	}
	var err error
	if r.data != nil {
		err = unmapFile(r.f, r.data)
		r.data = nil
	}
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	r.f = nil
	r.size = 0
	return err
}
