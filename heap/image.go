package heap

import (
	"errors"

	"github.com/joshuapare/segheap/internal/mmfile"
)

// ErrReadOnly indicates an attempt to grow or reset an Image.
var ErrReadOnly = errors.New("heap: region is read-only")

// Image is a read-only Region over a persisted heap file, for inspection
// tools that must not disturb the file.
type Image struct {
	m *mmfile.Mapping
}

// OpenImage maps path read-only. max <= 0 selects format.DefaultMaxHeap.
func OpenImage(path string, max int64) (*Image, error) {
	m, err := mmfile.Map(path, normalizeMax(max))
	if err != nil {
		return nil, err
	}
	return &Image{m: m}, nil
}

func (r *Image) Bytes() []byte { return r.m.Bytes() }

func (r *Image) Size() int64 { return int64(r.m.Len()) }

// Extend always fails.
func (r *Image) Extend(int) (int, error) { return 0, ErrReadOnly }

// Close releases the mapping.
func (r *Image) Close() error { return r.m.Close() }
