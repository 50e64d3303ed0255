// Package mmfile maps persisted heap images read-only for offline inspection.
package mmfile

import (
	"fmt"
	"os"
)

// Mapping is a read-only view of a file. Writing to Bytes on a real mapping
// faults; the fallback copy silently absorbs writes.
type Mapping struct {
	data   []byte
	mapped bool
}

// Map opens path and maps it read-only. Files larger than limit bytes are
// rejected (limit <= 0 disables the check).
func Map(path string, limit int64) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() // the mapping outlives the descriptor

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if limit > 0 && size > limit {
		return nil, fmt.Errorf("mmfile: %s is %d bytes, limit %d", path, size, limit)
	}
	if size > int64(^uint(0)>>1) {
		return nil, fmt.Errorf("mmfile: file too large to map (%d bytes)", size)
	}
	if size == 0 {
		return &Mapping{data: []byte{}}, nil
	}

	data, mapped, err := mapReadOnly(f, int(size))
	if err != nil {
		return nil, fmt.Errorf("mmfile: map %s: %w", path, err)
	}
	return &Mapping{data: data, mapped: mapped}, nil
}

// Bytes returns the mapped contents, nil after Close.
func (m *Mapping) Bytes() []byte { return m.data }

// Len returns the mapped length.
func (m *Mapping) Len() int { return len(m.data) }

// Close releases the mapping. Calling it more than once is a no-op.
func (m *Mapping) Close() error {
	if m == nil || m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	if !m.mapped {
		return nil
	}
	return unmap(data)
}
