package alloc

import (
	"io"
	"sync"
)

// Locked serialises every call on a SegAllocator behind one mutex, so a
// single heap can be shared between goroutines. Slices returned by Bytes are
// not protected; callers must not use them concurrently with a call that may
// grow the heap.
type Locked struct {
	mu sync.Mutex
	a  *SegAllocator
}

// NewLocked wraps a. The caller must stop using a directly.
func NewLocked(a *SegAllocator) *Locked {
	return &Locked{a: a}
}

func (l *Locked) Alloc(size int) (Ptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Alloc(size)
}

func (l *Locked) Free(p Ptr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Free(p)
}

func (l *Locked) Realloc(p Ptr, size int) (Ptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Realloc(p, size)
}

func (l *Locked) Calloc(count, size int) (Ptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Calloc(count, size)
}

func (l *Locked) Bytes(p Ptr) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Bytes(p)
}

// Write copies data into the payload at p under the lock. It returns
// ErrBadPtr when p is not live and io.ErrShortWrite when data does not fit.
func (l *Locked) Write(p Ptr, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	buf := l.a.Bytes(p)
	if buf == nil {
		return ErrBadPtr
	}
	if len(data) > len(buf) {
		return io.ErrShortWrite
	}
	copy(buf, data)
	return nil
}

// Read copies the payload at p into a new slice under the lock.
func (l *Locked) Read(p Ptr) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	buf := l.a.Bytes(p)
	if buf == nil {
		return nil, ErrBadPtr
	}
	return append([]byte(nil), buf...), nil
}

func (l *Locked) Check(label string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Check(label)
}

func (l *Locked) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Stats()
}
