package alloc

import (
	"log/slog"
	"os"

	"github.com/joshuapare/segheap/internal/format"
)

// Runtime debug flag for allocation logging - controlled by HEAP_LOG_ALLOC env var.
var logAlloc = os.Getenv("HEAP_LOG_ALLOC") != ""

// Config tunes an allocator. The zero value of each field selects its default.
type Config struct {
	// ChunkSize is the minimum number of bytes requested from the region
	// when no free block fits. Rounded up to a multiple of 8, at least 16.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`

	// Strict makes pointer validation walk the block chain to prove a
	// pointer is a block start. O(n) per Free/Realloc.
	Strict bool `yaml:"strict" json:"strict"`

	// Logger receives debug events (growth, exhaustion). Nil selects a
	// discard logger, or stderr when HEAP_LOG_ALLOC is set.
	Logger *slog.Logger `yaml:"-" json:"-"`
}

// DefaultConfig matches the classic 256-byte extension policy.
var DefaultConfig = Config{
	ChunkSize: format.ChunkSize,
}

func (c Config) normalize() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = format.ChunkSize
	}
	c.ChunkSize = max(format.Align8(c.ChunkSize), format.MinBlockSize)
	if c.Logger == nil {
		c.Logger = defaultLogger()
	}
	return c
}

func defaultLogger() *slog.Logger {
	if logAlloc {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.DiscardHandler)
}
