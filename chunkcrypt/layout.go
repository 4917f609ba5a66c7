package chunkcrypt

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// DefaultChunkSize is the maximum size of a single chunk: 10 MiB.
	DefaultChunkSize int64 = 10 * 1024 * 1024

	// DefaultChunkPrefix names chunk files as chunk0, chunk1, ...
	DefaultChunkPrefix = "chunk"

	// DefaultCountRecordName is the file holding the decimal chunk count.
	DefaultCountRecordName = "total_chunks"
)

// Layout maps a logical file onto a chunk set directory. All methods are
// pure: reader and writer agree on paths and boundaries without sharing
// any state.
type Layout struct {
	ChunkSize       int64
	ChunkPrefix     string
	CountRecordName string
}

// DefaultLayout returns the 10 MiB chunk/total_chunks layout.
func DefaultLayout() Layout {
	return Layout{
		ChunkSize:       DefaultChunkSize,
		ChunkPrefix:     DefaultChunkPrefix,
		CountRecordName: DefaultCountRecordName,
	}
}

// Validate checks that the layout can produce distinct, non-empty names
// and a positive chunk size.
func (l Layout) Validate() error {
	if l.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", l.ChunkSize)
	}
	if l.ChunkPrefix == "" {
		return fmt.Errorf("chunk prefix must not be empty")
	}
	if l.CountRecordName == "" {
		return fmt.Errorf("count record name must not be empty")
	}
	if suffix, ok := strings.CutPrefix(l.CountRecordName, l.ChunkPrefix); ok && isDigits(suffix) {
		return fmt.Errorf("count record name %q collides with chunk names", l.CountRecordName)
	}
	return nil
}

// ChunkCount returns how many chunks a file of length bytes is split into.
// Empty and small files still occupy one chunk.
func (l Layout) ChunkCount(length int64) int {
	if length <= l.ChunkSize {
		return 1
	}
	return int((length + l.ChunkSize - 1) / l.ChunkSize)
}

// ChunkRange returns the byte range of chunk index within a file of length
// bytes. It is defined for 0 <= index < ChunkCount(length).
func (l Layout) ChunkRange(index int, length int64) (offset int64, count int64) {
	offset = int64(index) * l.ChunkSize
	count = length - offset
	if count > l.ChunkSize {
		count = l.ChunkSize
	}
	return offset, count
}

// ChunkPath returns the path of chunk index inside the chunk set at base.
func (l Layout) ChunkPath(base string, index int) string {
	return filepath.Join(base, l.ChunkPrefix+strconv.Itoa(index))
}

// CountRecordPath returns the path of the count record of the chunk set at base.
func (l Layout) CountRecordPath(base string) string {
	return filepath.Join(base, l.CountRecordName)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
