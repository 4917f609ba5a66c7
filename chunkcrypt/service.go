package chunkcrypt

import (
	"context"
	"runtime"
	"sync"
)

// Transform maps the bytes of one chunk to new bytes. It may be called
// concurrently from many goroutines and must not retain or mutate its input.
type Transform func(ctx context.Context, chunk []byte) ([]byte, error)

// Identity returns its input unchanged.
func Identity(ctx context.Context, chunk []byte) ([]byte, error) {
	return chunk, nil
}

// FileService reads and writes whole logical files, optionally passing the
// content through a Transform.
type FileService interface {
	Read(ctx context.Context, path string) ([]byte, error)
	ReadTransform(ctx context.Context, path string, fn Transform) ([]byte, error)
	Write(ctx context.Context, path string, content []byte) error
	WriteTransform(ctx context.Context, path string, content []byte, fn Transform) error
}

// ProgressCallback is called as chunks complete.
// done: chunks finished so far
// total: chunks in the operation
type ProgressCallback func(done int64, total int64)

// Options configure a ChunkedFileService.
type Options struct {
	// Layout controls chunk size and file names. Zero fields take the
	// DefaultLayout() values.
	Layout Layout
	// Concurrency caps the number of chunk tasks in flight. Zero means
	// runtime.GOMAXPROCS(0).
	Concurrency int
	// Progress, if set, is invoked after every successful chunk task.
	Progress ProgressCallback
}

// DefaultOptions returns options using the default layout and host parallelism.
func DefaultOptions() *Options {
	return &Options{
		Layout:      DefaultLayout(),
		Concurrency: runtime.GOMAXPROCS(0),
	}
}

// progressTracker serialises ProgressCallback invocations from chunk tasks.
type progressTracker struct {
	mu       sync.Mutex
	done     int64
	total    int64
	callback ProgressCallback
}

func newProgressTracker(callback ProgressCallback, total int) *progressTracker {
	t := &progressTracker{total: int64(total), callback: callback}
	if callback != nil {
		callback(0, t.total)
	}
	return t
}

func (t *progressTracker) chunkDone() {
	if t.callback == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done++
	t.callback(t.done, t.total)
}
