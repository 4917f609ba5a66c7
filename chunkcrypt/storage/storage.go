package storage

import (
	"context"
	"errors"
	"io/fs"
)

// Storage abstracts the whole-buffer file operations the services need.
type Storage interface {
	// ReadFile returns the full contents of path.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// Size returns the length in bytes of the file at path.
	Size(ctx context.Context, path string) (int64, error)
	// CreateFile creates path and writes data to it. It fails if path
	// already exists or its parent directory is missing.
	CreateFile(ctx context.Context, path string, data []byte) error
	// WriteFile creates or truncates path and writes data to it.
	WriteFile(ctx context.Context, path string, data []byte) error
	// Mkdir creates a single directory. It fails if path already exists.
	Mkdir(ctx context.Context, path string) error
}

// IsNotExist reports whether err means a path was absent.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// IsExist reports whether err means a path was already present.
func IsExist(err error) bool {
	return errors.Is(err, fs.ErrExist)
}
