package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/flaneur2020/chunkcrypt/chunkcrypt/logger"
)

// FSStorage is a Storage backed by the local file system.
type FSStorage struct {
	fileMode os.FileMode
	dirMode  os.FileMode
}

var _ Storage = (*FSStorage)(nil)

// NewFSStorage constructs an FSStorage using 0644 files and 0755 directories.
func NewFSStorage() *FSStorage {
	return &FSStorage{
		fileMode: 0644,
		dirMode:  0755,
	}
}

func (s *FSStorage) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (s *FSStorage) Size(ctx context.Context, path string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

func (s *FSStorage) CreateFile(ctx context.Context, path string, data []byte) (retErr error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.fileMode)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("failed to close %s: %w", path, err)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return err
	}
	logger.Debug("Created %s (%d bytes)", path, len(data))
	return nil
}

func (s *FSStorage) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, s.fileMode); err != nil {
		return err
	}
	logger.Debug("Wrote %s (%d bytes)", path, len(data))
	return nil
}

func (s *FSStorage) Mkdir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Mkdir(path, s.dirMode)
}
