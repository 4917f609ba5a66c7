package chunkcrypt

import (
	"context"

	chunkerrors "github.com/flaneur2020/chunkcrypt/chunkcrypt/errors"
	"github.com/flaneur2020/chunkcrypt/chunkcrypt/storage"
)

// WholeFileService reads and writes a logical file as one flat file and
// transforms it in a single call. It is the baseline the chunked service is
// compared against.
type WholeFileService struct {
	storage storage.Storage
}

var _ FileService = (*WholeFileService)(nil)

func NewWholeFileService(s storage.Storage) *WholeFileService {
	return &WholeFileService{storage: s}
}

func (s *WholeFileService) Read(ctx context.Context, path string) ([]byte, error) {
	return s.ReadTransform(ctx, path, Identity)
}

func (s *WholeFileService) ReadTransform(ctx context.Context, path string, fn Transform) ([]byte, error) {
	data, err := s.storage.ReadFile(ctx, path)
	if err != nil {
		if isContextError(err) {
			return nil, err
		}
		return nil, chunkerrors.ErrIOFailure.WithDetail("path", path).WithCause(err)
	}
	if fn == nil {
		return data, nil
	}

	transformed, err := fn(ctx, data)
	if err != nil {
		return nil, chunkerrors.ErrTransformFailure.WithDetail("path", path).WithCause(err)
	}
	return transformed, nil
}

func (s *WholeFileService) Write(ctx context.Context, path string, content []byte) error {
	return s.WriteTransform(ctx, path, content, nil)
}

// WriteTransform replaces the file at path with fn(content).
func (s *WholeFileService) WriteTransform(ctx context.Context, path string, content []byte, fn Transform) error {
	if fn != nil {
		transformed, err := fn(ctx, content)
		if err != nil {
			return chunkerrors.ErrTransformFailure.WithDetail("path", path).WithCause(err)
		}
		content = transformed
	}

	if err := s.storage.WriteFile(ctx, path, content); err != nil {
		if isContextError(err) {
			return err
		}
		return chunkerrors.ErrIOFailure.WithDetail("path", path).WithCause(err)
	}
	return nil
}
