package chunkcrypt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"

	chunkerrors "github.com/flaneur2020/chunkcrypt/chunkcrypt/errors"
	"github.com/flaneur2020/chunkcrypt/chunkcrypt/logger"
	"github.com/flaneur2020/chunkcrypt/chunkcrypt/storage"
	"golang.org/x/sync/errgroup"
)

// maxChunkCount is the largest count record accepted. At the 1-byte minimum
// chunk size it still covers 2 GiB of content.
const maxChunkCount = math.MaxInt32

// writeState tracks a single Write call for logging.
type writeState string

const (
	writeNotStarted      writeState = "NotStarted"
	writeMetadataWritten writeState = "MetadataWritten"
	writeChunksInFlight  writeState = "ChunksInFlight"
	writeCompleted       writeState = "Completed"
	writeFailed          writeState = "Failed"
)

// ChunkSetInfo describes a chunk set on storage.
type ChunkSetInfo struct {
	Path       string
	ChunkCount int
	ChunkSizes []int64
	TotalSize  int64
}

// ChunkedFileService stores each logical file as a directory of fixed-size
// chunk files plus a count record, and transforms chunks in parallel.
//
// A Write never overwrites: an existing chunk set directory or count record
// fails with ErrDestinationExists. A failed Write leaves the chunks it
// already wrote in place; reading such a set fails instead of returning
// partial content.
type ChunkedFileService struct {
	storage     storage.Storage
	layout      Layout
	concurrency int
	progress    ProgressCallback
}

var _ FileService = (*ChunkedFileService)(nil)

// NewChunkedFileService builds a ChunkedFileService over s. A nil opts uses
// DefaultOptions().
func NewChunkedFileService(s storage.Storage, opts *Options) (*ChunkedFileService, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	layout := opts.Layout
	if layout.ChunkSize == 0 {
		layout.ChunkSize = DefaultChunkSize
	}
	if layout.ChunkPrefix == "" {
		layout.ChunkPrefix = DefaultChunkPrefix
	}
	if layout.CountRecordName == "" {
		layout.CountRecordName = DefaultCountRecordName
	}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	return &ChunkedFileService{
		storage:     s,
		layout:      layout,
		concurrency: concurrency,
		progress:    opts.Progress,
	}, nil
}

// Layout returns the layout the service reads and writes.
func (s *ChunkedFileService) Layout() Layout {
	return s.layout
}

// Read returns the content of the chunk set at path.
func (s *ChunkedFileService) Read(ctx context.Context, path string) ([]byte, error) {
	return s.ReadTransform(ctx, path, Identity)
}

// ReadTransform reads every chunk of the chunk set at path concurrently,
// applies fn to each, and joins the results in index order. The returned
// length is the sum of the transformed chunk lengths. Any chunk failure
// fails the whole read.
func (s *ChunkedFileService) ReadTransform(ctx context.Context, path string, fn Transform) ([]byte, error) {
	if fn == nil {
		fn = Identity
	}

	totalChunks, err := s.readChunkCount(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := s.checkLastChunk(ctx, path, totalChunks); err != nil {
		return nil, err
	}
	logger.Debug("Reading %d chunks from %s", totalChunks, path)

	chunks := make([][]byte, totalChunks)
	tracker := newProgressTracker(s.progress, totalChunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := 0; i < totalChunks; i++ {
		index := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			raw, err := s.readChunk(gctx, path, index)
			if err != nil {
				return err
			}

			transformed, err := fn(gctx, raw)
			if err != nil {
				return chunkerrors.ErrTransformFailure.
					WithDetail("path", s.layout.ChunkPath(path, index)).
					WithDetail("index", index).
					WithCause(err)
			}

			chunks[index] = transformed
			tracker.chunkDone()
			logger.Debug("Read chunk %d of %s (%d bytes, %d after transform)", index, path, len(raw), len(transformed))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Reading %s failed: %v", path, err)
		return nil, err
	}

	return joinChunks(chunks), nil
}

// Write stores content as a chunk set at path without transforming it.
func (s *ChunkedFileService) Write(ctx context.Context, path string, content []byte) error {
	return s.WriteTransform(ctx, path, content, nil)
}

// WriteTransform stores content as a chunk set at path. The count record is
// created first, then every chunk is transformed by fn (if not nil) and
// written concurrently. Chunks written before a failure are not removed.
func (s *ChunkedFileService) WriteTransform(ctx context.Context, path string, content []byte, fn Transform) error {
	length := int64(len(content))
	totalChunks := s.layout.ChunkCount(length)

	state := writeNotStarted
	logger.Debug("Write %s: %s (%d bytes, %d chunks)", path, state, length, totalChunks)

	if err := s.writeChunkCount(ctx, path, totalChunks); err != nil {
		logger.Debug("Write %s: %s", path, writeFailed)
		return err
	}
	state = writeMetadataWritten
	logger.Debug("Write %s: %s", path, state)

	tracker := newProgressTracker(s.progress, totalChunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	state = writeChunksInFlight
	logger.Debug("Write %s: %s", path, state)
	for i := 0; i < totalChunks; i++ {
		index := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			offset, count := s.layout.ChunkRange(index, length)
			// Cap the slice so a transform appending to it cannot touch the next chunk.
			chunk := content[offset : offset+count : offset+count]

			if fn != nil {
				transformed, err := fn(gctx, chunk)
				if err != nil {
					return chunkerrors.ErrTransformFailure.
						WithDetail("path", s.layout.ChunkPath(path, index)).
						WithDetail("index", index).
						WithCause(err)
				}
				chunk = transformed
			}

			if err := s.writeChunk(gctx, path, index, chunk); err != nil {
				return err
			}
			tracker.chunkDone()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Writing %s failed: %v", path, err)
		logger.Warn("Chunk set %s is incomplete; remove it before writing again", path)
		logger.Debug("Write %s: %s", path, writeFailed)
		return err
	}

	state = writeCompleted
	logger.Debug("Write %s: %s", path, state)
	return nil
}

// Stat reports the chunk count and the stored size of every chunk of the
// chunk set at path.
func (s *ChunkedFileService) Stat(ctx context.Context, path string) (*ChunkSetInfo, error) {
	totalChunks, err := s.readChunkCount(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := s.checkLastChunk(ctx, path, totalChunks); err != nil {
		return nil, err
	}

	info := &ChunkSetInfo{
		Path:       path,
		ChunkCount: totalChunks,
		ChunkSizes: make([]int64, totalChunks),
	}
	for i := 0; i < totalChunks; i++ {
		chunkPath := s.layout.ChunkPath(path, i)
		size, err := s.storage.Size(ctx, chunkPath)
		if err != nil {
			return nil, classifyChunkError(err, chunkPath, i)
		}
		info.ChunkSizes[i] = size
		info.TotalSize += size
	}
	return info, nil
}

// readChunkCount loads and parses the count record of the chunk set at path.
func (s *ChunkedFileService) readChunkCount(ctx context.Context, path string) (int, error) {
	recordPath := s.layout.CountRecordPath(path)

	data, err := s.storage.ReadFile(ctx, recordPath)
	if err != nil {
		if storage.IsNotExist(err) {
			return 0, chunkerrors.ErrMissingMetadata.WithDetail("path", recordPath).WithCause(err)
		}
		if isContextError(err) {
			return 0, err
		}
		return 0, chunkerrors.ErrIOFailure.WithDetail("path", recordPath).WithCause(err)
	}

	text := strings.TrimSpace(string(data))
	count, err := strconv.Atoi(text)
	if err != nil {
		return 0, chunkerrors.ErrCorruptMetadata.
			WithDetail("path", recordPath).
			WithDetail("content", text).
			WithCause(err)
	}
	if count <= 0 || count > maxChunkCount {
		return 0, chunkerrors.ErrCorruptMetadata.
			WithDetail("path", recordPath).
			WithDetail("content", text).
			WithCause(fmt.Errorf("chunk count must be in [1, %d], got %d", maxChunkCount, count))
	}
	return count, nil
}

// checkLastChunk stats the highest-indexed chunk the count record names, so
// an inflated count fails with ErrMissingChunk before anything is sized by it.
func (s *ChunkedFileService) checkLastChunk(ctx context.Context, path string, totalChunks int) error {
	last := totalChunks - 1
	chunkPath := s.layout.ChunkPath(path, last)
	if _, err := s.storage.Size(ctx, chunkPath); err != nil {
		return classifyChunkError(err, chunkPath, last)
	}
	return nil
}

// writeChunkCount creates the chunk set directory and its count record.
// Neither may exist beforehand.
func (s *ChunkedFileService) writeChunkCount(ctx context.Context, path string, totalChunks int) error {
	if err := s.storage.Mkdir(ctx, path); err != nil {
		return classifyCreateError(err, path)
	}

	recordPath := s.layout.CountRecordPath(path)
	if err := s.storage.CreateFile(ctx, recordPath, []byte(strconv.Itoa(totalChunks))); err != nil {
		return classifyCreateError(err, recordPath)
	}
	return nil
}

func (s *ChunkedFileService) readChunk(ctx context.Context, path string, index int) ([]byte, error) {
	chunkPath := s.layout.ChunkPath(path, index)
	data, err := s.storage.ReadFile(ctx, chunkPath)
	if err != nil {
		return nil, classifyChunkError(err, chunkPath, index)
	}
	return data, nil
}

func (s *ChunkedFileService) writeChunk(ctx context.Context, path string, index int, data []byte) error {
	chunkPath := s.layout.ChunkPath(path, index)
	if err := s.storage.CreateFile(ctx, chunkPath, data); err != nil {
		return classifyCreateError(err, chunkPath)
	}
	logger.Debug("Wrote chunk %d of %s (%d bytes)", index, path, len(data))
	return nil
}

// joinChunks concatenates chunks in slice order.
func joinChunks(chunks [][]byte) []byte {
	var size int
	for _, chunk := range chunks {
		size += len(chunk)
	}

	joined := make([]byte, size)
	var pos int
	for _, chunk := range chunks {
		pos += copy(joined[pos:], chunk)
	}
	return joined
}

func classifyChunkError(err error, chunkPath string, index int) error {
	switch {
	case isContextError(err):
		return err
	case storage.IsNotExist(err):
		return chunkerrors.ErrMissingChunk.
			WithDetail("path", chunkPath).
			WithDetail("index", index).
			WithCause(err)
	default:
		return chunkerrors.ErrIOFailure.
			WithDetail("path", chunkPath).
			WithDetail("index", index).
			WithCause(err)
	}
}

func classifyCreateError(err error, path string) error {
	if storage.IsExist(err) {
		return chunkerrors.ErrDestinationExists.WithDetail("path", path).WithCause(err)
	}
	if isContextError(err) {
		return err
	}
	return chunkerrors.ErrIOFailure.WithDetail("path", path).WithCause(err)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
