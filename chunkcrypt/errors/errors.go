package errors

import (
	stderrors "errors"
	"fmt"
)

// Sentinels for every failure the chunk engine reports. Compare with
// errors.Is; the values returned carry the same Code plus path details.
var (
	// ErrMissingMetadata is returned when a chunk set has no count record
	ErrMissingMetadata = &ChunkError{Code: "MISSING_METADATA", Message: "chunk count record not found"}

	// ErrCorruptMetadata is returned when the count record is not an integer in
	// [1, MaxInt32]
	ErrCorruptMetadata = &ChunkError{Code: "CORRUPT_METADATA", Message: "chunk count record is corrupt"}

	// ErrMissingChunk is returned when a chunk named by the count record is absent
	ErrMissingChunk = &ChunkError{Code: "MISSING_CHUNK", Message: "chunk not found"}

	// ErrDestinationExists is returned when a write target is already present
	ErrDestinationExists = &ChunkError{Code: "DESTINATION_EXISTS", Message: "destination already exists"}

	// ErrTransformFailure is returned when a transform fails on a chunk
	ErrTransformFailure = &ChunkError{Code: "TRANSFORM_FAILED", Message: "chunk transform failed"}

	// ErrIOFailure wraps any other storage failure
	ErrIOFailure = &ChunkError{Code: "IO_FAILED", Message: "storage operation failed"}
)

// ChunkError is a failure of a chunk set read, write or stat. Details usually
// holds "path" and, for per-chunk failures, "index".
type ChunkError struct {
	Code    string
	Message string
	Cause   error // storage or transform error
	Details map[string]interface{}
}

// Error renders "[CODE] message: cause", falling back to the details when
// there is no cause.
func (e *ChunkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	if len(e.Details) > 0 {
		return fmt.Sprintf("[%s] %s (details: %v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the storage or transform error, so errors.Is(err,
// fs.ErrNotExist) and context checks see through a ChunkError.
func (e *ChunkError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a ChunkError with the same code, so
// errors.Is(err, ErrMissingChunk) matches any derived error.
func (e *ChunkError) Is(target error) bool {
	t, ok := target.(*ChunkError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of e wrapping cause. Sentinels are never mutated.
func (e *ChunkError) WithCause(cause error) *ChunkError {
	return &ChunkError{
		Code:    e.Code,
		Message: e.Message,
		Cause:   cause,
		Details: e.Details,
	}
}

// WithDetail returns a copy of e with key set in a fresh Details map.
func (e *ChunkError) WithDetail(key string, value interface{}) *ChunkError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &ChunkError{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Details: details,
	}
}

// WithMessage returns a copy of e with its message replaced.
func (e *ChunkError) WithMessage(message string) *ChunkError {
	return &ChunkError{
		Code:    e.Code,
		Message: message,
		Cause:   e.Cause,
		Details: e.Details,
	}
}

// IsChunkError reports whether err came from the chunk engine rather than
// from context cancellation or configuration.
func IsChunkError(err error) bool {
	var chunkErr *ChunkError
	return stderrors.As(err, &chunkErr)
}

// GetErrorCode returns the Code of the first ChunkError in err's chain, or
// "" when there is none.
func GetErrorCode(err error) string {
	var chunkErr *ChunkError
	if stderrors.As(err, &chunkErr) {
		return chunkErr.Code
	}
	return ""
}
