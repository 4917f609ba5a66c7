package transform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// NewGzipCodec compresses each chunk as an independent gzip member.
func NewGzipCodec() *Codec {
	return &Codec{
		Name: "gzip",
		Encode: func(ctx context.Context, chunk []byte) ([]byte, error) {
			var buf bytes.Buffer
			gw, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
			if err != nil {
				return nil, fmt.Errorf("gzip compress: %w", err)
			}
			if _, err := gw.Write(chunk); err != nil {
				gw.Close()
				return nil, fmt.Errorf("gzip compress: %w", err)
			}
			if err := gw.Close(); err != nil {
				return nil, fmt.Errorf("gzip compress: %w", err)
			}
			return buf.Bytes(), nil
		},
		Decode: func(ctx context.Context, chunk []byte) ([]byte, error) {
			gr, err := gzip.NewReader(bytes.NewReader(chunk))
			if err != nil {
				return nil, fmt.Errorf("gzip decompress: %w", err)
			}
			defer gr.Close()
			out, err := io.ReadAll(gr)
			if err != nil {
				return nil, fmt.Errorf("gzip decompress: %w", err)
			}
			return out, nil
		},
	}
}

// zstd.Encoder.EncodeAll and zstd.Decoder.DecodeAll are safe for concurrent
// use, so one pair is shared by every chunk task.
var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func initZstd() {
	// Empty chunks still get a frame so Decode never sees zero bytes.
	zstdEncoder, zstdErr = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithZeroFrames(true),
	)
	if zstdErr != nil {
		return
	}
	zstdDecoder, zstdErr = zstd.NewReader(nil)
}

// NewZstdCodec compresses each chunk as an independent zstd frame.
func NewZstdCodec() (*Codec, error) {
	zstdOnce.Do(initZstd)
	if zstdErr != nil {
		return nil, fmt.Errorf("zstd initialization failed: %w", zstdErr)
	}

	return &Codec{
		Name: "zstd",
		Encode: func(ctx context.Context, chunk []byte) ([]byte, error) {
			return zstdEncoder.EncodeAll(chunk, make([]byte, 0, len(chunk)/2)), nil
		},
		Decode: func(ctx context.Context, chunk []byte) ([]byte, error) {
			out, err := zstdDecoder.DecodeAll(chunk, nil)
			if err != nil {
				return nil, fmt.Errorf("zstd decompress: %w", err)
			}
			return out, nil
		},
	}, nil
}

// NewLZ4Codec compresses each chunk as an independent LZ4 frame. The frame
// format records its own length, so no size has to be stored alongside.
func NewLZ4Codec() *Codec {
	return &Codec{
		Name: "lz4",
		Encode: func(ctx context.Context, chunk []byte) ([]byte, error) {
			var buf bytes.Buffer
			lw := lz4.NewWriter(&buf)
			if _, err := lw.Write(chunk); err != nil {
				return nil, fmt.Errorf("lz4 compress: %w", err)
			}
			if err := lw.Close(); err != nil {
				return nil, fmt.Errorf("lz4 compress: %w", err)
			}
			return buf.Bytes(), nil
		},
		Decode: func(ctx context.Context, chunk []byte) ([]byte, error) {
			out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(chunk)))
			if err != nil {
				return nil, fmt.Errorf("lz4 decompress: %w", err)
			}
			return out, nil
		},
	}
}
