package transform

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"
)

// NewDummyCodec returns the placeholder "encryption": standard base64,
// slowed down in proportion to the chunk length so that the cost of a real
// cipher can be simulated. It provides no secrecy.
func NewDummyCodec(delayDivisor int) *Codec {
	return &Codec{
		Name: "dummy",
		Encode: func(ctx context.Context, chunk []byte) ([]byte, error) {
			if err := simulateWork(ctx, len(chunk), delayDivisor); err != nil {
				return nil, err
			}
			out := make([]byte, base64.StdEncoding.EncodedLen(len(chunk)))
			base64.StdEncoding.Encode(out, chunk)
			return out, nil
		},
		Decode: func(ctx context.Context, chunk []byte) ([]byte, error) {
			if err := simulateWork(ctx, len(chunk), delayDivisor); err != nil {
				return nil, err
			}
			out := make([]byte, base64.StdEncoding.DecodedLen(len(chunk)))
			n, err := base64.StdEncoding.Decode(out, chunk)
			if err != nil {
				return nil, fmt.Errorf("base64 decode: %w", err)
			}
			return out[:n], nil
		},
	}
}

// simulateWork sleeps length/divisor milliseconds, or returns early when ctx
// is done.
func simulateWork(ctx context.Context, length int, divisor int) error {
	if divisor <= 0 {
		return ctx.Err()
	}
	delay := time.Duration(length/divisor) * time.Millisecond
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
