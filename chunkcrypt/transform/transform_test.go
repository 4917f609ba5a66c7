package transform

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func sampleData() []byte {
	return bytes.Repeat([]byte("id,title,score\n42,a story about chunks,7\n"), 200)
}

func TestCodecsRoundTrip(t *testing.T) {
	ctx := context.Background()

	inputs := map[string][]byte{
		"empty":  {},
		"small":  []byte("hello"),
		"binary": {0x00, 0xff, 0x10, 0x80, 0x7f},
		"text":   sampleData(),
	}

	for _, name := range Names() {
		codec, err := Lookup(name, Options{})
		if err != nil {
			t.Fatalf("Lookup(%q) error = %v", name, err)
		}
		for inputName, input := range inputs {
			t.Run(name+"/"+inputName, func(t *testing.T) {
				encoded, err := codec.Encode(ctx, input)
				if err != nil {
					t.Fatalf("Encode() error = %v", err)
				}
				decoded, err := codec.Decode(ctx, encoded)
				if err != nil {
					t.Fatalf("Decode() error = %v", err)
				}
				if !bytes.Equal(decoded, input) {
					t.Errorf("Decode(Encode(x)) = %q, want %q", decoded, input)
				}
			})
		}
	}
}

func TestCodecsChangeSize(t *testing.T) {
	ctx := context.Background()
	data := sampleData()

	dummy := NewDummyCodec(0)
	encoded, err := dummy.Encode(ctx, data)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(encoded) <= len(data) {
		t.Errorf("dummy Encode() length = %d, want > %d", len(encoded), len(data))
	}

	for _, name := range []string{"gzip", "zstd", "lz4"} {
		codec, err := Lookup(name, Options{})
		if err != nil {
			t.Fatalf("Lookup(%q) error = %v", name, err)
		}
		encoded, err := codec.Encode(ctx, data)
		if err != nil {
			t.Fatalf("%s Encode() error = %v", name, err)
		}
		if len(encoded) >= len(data) {
			t.Errorf("%s Encode() length = %d, want < %d for repetitive input", name, len(encoded), len(data))
		}
	}
}

func TestDummyDecodeRejectsGarbage(t *testing.T) {
	codec := NewDummyCodec(0)
	if _, err := codec.Decode(context.Background(), []byte("not base64!!")); err == nil {
		t.Error("Decode() error = nil, want base64 error")
	}
}

func TestDummyDelayHonoursContext(t *testing.T) {
	codec := NewDummyCodec(1) // 1 ms per byte
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := codec.Encode(ctx, make([]byte, 10_000))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Encode() error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Encode() took %v after the deadline", elapsed)
	}
}

func TestLookup(t *testing.T) {
	if _, err := Lookup("rot13", Options{}); err == nil || !strings.Contains(err.Error(), "unknown transform") {
		t.Errorf("Lookup(rot13) error = %v, want unknown transform", err)
	}
	if _, err := Lookup("dummy", Options{DelayDivisor: -1}); err == nil {
		t.Error("Lookup() with negative divisor error = nil, want error")
	}

	codec, err := Lookup("dummy", Options{DelayDivisor: DefaultDelayDivisor})
	if err != nil {
		t.Fatalf("Lookup(dummy) error = %v", err)
	}
	if codec.Name != "dummy" {
		t.Errorf("codec.Name = %q, want dummy", codec.Name)
	}

	want := []string{"dummy", "gzip", "lz4", "none", "zstd"}
	got := Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}
