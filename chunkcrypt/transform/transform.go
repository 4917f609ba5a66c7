package transform

import (
	"fmt"
	"sort"

	"github.com/flaneur2020/chunkcrypt/chunkcrypt"
)

// Codec is a named pair of inverse transforms:
// Decode(Encode(b)) == b for every chunk b.
type Codec struct {
	Name   string
	Encode chunkcrypt.Transform
	Decode chunkcrypt.Transform
}

// Options tune codec construction.
type Options struct {
	// DelayDivisor controls the simulated cost of the dummy codec: each
	// call sleeps len(chunk)/DelayDivisor milliseconds. Zero disables it.
	DelayDivisor int
}

// DefaultDelayDivisor makes a 554 MiB file take roughly 45 minutes to
// encode serially.
const DefaultDelayDivisor = 222

var registry = map[string]func(Options) (*Codec, error){
	"none":  func(Options) (*Codec, error) { return NewIdentityCodec(), nil },
	"dummy": func(opts Options) (*Codec, error) { return NewDummyCodec(opts.DelayDivisor), nil },
	"gzip":  func(Options) (*Codec, error) { return NewGzipCodec(), nil },
	"zstd":  func(Options) (*Codec, error) { return NewZstdCodec() },
	"lz4":   func(Options) (*Codec, error) { return NewLZ4Codec(), nil },
}

// Lookup returns the codec registered under name.
func Lookup(name string, opts Options) (*Codec, error) {
	newCodec, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown transform %q (available: %v)", name, Names())
	}
	if opts.DelayDivisor < 0 {
		return nil, fmt.Errorf("delay divisor must not be negative, got %d", opts.DelayDivisor)
	}
	return newCodec(opts)
}

// Names returns the registered codec names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewIdentityCodec returns a codec that leaves chunks unchanged.
func NewIdentityCodec() *Codec {
	return &Codec{
		Name:   "none",
		Encode: chunkcrypt.Identity,
		Decode: chunkcrypt.Identity,
	}
}
