package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/flaneur2020/chunkcrypt/chunkcrypt"
	"github.com/flaneur2020/chunkcrypt/chunkcrypt/logger"
	"github.com/flaneur2020/chunkcrypt/chunkcrypt/transform"
)

// Config holds the settings shared by every command.
//
// Example file:
//
//	chunk_size: 10MiB
//	concurrency: 8
//	transform: dummy
//	delay_divisor: 222
//	log_level: info
type Config struct {
	ChunkSize    string `yaml:"chunk_size"`
	Concurrency  int    `yaml:"concurrency"`
	Transform    string `yaml:"transform"`
	DelayDivisor int    `yaml:"delay_divisor"`
	LogLevel     string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ChunkSize:    humanize.IBytes(uint64(chunkcrypt.DefaultChunkSize)),
		Concurrency:  runtime.GOMAXPROCS(0),
		Transform:    "dummy",
		DelayDivisor: transform.DefaultDelayDivisor,
		LogLevel:     "error",
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	logger.Debug("Loaded config from %s: %+v", path, *cfg)
	return cfg, nil
}

// Validate checks every field without building anything.
func (c *Config) Validate() error {
	if _, err := c.ChunkSizeBytes(); err != nil {
		return err
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	if _, err := c.Codec(); err != nil {
		return err
	}
	if _, err := logger.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ChunkSizeBytes parses ChunkSize ("10MiB", "512KB", "1048576").
func (c *Config) ChunkSizeBytes() (int64, error) {
	size, err := humanize.ParseBytes(c.ChunkSize)
	if err != nil {
		return 0, fmt.Errorf("invalid chunk size %q: %w", c.ChunkSize, err)
	}
	if size == 0 || size > 1<<31-1 {
		return 0, fmt.Errorf("chunk size %q out of range", c.ChunkSize)
	}
	return int64(size), nil
}

// Codec returns the configured transform codec.
func (c *Config) Codec() (*transform.Codec, error) {
	return transform.Lookup(c.Transform, transform.Options{DelayDivisor: c.DelayDivisor})
}

// EngineOptions builds options for chunkcrypt.NewChunkedFileService.
func (c *Config) EngineOptions() (*chunkcrypt.Options, error) {
	chunkSize, err := c.ChunkSizeBytes()
	if err != nil {
		return nil, err
	}

	opts := chunkcrypt.DefaultOptions()
	opts.Layout.ChunkSize = chunkSize
	if c.Concurrency > 0 {
		opts.Concurrency = c.Concurrency
	}
	return opts, nil
}
