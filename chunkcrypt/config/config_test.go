package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flaneur2020/chunkcrypt/chunkcrypt"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunkcrypt.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}

	size, err := cfg.ChunkSizeBytes()
	if err != nil {
		t.Fatalf("ChunkSizeBytes() error = %v", err)
	}
	if size != chunkcrypt.DefaultChunkSize {
		t.Errorf("ChunkSizeBytes() = %d, want %d", size, chunkcrypt.DefaultChunkSize)
	}

	codec, err := cfg.Codec()
	if err != nil {
		t.Fatalf("Codec() error = %v", err)
	}
	if codec.Name != "dummy" {
		t.Errorf("Codec().Name = %q, want dummy", codec.Name)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantErr   string
		wantSize  int64
		wantCodec string
		wantConc  int
	}{
		{
			name:      "full file",
			content:   "chunk_size: 512KiB\nconcurrency: 3\ntransform: zstd\ndelay_divisor: 0\nlog_level: debug\n",
			wantSize:  512 * 1024,
			wantCodec: "zstd",
			wantConc:  3,
		},
		{
			name:      "partial file keeps defaults",
			content:   "transform: gzip\n",
			wantSize:  chunkcrypt.DefaultChunkSize,
			wantCodec: "gzip",
		},
		{
			name:      "empty file",
			content:   "",
			wantSize:  chunkcrypt.DefaultChunkSize,
			wantCodec: "dummy",
		},
		{
			name:    "unknown key",
			content: "chunk_sise: 1MiB\n",
			wantErr: "chunk_sise",
		},
		{
			name:    "bad size",
			content: "chunk_size: lots\n",
			wantErr: "invalid chunk size",
		},
		{
			name:    "zero size",
			content: "chunk_size: 0\n",
			wantErr: "out of range",
		},
		{
			name:    "unknown transform",
			content: "transform: aes\n",
			wantErr: "unknown transform",
		},
		{
			name:    "negative concurrency",
			content: "concurrency: -1\n",
			wantErr: "concurrency",
		},
		{
			name:    "bad log level",
			content: "log_level: loud\n",
			wantErr: "log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.content))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Load() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			opts, err := cfg.EngineOptions()
			if err != nil {
				t.Fatalf("EngineOptions() error = %v", err)
			}
			if opts.Layout.ChunkSize != tt.wantSize {
				t.Errorf("Layout.ChunkSize = %d, want %d", opts.Layout.ChunkSize, tt.wantSize)
			}
			if tt.wantConc != 0 && opts.Concurrency != tt.wantConc {
				t.Errorf("Concurrency = %d, want %d", opts.Concurrency, tt.wantConc)
			}

			codec, err := cfg.Codec()
			if err != nil {
				t.Fatalf("Codec() error = %v", err)
			}
			if codec.Name != tt.wantCodec {
				t.Errorf("Codec().Name = %q, want %q", codec.Name, tt.wantCodec)
			}
		})
	}
}

func TestLoad_NoPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if *cfg != *Default() {
		t.Errorf("Load(\"\") = %+v, want defaults", *cfg)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() error = nil, want read error")
	}
}
