package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFSStorage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFSStorage()

	setDir := filepath.Join(dir, "set")
	if err := s.Mkdir(ctx, setDir); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}
	if err := s.Mkdir(ctx, setDir); !IsExist(err) {
		t.Errorf("Mkdir() on existing dir error = %v, want exist error", err)
	}

	file := filepath.Join(setDir, "chunk0")
	if err := s.CreateFile(ctx, file, []byte("hello")); err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	if err := s.CreateFile(ctx, file, []byte("again")); !IsExist(err) {
		t.Errorf("CreateFile() on existing file error = %v, want exist error", err)
	}

	got, err := s.ReadFile(ctx, file)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("ReadFile() = %q, want %q", got, "hello")
	}

	if size, err := s.Size(ctx, file); err != nil || size != 5 {
		t.Errorf("Size() = %d, %v, want 5, nil", size, err)
	}

	if err := s.WriteFile(ctx, file, []byte("bye")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err = os.ReadFile(file)
	if err != nil {
		t.Fatalf("os.ReadFile() error = %v", err)
	}
	if string(got) != "bye" {
		t.Errorf("content after WriteFile() = %q, want %q", got, "bye")
	}

	if _, err := s.ReadFile(ctx, filepath.Join(setDir, "missing")); !IsNotExist(err) {
		t.Errorf("ReadFile() on missing file error = %v, want not-exist error", err)
	}
	if err := s.CreateFile(ctx, filepath.Join(dir, "nodir", "chunk0"), nil); !IsNotExist(err) {
		t.Errorf("CreateFile() with missing parent error = %v, want not-exist error", err)
	}
}

func TestFSStorage_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewFSStorage()
	if _, err := s.ReadFile(ctx, filepath.Join(t.TempDir(), "x")); !errors.Is(err, context.Canceled) {
		t.Errorf("ReadFile() error = %v, want context.Canceled", err)
	}
}

func TestMockStorage(t *testing.T) {
	ctx := context.Background()
	m := NewMockStorage()

	if err := m.CreateFile(ctx, "/set/chunk0", []byte("x")); !IsNotExist(err) {
		t.Errorf("CreateFile() without parent error = %v, want not-exist error", err)
	}
	if err := m.Mkdir(ctx, "/set"); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}
	if err := m.Mkdir(ctx, "/set"); !IsExist(err) {
		t.Errorf("Mkdir() twice error = %v, want exist error", err)
	}
	if err := m.CreateFile(ctx, "/set/chunk0", []byte("abc")); err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	if err := m.CreateFile(ctx, "/set/chunk0", []byte("abc")); !IsExist(err) {
		t.Errorf("CreateFile() twice error = %v, want exist error", err)
	}

	got, err := m.ReadFile(ctx, "/set/chunk0")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	got[0] = 'z'
	stored, _ := m.File("/set/chunk0")
	if !bytes.Equal(stored, []byte("abc")) {
		t.Errorf("stored bytes changed through ReadFile() result: %q", stored)
	}

	if size, err := m.Size(ctx, "/set/chunk0"); err != nil || size != 3 {
		t.Errorf("Size() = %d, %v, want 3, nil", size, err)
	}
	if _, err := m.ReadFile(ctx, "/set/chunk1"); !IsNotExist(err) {
		t.Errorf("ReadFile() missing error = %v, want not-exist error", err)
	}
}

func TestMockStorage_Hooks(t *testing.T) {
	ctx := context.Background()
	m := NewMockStorage()
	m.AddFile("/a/b/file", []byte("data"))

	boom := errors.New("boom")
	m.FailRead("/a/b/file", boom)
	if _, err := m.ReadFile(ctx, "/a/b/file"); !errors.Is(err, boom) {
		t.Errorf("ReadFile() error = %v, want %v", err, boom)
	}

	m.FailWrite("/a/b/other", boom)
	if err := m.CreateFile(ctx, "/a/b/other", nil); !errors.Is(err, boom) {
		t.Errorf("CreateFile() error = %v, want %v", err, boom)
	}

	m.AddFile("/slow", []byte("s"))
	m.SetReadDelay("/slow", time.Second)
	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if _, err := m.ReadFile(cctx, "/slow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ReadFile() with delay error = %v, want deadline exceeded", err)
	}
}
