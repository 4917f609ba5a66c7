package storage

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// MockStorage is a simple in-memory Storage implementation for tests. It
// can delay or fail individual paths to simulate slow or broken storage.
type MockStorage struct {
	mu          sync.RWMutex
	files       map[string][]byte
	dirs        map[string]bool
	readDelays  map[string]time.Duration
	readErrors  map[string]error
	writeErrors map[string]error
	reads       []string
}

var _ Storage = (*MockStorage)(nil)

// NewMockStorage constructs an empty MockStorage. "." and "/" always exist.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:       make(map[string][]byte),
		dirs:        map[string]bool{".": true, "/": true},
		readDelays:  make(map[string]time.Duration),
		readErrors:  make(map[string]error),
		writeErrors: make(map[string]error),
	}
}

// ReadFile returns a copy of the stored bytes at path.
func (m *MockStorage) ReadFile(ctx context.Context, path string) ([]byte, error) {
	path = filepath.Clean(path)

	m.mu.RLock()
	delay := m.readDelays[path]
	m.mu.RUnlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.reads = append(m.reads, path)
	if err := m.readErrors[path]; err != nil {
		return nil, err
	}
	data, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

// Size returns the length of the stored bytes at path.
func (m *MockStorage) Size(ctx context.Context, path string) (int64, error) {
	path = filepath.Clean(path)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.readErrors[path]; err != nil {
		return 0, err
	}
	data, ok := m.files[path]
	if !ok {
		return 0, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return int64(len(data)), nil
}

// CreateFile stores data at path if nothing is there yet.
func (m *MockStorage) CreateFile(ctx context.Context, path string, data []byte) error {
	path = filepath.Clean(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkWrite(path); err != nil {
		return err
	}
	if _, ok := m.files[path]; ok || m.dirs[path] {
		return &fs.PathError{Op: "open", Path: path, Err: fs.ErrExist}
	}
	m.files[path] = append([]byte(nil), data...)
	return nil
}

// WriteFile stores data at path, replacing any previous content.
func (m *MockStorage) WriteFile(ctx context.Context, path string, data []byte) error {
	path = filepath.Clean(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkWrite(path); err != nil {
		return err
	}
	if m.dirs[path] {
		return &fs.PathError{Op: "open", Path: path, Err: fmt.Errorf("is a directory")}
	}
	m.files[path] = append([]byte(nil), data...)
	return nil
}

// Mkdir records a directory at path.
func (m *MockStorage) Mkdir(ctx context.Context, path string) error {
	path = filepath.Clean(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkWrite(path); err != nil {
		return err
	}
	if _, ok := m.files[path]; ok || m.dirs[path] {
		return &fs.PathError{Op: "mkdir", Path: path, Err: fs.ErrExist}
	}
	m.dirs[path] = true
	return nil
}

// checkWrite must be called with mu held.
func (m *MockStorage) checkWrite(path string) error {
	if err := m.writeErrors[path]; err != nil {
		return err
	}
	if !m.dirs[filepath.Dir(path)] {
		return &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return nil
}

// AddFile stores data at path, creating parent directories as needed.
func (m *MockStorage) AddFile(path string, data []byte) {
	path = filepath.Clean(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	for dir := filepath.Dir(path); !m.dirs[dir]; dir = filepath.Dir(dir) {
		m.dirs[dir] = true
	}
	m.files[path] = append([]byte(nil), data...)
}

// RemoveFile deletes the file at path, if any.
func (m *MockStorage) RemoveFile(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, filepath.Clean(path))
}

// File returns the stored bytes at path.
func (m *MockStorage) File(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[filepath.Clean(path)]
	return data, ok
}

// Files returns every stored file path in sorted order.
func (m *MockStorage) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.files))
	for path := range m.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// SetReadDelay makes ReadFile of path block for d before returning.
func (m *MockStorage) SetReadDelay(path string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readDelays[filepath.Clean(path)] = d
}

// FailRead makes ReadFile of path return err.
func (m *MockStorage) FailRead(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErrors[filepath.Clean(path)] = err
}

// FailWrite makes CreateFile, WriteFile and Mkdir of path return err.
func (m *MockStorage) FailWrite(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErrors[filepath.Clean(path)] = err
}

// Reads returns the paths passed to ReadFile in completion order.
func (m *MockStorage) Reads() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.reads...)
}
