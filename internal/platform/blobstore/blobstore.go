// Package blobstore stores diagnostic image assets. Callers hold only the
// opaque locator, never the bytes; the filesystem store backs production and
// the in-memory store backs tests.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrEmptyBlob    = errors.New("blob is empty")
	ErrBlobTooLarge = errors.New("blob exceeds maximum allowed size")
)

// MaxBlobSize is the maximum allowed image size in bytes (20 MB).
const MaxBlobSize = 20 * 1024 * 1024

// Store is the blob storage contract consumed by the diagnostic workflow.
type Store interface {
	// Store persists data and returns an opaque locator. ext is the file
	// extension hint (".png"), may be empty.
	Store(ctx context.Context, data []byte, ext string) (string, error)
	// Open returns a reader over the stored asset.
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
	// Delete removes the asset, returning ErrBlobNotFound if absent.
	Delete(ctx context.Context, locator string) error
}

func validate(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyBlob
	}
	if len(data) > MaxBlobSize {
		return ErrBlobTooLarge
	}
	return nil
}

// locatorName builds a uuid-based file name so concurrent stores never
// collide and locators reveal nothing about the content.
func locatorName(ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return uuid.New().String() + ext
}

// FSStore keeps blobs as files under a single flat directory.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory %s: %w", dir, err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) Store(_ context.Context, data []byte, ext string) (string, error) {
	if err := validate(data); err != nil {
		return "", err
	}
	name := locatorName(ext)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write blob %s: %w", name, err)
	}
	return name, nil
}

func (s *FSStore) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, filepath.Base(locator)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("open blob %s: %w", locator, err)
	}
	return f, nil
}

func (s *FSStore) Delete(_ context.Context, locator string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(locator)))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrBlobNotFound
	}
	return err
}

// MemStore is a thread-safe, in-memory Store for testing and development.
type MemStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

func (s *MemStore) Store(_ context.Context, data []byte, ext string) (string, error) {
	if err := validate(data); err != nil {
		return "", err
	}
	name := locatorName(ext)
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	s.blobs[name] = cp
	s.mu.Unlock()
	return name, nil
}

func (s *MemStore) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.blobs[locator]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemStore) Delete(_ context.Context, locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[locator]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, locator)
	return nil
}

// Len reports the number of stored blobs. Test helper.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
