package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	return map[string]Store{
		"fs":  fsStore,
		"mem": NewMemStore(),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			locator, err := s.Store(ctx, []byte("image-bytes"), ".png")
			if err != nil {
				t.Fatalf("store: %v", err)
			}
			if !strings.HasSuffix(locator, ".png") {
				t.Errorf("locator missing extension: %s", locator)
			}

			rc, err := s.Open(ctx, locator)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			data, _ := io.ReadAll(rc)
			rc.Close()
			if string(data) != "image-bytes" {
				t.Errorf("unexpected content: %q", data)
			}

			if err := s.Delete(ctx, locator); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := s.Open(ctx, locator); !errors.Is(err, ErrBlobNotFound) {
				t.Errorf("expected ErrBlobNotFound after delete, got %v", err)
			}
		})
	}
}

func TestStoreUniqueLocators(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, _ := s.Store(ctx, []byte("same"), "")
			b, _ := s.Store(ctx, []byte("same"), "")
			if a == b {
				t.Error("identical inputs must still produce distinct locators")
			}
		})
	}
}

func TestStoreEmpty(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Store(context.Background(), nil, ""); !errors.Is(err, ErrEmptyBlob) {
				t.Errorf("expected ErrEmptyBlob, got %v", err)
			}
		})
	}
}

func TestDeleteMissing(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Delete(context.Background(), "nope.png"); !errors.Is(err, ErrBlobNotFound) {
				t.Errorf("expected ErrBlobNotFound, got %v", err)
			}
		})
	}
}
