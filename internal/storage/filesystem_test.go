package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStorePutRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	key, err := store.Put(context.Background(), []byte("video-bytes"), "videos/job-1.mp4")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if key != "videos/job-1.mp4" {
		t.Fatalf("key = %q", key)
	}

	path, err := store.Path(key)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "video-bytes" {
		t.Fatalf("data = %q", data)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	base := t.TempDir()
	store, err := NewFileStore(base)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	for _, key := range []string{"../escape.mp4", "..", ""} {
		if _, err := store.Write(context.Background(), key, []byte("x")); err == nil {
			t.Fatalf("Write(%q) accepted a traversal key", key)
		}
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(base), "escape.mp4")); !os.IsNotExist(err) {
		t.Fatal("file escaped the storage root")
	}
}

func TestFileStoreCleansLeadingSlash(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	key, err := store.Put(context.Background(), []byte("x"), "/videos/a.mp4")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if key != "videos/a.mp4" {
		t.Fatalf("key = %q", key)
	}
}

func TestFileStoreRequiresBasePath(t *testing.T) {
	if _, err := NewFileStore("  "); err == nil {
		t.Fatal("empty base path accepted")
	}
}
