package fstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dShop/lib/store"
	storetesting "github.com/ValentinKolb/dShop/lib/store/testing"
)

func TestFileStore(t *testing.T) {
	storetesting.RunStoreTests(t, "FileStore", func(t *testing.T) store.IStore {
		s, err := NewFileStore(t.TempDir())
		if err != nil {
			t.Fatalf("Failed to open file store: %v", err)
		}
		return s
	})
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s1, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("Failed to open file store: %v", err)
	}
	if err := s1.Set("session_id", []byte("session_1_abc")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	_ = s1.Close()

	s2, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("Failed to reopen file store: %v", err)
	}
	val, ok, err := s2.Get("session_id")
	if err != nil || !ok || string(val) != "session_1_abc" {
		t.Errorf("Expected persisted value, got (%s, %v, %v)", val, ok, err)
	}
}

func TestFileStoreKeysStayInDirectory(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("Failed to open file store: %v", err)
	}

	for _, key := range []string{"../escape", "..", "a/b/c", "/abs"} {
		if err := s.Set(key, []byte("x")); err != nil {
			t.Errorf("Set(%q) failed: %v", key, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 4 {
		t.Errorf("Expected 4 files in data dir, got %d", len(entries))
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "escape")); err == nil {
		t.Errorf("Expected no file outside the data directory")
	}
}

func TestFileStoreUnwritableDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := NewFileStore(filepath.Join(file, "sub"))
	var storeErr *store.Error
	if err == nil {
		t.Fatalf("Expected error for a data dir below a regular file")
	}
	if !errors.As(err, &storeErr) || storeErr.Code != store.RetCUnavailable {
		t.Errorf("Expected RetCUnavailable, got %v", err)
	}
}
