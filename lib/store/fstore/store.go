package fstore

import (
	"encoding/base64"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

const fileSuffix = ".val"

type storeImpl struct {
	dir    string
	mu     sync.RWMutex // serializes writers against readers of the same directory
	closed bool
}

// NewFileStore creates a store persisting into dir, creating it if needed.
func NewFileStore(dir string) (store.IStore, error) {
	if dir == "" {
		return nil, store.NewError(store.RetCInvalidOperation, "empty data directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, store.WrapError(store.RetCUnavailable, "cannot create data directory", err)
	}
	Logger.Debugf("file store opened at %s", dir)
	return &storeImpl{dir: dir}, nil
}

// path returns the file backing key
func (s *storeImpl) path(key string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(key))+fileSuffix)
}

func (s *storeImpl) check(key string) error {
	if s.closed {
		return store.NewError(store.RetCInvalidOperation, "store is closed")
	}
	if key == "" {
		return store.NewError(store.RetCInvalidOperation, "empty key")
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(key); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return store.WrapError(store.RetCUnavailable, "cannot create temp file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return store.WrapError(store.RetCUnavailable, "cannot write value", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return store.WrapError(store.RetCUnavailable, "cannot write value", err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return store.WrapError(store.RetCUnavailable, "cannot commit value", err)
	}
	return nil
}

func (s *storeImpl) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(key); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return store.WrapError(store.RetCUnavailable, "cannot delete value", err)
	}
	return nil
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(key); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, store.WrapError(store.RetCUnavailable, "cannot read value", err)
	}
	return data, true, nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(key); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, store.WrapError(store.RetCUnavailable, "cannot stat value", err)
	}
	return true, nil
}

func (s *storeImpl) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
