package testing

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/dShop/lib/store"
)

// StoreFactory creates a fresh, empty store for one sub-test
type StoreFactory func(t *testing.T) store.IStore

// RunStoreTests runs the shared test suite for a store.IStore implementation.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory(t))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(t))
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory(t))
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory(t))
		})

		t.Run("Concurrent", func(t *testing.T) {
			testConcurrent(t, factory(t))
		})

		t.Run("Close", func(t *testing.T) {
			testClose(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, s store.IStore) {
	defer s.Close()

	testKey := "app_data_snapshot"
	testValue1 := []byte(`{"products":[]}`)
	testValue2 := []byte(`{"products":[{"id":1}]}`)

	if err := s.Set(testKey, testValue1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, exists, err := s.Get(testKey)
	if err != nil || !exists {
		t.Errorf("Expected key %s to exist after Set, got exists=%v err=%v", testKey, exists, err)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	if err := s.Set(testKey, testValue2); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	result, _, _ = s.Get(testKey)
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	if _, exists, err := s.Get("nonexistent-key"); exists || err != nil {
		t.Errorf("Expected nonexistent key to return exists=false err=nil, got %v %v", exists, err)
	}

	// the returned slice must not alias the stored value
	result[0] = 'X'
	again, _, _ := s.Get(testKey)
	if !bytes.Equal(again, testValue2) {
		t.Errorf("Expected stored value to be unaffected by caller mutation, got %s", again)
	}
}

func testDelete(t *testing.T, s store.IStore) {
	defer s.Close()

	_ = s.Set("session_id", []byte("session_1"))
	if err := s.Delete("session_id"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, exists, _ := s.Get("session_id"); exists {
		t.Errorf("Expected key to be gone after Delete")
	}
	if err := s.Delete("session_id"); err != nil {
		t.Errorf("Expected deleting a missing key to succeed, got %v", err)
	}
}

func testHas(t *testing.T, s store.IStore) {
	defer s.Close()

	if ok, err := s.Has("recent_products"); ok || err != nil {
		t.Errorf("Expected Has=false for a missing key, got %v %v", ok, err)
	}
	_ = s.Set("recent_products", []byte("[]"))
	if ok, err := s.Has("recent_products"); !ok || err != nil {
		t.Errorf("Expected Has=true after Set, got %v %v", ok, err)
	}
}

func testEdgeCases(t *testing.T, s store.IStore) {
	defer s.Close()

	var storeErr *store.Error
	if err := s.Set("", []byte("x")); !errors.As(err, &storeErr) || storeErr.Code != store.RetCInvalidOperation {
		t.Errorf("Expected RetCInvalidOperation for an empty key, got %v", err)
	}

	if err := s.Set("empty-value", []byte{}); err != nil {
		t.Fatalf("Set with empty value failed: %v", err)
	}
	val, ok, err := s.Get("empty-value")
	if err != nil || !ok || len(val) != 0 {
		t.Errorf("Expected empty value to round trip, got (%v, %v, %v)", val, ok, err)
	}

	key := "key:with/odd chars?&=.."
	if err := s.Set(key, []byte("odd")); err != nil {
		t.Fatalf("Set with odd key failed: %v", err)
	}
	if val, ok, _ := s.Get(key); !ok || string(val) != "odd" {
		t.Errorf("Expected odd key to round trip, got (%s, %v)", val, ok)
	}
}

func testConcurrent(t *testing.T, s store.IStore) {
	defer s.Close()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				key := fmt.Sprintf("k-%d-%d", w, i)
				if err := s.Set(key, []byte(key)); err != nil {
					t.Errorf("Set failed: %v", err)
					return
				}
				if val, ok, err := s.Get(key); err != nil || !ok || string(val) != key {
					t.Errorf("Expected %s, got (%s, %v, %v)", key, val, ok, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()
}

func testClose(t *testing.T, s store.IStore) {
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Set("k", []byte("v")); err == nil {
		t.Errorf("Expected Set on a closed store to fail")
	}
}
