package rstore

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/ValentinKolb/dShop/lib/store"
	storetesting "github.com/ValentinKolb/dShop/lib/store/testing"
)

// redisAddr returns the address of a test redis server or skips the test.
func redisAddr(t *testing.T) string {
	addr := os.Getenv("DSHOP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DSHOP_TEST_REDIS_ADDR not set")
	}
	return addr
}

func TestRedisStore(t *testing.T) {
	addr := redisAddr(t)
	n := 0
	storetesting.RunStoreTests(t, "RedisStore", func(t *testing.T) store.IStore {
		n++
		s, err := NewRedisStore(Options{
			Addr:   addr,
			Prefix: fmt.Sprintf("dshop-test-%d-%d:", time.Now().UnixNano(), n),
		})
		if err != nil {
			t.Fatalf("Failed to connect to redis: %v", err)
		}
		return s
	})
}

func TestRedisStoreUnreachable(t *testing.T) {
	_, err := NewRedisStore(Options{Addr: "127.0.0.1:1", Timeout: 200 * time.Millisecond})
	var storeErr *store.Error
	if !errors.As(err, &storeErr) || storeErr.Code != store.RetCUnavailable {
		t.Errorf("Expected RetCUnavailable for an unreachable server, got %v", err)
	}
}

func TestRedisStoreEmptyAddr(t *testing.T) {
	_, err := NewRedisStore(Options{})
	var storeErr *store.Error
	if !errors.As(err, &storeErr) || storeErr.Code != store.RetCInvalidOperation {
		t.Errorf("Expected RetCInvalidOperation for an empty address, got %v", err)
	}
}
