package lstore

import (
	"testing"

	"github.com/ValentinKolb/dShop/lib/store"
	storetesting "github.com/ValentinKolb/dShop/lib/store/testing"
)

func TestLocalStore(t *testing.T) {
	storetesting.RunStoreTests(t, "LocalStore", func(t *testing.T) store.IStore {
		return NewLocalStore()
	})
}
