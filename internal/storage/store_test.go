package storage

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
)

// storeFactories lets every contract test run against both implementations.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"file": func() Store {
			fs, err := NewFileStore(t.TempDir())
			if err != nil {
				t.Fatalf("NewFileStore: %v", err)
			}
			return fs
		},
	}
}

func TestStoreContract(t *testing.T) {
	key := BlockKey{Array: "A", File: "f", Stripe: 0}

	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("new store is empty", func(t *testing.T) {
				store := newStore()

				if keys := store.List(); len(keys) != 0 {
					t.Errorf("Expected empty store, got %d keys", len(keys))
				}
				if _, err := store.Get(key); err != ErrBlockNotFound {
					t.Errorf("Expected ErrBlockNotFound, got %v", err)
				}
			})

			t.Run("put and get blocks", func(t *testing.T) {
				store := newStore()

				want := Block{Type: BlockData, Payload: []byte("value1")}
				if err := store.Put(key, want); err != nil {
					t.Fatalf("Failed to put block: %v", err)
				}

				got, err := store.Get(key)
				if err != nil {
					t.Fatalf("Failed to get block: %v", err)
				}
				if got.Type != BlockData {
					t.Errorf("Expected data type, got %s", got.Type)
				}
				if !bytes.Equal(got.Payload, want.Payload) {
					t.Errorf("Expected %q, got %q", want.Payload, got.Payload)
				}
			})

			t.Run("overwrite existing key", func(t *testing.T) {
				store := newStore()

				if err := store.Put(key, Block{Type: BlockData, Payload: []byte("v1")}); err != nil {
					t.Fatalf("Failed to put initial block: %v", err)
				}
				if err := store.Put(key, Block{Type: BlockParity, Payload: []byte("v2")}); err != nil {
					t.Fatalf("Failed to overwrite block: %v", err)
				}

				got, err := store.Get(key)
				if err != nil {
					t.Fatalf("Failed to get block: %v", err)
				}
				if got.Type != BlockParity || !bytes.Equal(got.Payload, []byte("v2")) {
					t.Errorf("Overwrite not visible: %s %q", got.Type, got.Payload)
				}
			})

			t.Run("delete is idempotent", func(t *testing.T) {
				store := newStore()

				if err := store.Put(key, Block{Type: BlockData, Payload: []byte("v")}); err != nil {
					t.Fatalf("Failed to put block: %v", err)
				}
				if err := store.Delete(key); err != nil {
					t.Fatalf("Failed to delete block: %v", err)
				}
				if _, err := store.Get(key); err != ErrBlockNotFound {
					t.Errorf("Expected ErrBlockNotFound after delete, got %v", err)
				}
				if err := store.Delete(key); err != nil {
					t.Errorf("Delete of non-existent key should not error, got %v", err)
				}
			})

			t.Run("delete array removes only that array", func(t *testing.T) {
				store := newStore()

				for s := 0; s < 3; s++ {
					for _, array := range []string{"A", "B"} {
						k := BlockKey{Array: array, File: "f", Stripe: s}
						if err := store.Put(k, Block{Type: BlockData, Payload: []byte{byte(s)}}); err != nil {
							t.Fatalf("Failed to put %v: %v", k, err)
						}
					}
				}

				n, err := store.DeleteArray("A")
				if err != nil {
					t.Fatalf("DeleteArray failed: %v", err)
				}
				if n != 3 {
					t.Errorf("Expected 3 deleted blocks, got %d", n)
				}
				for s := 0; s < 3; s++ {
					if _, err := store.Get(BlockKey{Array: "A", File: "f", Stripe: s}); err != ErrBlockNotFound {
						t.Errorf("Array A stripe %d survived deletion", s)
					}
					if _, err := store.Get(BlockKey{Array: "B", File: "f", Stripe: s}); err != nil {
						t.Errorf("Array B stripe %d lost: %v", s, err)
					}
				}
			})

			t.Run("delete unknown array is a no-op", func(t *testing.T) {
				store := newStore()
				n, err := store.DeleteArray("nope")
				if err != nil || n != 0 {
					t.Errorf("DeleteArray(nope) = %d, %v", n, err)
				}
			})

			t.Run("list and stats", func(t *testing.T) {
				store := newStore()

				for s := 0; s < 4; s++ {
					k := BlockKey{Array: "A", File: "f", Stripe: s}
					if err := store.Put(k, Block{Type: BlockData, Payload: make([]byte, 128)}); err != nil {
						t.Fatalf("Failed to put %v: %v", k, err)
					}
				}

				keys := store.List()
				if len(keys) != 4 {
					t.Errorf("Expected 4 keys, got %d", len(keys))
				}
				seen := make(map[BlockKey]bool)
				for _, k := range keys {
					seen[k] = true
				}
				for s := 0; s < 4; s++ {
					if !seen[(BlockKey{Array: "A", File: "f", Stripe: s})] {
						t.Errorf("Stripe %d missing from List", s)
					}
				}

				stats := store.Stats()
				if stats.Blocks != 4 || stats.Bytes != 4*128 {
					t.Errorf("Stats = %+v, want 4 blocks / %d bytes", stats, 4*128)
				}
			})

			t.Run("concurrent access", func(t *testing.T) {
				store := newStore()

				var wg sync.WaitGroup
				for i := 0; i < 8; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						for s := 0; s < 20; s++ {
							k := BlockKey{Array: "A", File: fmt.Sprintf("f%d", i), Stripe: s}
							if err := store.Put(k, Block{Type: BlockData, Payload: []byte{byte(i)}}); err != nil {
								t.Errorf("Put %v: %v", k, err)
								return
							}
							if _, err := store.Get(k); err != nil {
								t.Errorf("Get %v: %v", k, err)
								return
							}
						}
					}(i)
				}
				wg.Wait()

				if stats := store.Stats(); stats.Blocks != 8*20 {
					t.Errorf("Expected %d blocks, got %d", 8*20, stats.Blocks)
				}
			})
		})
	}
}

// TestMemoryStoreCopies verifies the store never aliases caller memory.
func TestMemoryStoreCopies(t *testing.T) {
	store := NewMemoryStore()
	key := BlockKey{Array: "A", File: "f", Stripe: 0}

	payload := []byte("abc")
	if err := store.Put(key, Block{Type: BlockData, Payload: payload}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	payload[0] = 'X'

	got, err := store.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got.Payload, []byte("abc")) {
		t.Errorf("Put aliased caller memory: %q", got.Payload)
	}

	got.Payload[0] = 'Y'
	again, _ := store.Get(key)
	if !bytes.Equal(again.Payload, []byte("abc")) {
		t.Errorf("Get aliased stored memory: %q", again.Payload)
	}
}

// TestFileStorePersistence verifies blocks survive a store reopen.
func TestFileStorePersistence(t *testing.T) {
	dir := t.TempDir()
	key := BlockKey{Array: "A", File: "f", Stripe: 7}

	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := fs.Put(key, Block{Type: BlockParity, Payload: []byte("persist me")}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore reopen: %v", err)
	}
	got, err := reopened.Get(key)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Type != BlockParity || !bytes.Equal(got.Payload, []byte("persist me")) {
		t.Errorf("Reopened block = %s %q", got.Type, got.Payload)
	}

	keys := reopened.List()
	if len(keys) != 1 || keys[0] != key {
		t.Errorf("Reopened List = %v", keys)
	}
}
