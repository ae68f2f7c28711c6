package storage

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBlockNotFound is returned when no block exists at the requested key.
var ErrBlockNotFound = errors.New("block not found")

// BlockType tags a block as holding file data or stripe parity.
type BlockType string

const (
	// BlockData marks a block holding file bytes.
	BlockData BlockType = "data"
	// BlockParity marks a block holding the XOR of its stripe's data blocks.
	BlockParity BlockType = "parity"
)

// ParseBlockType validates a wire-level block type token.
func ParseBlockType(s string) (BlockType, error) {
	switch BlockType(s) {
	case BlockData, BlockParity:
		return BlockType(s), nil
	}
	return "", fmt.Errorf("storage: unknown block type %q", s)
}

// BlockKey addresses one block on one disk. The disk's slot within the array
// is implicit: a disk only stores blocks for its own slot.
type BlockKey struct {
	Array  string // Array the block belongs to
	File   string // File within the array's namespace
	Stripe int    // Stripe index, sequential from 0
}

func (k BlockKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Array, k.File, k.Stripe)
}

// Block is one stored unit: a type tag plus exactly one striping unit of
// payload bytes.
type Block struct {
	Type    BlockType
	Payload []byte
}

// StoreStats summarizes a store's contents.
type StoreStats struct {
	Blocks int // Number of stored blocks
	Bytes  int // Total payload bytes
}

// Store is the persistence contract a disk process exposes to its command
// executor. All implementations must be safe for concurrent access.
type Store interface {
	// Put persists a block at key, overwriting any prior block there.
	Put(key BlockKey, b Block) error

	// Get retrieves the block at key.
	// Returns ErrBlockNotFound if no block exists there.
	Get(key BlockKey) (Block, error)

	// Delete removes the block at key. No error if the key doesn't exist.
	Delete(key BlockKey) error

	// DeleteArray removes every block belonging to the named array and
	// returns how many blocks were removed. Used by decommission.
	DeleteArray(array string) (int, error)

	// List returns the keys of all stored blocks. Order is not guaranteed.
	List() []BlockKey

	// Stats returns storage statistics.
	Stats() StoreStats
}

// MemoryStore implements Store with an in-memory map guarded by a RWMutex.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[BlockKey]Block
}

// NewMemoryStore creates an empty in-memory block store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[BlockKey]Block)}
}

// Put persists a block, copying the payload so later caller writes cannot
// mutate stored state.
func (m *MemoryStore) Put(key BlockKey, b Block) error {
	stored := Block{Type: b.Type, Payload: make([]byte, len(b.Payload))}
	copy(stored.Payload, b.Payload)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = stored
	return nil
}

// Get retrieves a block, returning a copy of the payload.
func (m *MemoryStore) Get(key BlockKey) (Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.data[key]
	if !ok {
		return Block{}, ErrBlockNotFound
	}
	out := Block{Type: b.Type, Payload: make([]byte, len(b.Payload))}
	copy(out.Payload, b.Payload)
	return out, nil
}

// Delete removes a block. Idempotent.
func (m *MemoryStore) Delete(key BlockKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// DeleteArray removes every block of the named array.
func (m *MemoryStore) DeleteArray(array string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for key := range m.data {
		if key.Array == array {
			delete(m.data, key)
			n++
		}
	}
	return n, nil
}

// List returns all stored keys.
func (m *MemoryStore) List() []BlockKey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]BlockKey, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	return keys
}

// Stats returns block and byte counts.
func (m *MemoryStore) Stats() StoreStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, b := range m.data {
		total += len(b.Payload)
	}
	return StoreStats{Blocks: len(m.data), Bytes: total}
}
