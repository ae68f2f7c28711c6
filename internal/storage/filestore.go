package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// FileStore implements Store with one file per block under a root directory:
//
//	<root>/<array>/<file>/<stripe>.blk
//
// Block file layout: 1-byte type tag ('d' or 'p'), 4-byte big-endian payload
// length, payload bytes. Writes go through a temp file and rename so a crash
// never leaves a half-written block at a live key.
type FileStore struct {
	mu   sync.RWMutex
	root string
}

const blockExt = ".blk"

// NewFileStore creates (if needed) the root directory and returns a store
// over it. Existing blocks under root are served as-is.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root %s: %w", root, err)
	}
	return &FileStore{root: root}, nil
}

func (f *FileStore) path(key BlockKey) string {
	return filepath.Join(f.root, key.Array, key.File, strconv.Itoa(key.Stripe)+blockExt)
}

func typeTag(t BlockType) byte {
	if t == BlockParity {
		return 'p'
	}
	return 'd'
}

// Put persists a block, overwriting any prior block at the key.
func (f *FileStore) Put(key BlockKey, b Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage: put %s: %w", key, err)
	}

	buf := make([]byte, 5+len(b.Payload))
	buf[0] = typeTag(b.Type)
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(b.Payload)))
	copy(buf[5:], b.Payload)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("storage: put %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("storage: put %s: %w", key, err)
	}
	return nil
}

// Get retrieves the block at key.
func (f *FileStore) Get(key BlockKey) (Block, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	buf, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return Block{}, ErrBlockNotFound
		}
		return Block{}, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return decodeBlock(key, buf)
}

func decodeBlock(key BlockKey, buf []byte) (Block, error) {
	if len(buf) < 5 {
		return Block{}, fmt.Errorf("storage: get %s: %w", key, io.ErrUnexpectedEOF)
	}
	size := int(binary.BigEndian.Uint32(buf[1:5]))
	if len(buf) != 5+size {
		return Block{}, fmt.Errorf("storage: get %s: truncated block", key)
	}
	t := BlockData
	if buf[0] == 'p' {
		t = BlockParity
	}
	return Block{Type: t, Payload: buf[5:]}, nil
}

// Delete removes the block at key. Idempotent.
func (f *FileStore) Delete(key BlockKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// DeleteArray removes every block of the named array.
func (f *FileStore) DeleteArray(array string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Join(f.root, array)
	n := 0
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, blockExt) {
			n++
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("storage: delete array %s: %w", array, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return 0, fmt.Errorf("storage: delete array %s: %w", array, err)
	}
	return n, nil
}

// List returns the keys of all stored blocks by walking the root directory.
func (f *FileStore) List() []BlockKey {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var keys []BlockKey
	_ = filepath.Walk(f.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !strings.HasSuffix(path, blockExt) {
			return nil
		}
		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return nil
		}
		parts := strings.Split(rel, string(filepath.Separator))
		if len(parts) != 3 {
			return nil
		}
		stripe, err := strconv.Atoi(strings.TrimSuffix(parts[2], blockExt))
		if err != nil {
			return nil
		}
		keys = append(keys, BlockKey{Array: parts[0], File: parts[1], Stripe: stripe})
		return nil
	})
	return keys
}

// Stats returns block and payload byte counts.
func (f *FileStore) Stats() StoreStats {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var stats StoreStats
	_ = filepath.Walk(f.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !strings.HasSuffix(path, blockExt) {
			return nil
		}
		stats.Blocks++
		if sz := int(info.Size()) - 5; sz > 0 {
			stats.Bytes += sz
		}
		return nil
	})
	return stats
}
