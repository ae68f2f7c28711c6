package stripe

import (
	"context"

	"github.com/dreamware/strata/internal/storage"
)

// StorePeer adapts a local storage.Store to the Peer interface, letting the
// engine run against in-process stores. A nil-able Fail switch mimics a disk
// that rejects every command.
type StorePeer struct {
	Store storage.Store
	Fail  func() error // When non-nil and returning non-nil, rejects calls
}

// StoreBlock persists a block in the backing store.
func (p *StorePeer) StoreBlock(_ context.Context, key storage.BlockKey, b storage.Block) error {
	if p.Fail != nil {
		if err := p.Fail(); err != nil {
			return err
		}
	}
	return p.Store.Put(key, b)
}

// ReadBlock retrieves a block from the backing store.
func (p *StorePeer) ReadBlock(_ context.Context, key storage.BlockKey) (storage.Block, error) {
	if p.Fail != nil {
		if err := p.Fail(); err != nil {
			return storage.Block{}, err
		}
	}
	return p.Store.Get(key)
}
