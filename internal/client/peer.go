package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dreamware/strata/internal/cluster"
	"github.com/dreamware/strata/internal/storage"
	"github.com/dreamware/strata/internal/stripe"
	"github.com/dreamware/strata/internal/wire"
)

// wirePeer moves blocks to and from one disk's command server. Each block
// operation uses its own connection, so peers are safe for the engine's
// concurrent per-stripe fan-out.
type wirePeer struct {
	addr string
}

// peersFor builds one engine peer per disk, in array disk-order.
func peersFor(disks []cluster.DiskInfo) []stripe.Peer {
	peers := make([]stripe.Peer, len(disks))
	for i, d := range disks {
		peers[i] = &wirePeer{addr: d.CmdAddr()}
	}
	return peers
}

// StoreBlock sends store-block with the raw payload and checks the ack.
func (p *wirePeer) StoreBlock(ctx context.Context, key storage.BlockKey, b storage.Block) error {
	c, err := cluster.Dial(ctx, p.addr)
	if err != nil {
		return err
	}
	defer c.Close()

	resp, err := c.CallRawOut(ctx, b.Payload, wire.CmdStoreBlock,
		key.Array, key.File, strconv.Itoa(key.Stripe), string(b.Type), strconv.Itoa(len(b.Payload)))
	if err != nil {
		return err
	}
	if !wire.IsSuccess(resp) {
		return fmt.Errorf("store-block rejected by %s: %s", p.addr, resp)
	}
	return nil
}

// ReadBlock sends read-block and reads the raw payload announced by the
// success frame.
func (p *wirePeer) ReadBlock(ctx context.Context, key storage.BlockKey) (storage.Block, error) {
	c, err := cluster.Dial(ctx, p.addr)
	if err != nil {
		return storage.Block{}, err
	}
	defer c.Close()

	resp, err := c.Call(ctx, wire.CmdReadBlock, key.Array, key.File, strconv.Itoa(key.Stripe))
	if err != nil {
		return storage.Block{}, err
	}
	if !wire.IsSuccess(resp) {
		return storage.Block{}, fmt.Errorf("read-block rejected by %s: %s", p.addr, resp)
	}
	fields := wire.Fields(resp)
	if len(fields) != 2 {
		return storage.Block{}, fmt.Errorf("read-block: malformed reply from %s: %s", p.addr, resp)
	}
	size, err := strconv.Atoi(fields[0])
	if err != nil || size < 0 {
		return storage.Block{}, fmt.Errorf("read-block: bad size from %s: %s", p.addr, resp)
	}
	typ, err := storage.ParseBlockType(fields[1])
	if err != nil {
		return storage.Block{}, fmt.Errorf("read-block: %w", err)
	}
	payload, err := c.ReadRaw(size)
	if err != nil {
		return storage.Block{}, err
	}
	return storage.Block{Type: typ, Payload: payload}, nil
}

// failDisk sends fail and expects the distinct FAIL-COMPLETE ack.
func failDisk(ctx context.Context, addr string) error {
	resp, err := cluster.Call(ctx, addr, wire.CmdFail)
	if err != nil {
		return err
	}
	if string(resp) != wire.StatusFailComplete {
		return fmt.Errorf("fail not acknowledged by %s: %s", addr, resp)
	}
	return nil
}

// restoreDisk sends restore, reactivating a failed disk so reconstructed
// blocks can be written back.
func restoreDisk(ctx context.Context, addr string) error {
	resp, err := cluster.Call(ctx, addr, wire.CmdRestore)
	if err != nil {
		return err
	}
	if !wire.IsSuccess(resp) {
		return fmt.Errorf("restore rejected by %s: %s", addr, resp)
	}
	return nil
}

// deleteArray instructs a disk to delete all of its blocks for one array.
func deleteArray(ctx context.Context, addr, array string) error {
	resp, err := cluster.Call(ctx, addr, wire.CmdDeleteArray, array)
	if err != nil {
		return err
	}
	if !wire.IsSuccess(resp) {
		return fmt.Errorf("delete-array rejected by %s: %s", addr, resp)
	}
	return nil
}
