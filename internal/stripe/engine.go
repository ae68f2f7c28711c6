package stripe

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/dreamware/strata/internal/storage"
)

// maxStripeAttempts bounds verified-read retries for one stripe.
const maxStripeAttempts = 3

// Peer moves single blocks to and from one disk of the array. The engine
// holds one peer per slot, in array disk-order.
type Peer interface {
	// StoreBlock persists a block on the peer, overwriting any prior block
	// at the key.
	StoreBlock(ctx context.Context, key storage.BlockKey, b storage.Block) error

	// ReadBlock retrieves a block from the peer.
	ReadBlock(ctx context.Context, key storage.BlockKey) (storage.Block, error)
}

// ReadOptions selects between the plain read path and the verified one.
type ReadOptions struct {
	// Verify reads all n blocks of each stripe (parity included),
	// recomputes parity, and retries the stripe on mismatch.
	Verify bool

	// Corrupt, when non-nil, flips one pseudo-random bit in one block after
	// each stripe fetch, simulating read corruption for the verifier to
	// catch. Only consulted when Verify is set.
	Corrupt *rand.Rand
}

// Engine stripes files across one array. Peers[i] serves slot i; len(Peers)
// is the array's n.
type Engine struct {
	Unit  int    // Striping unit in bytes
	Peers []Peer // One per slot, array disk-order
}

// NewEngine builds an engine for an array with the given striping unit and
// slot peers.
func NewEngine(unit int, peers []Peer) *Engine {
	return &Engine{Unit: unit, Peers: peers}
}

func (e *Engine) n() int { return len(e.Peers) }

// transfer is one block movement within a stripe's fan-out.
type transfer struct {
	slot  int
	block storage.Block
}

// fanOut runs fn for every listed transfer concurrently and returns the
// first error, joined. One stripe's transfers all complete or the stripe
// fails as a whole.
func (e *Engine) fanOut(ctx context.Context, key storage.BlockKey, xfers []transfer,
	fn func(ctx context.Context, peer Peer, key storage.BlockKey, t *transfer) error) error {

	var wg sync.WaitGroup
	errs := make([]error, len(xfers))
	for i := range xfers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = fn(ctx, e.Peers[xfers[i].slot], key, &xfers[i])
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("stripe %d slot %d: %w", key.Stripe, xfers[i].slot, err)
		}
	}
	return nil
}

// Write stripes data across the array as (array, file). Stripes are written
// strictly one after another; within a stripe all n transfers run
// concurrently. Any failed transfer aborts the copy. Already-written blocks
// stay behind; the file is not visible until the caller reports completion
// to the coordinator.
func (e *Engine) Write(ctx context.Context, array, file string, data []byte) error {
	n, unit := e.n(), e.Unit
	per := DataPerStripe(n, unit)
	count := StripeCount(int64(len(data)), n, unit)

	for s := 0; s < count; s++ {
		start := s * per
		end := min(start+per, len(data))
		blocks := splitStripe(data[start:end], n, unit)
		p := ParitySlot(s, n)

		xfers := make([]transfer, 0, n)
		for i, b := range blocks {
			xfers = append(xfers, transfer{
				slot:  DataSlot(i, p),
				block: storage.Block{Type: storage.BlockData, Payload: b},
			})
		}
		xfers = append(xfers, transfer{
			slot:  p,
			block: storage.Block{Type: storage.BlockParity, Payload: XOR(blocks...)},
		})

		key := storage.BlockKey{Array: array, File: file, Stripe: s}
		err := e.fanOut(ctx, key, xfers, func(ctx context.Context, peer Peer, key storage.BlockKey, t *transfer) error {
			return peer.StoreBlock(ctx, key, t.block)
		})
		if err != nil {
			return fmt.Errorf("write %s/%s: %w", array, file, err)
		}
	}
	return nil
}

// splitStripe splits up to (n-1)*unit bytes into n-1 blocks of exactly unit
// bytes, zero-padding the final short block and supplying all-zero blocks
// past the end of the data.
func splitStripe(data []byte, n, unit int) [][]byte {
	blocks := make([][]byte, 0, n-1)
	for i := 0; i < n-1; i++ {
		start := i * unit
		if start >= len(data) {
			blocks = append(blocks, make([]byte, unit))
			continue
		}
		end := min(start+unit, len(data))
		blocks = append(blocks, Pad(data[start:end], unit))
	}
	return blocks
}

// Read reassembles (array, file) of the given size from the array.
//
// The plain path fetches each stripe's n-1 data blocks in slot order and
// concatenates them; any missing block fails the read. With opts.Verify the
// engine instead fetches all n blocks concurrently, checks the parity
// invariant, and retries a mismatching stripe up to three attempts before
// giving up. Output is trimmed to size.
func (e *Engine) Read(ctx context.Context, array, file string, size int64, opts ReadOptions) ([]byte, error) {
	n, unit := e.n(), e.Unit
	count := StripeCount(size, n, unit)

	out := make([]byte, 0, count*DataPerStripe(n, unit))
	for s := 0; s < count; s++ {
		key := storage.BlockKey{Array: array, File: file, Stripe: s}
		var (
			data []byte
			err  error
		)
		if opts.Verify {
			data, err = e.readStripeVerified(ctx, key, opts)
		} else {
			data, err = e.readStripe(ctx, key)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s/%s: %w", array, file, err)
		}
		out = append(out, data...)
	}
	if int64(len(out)) < size {
		return nil, fmt.Errorf("read %s/%s: short data: %d < %d", array, file, len(out), size)
	}
	return out[:size], nil
}

// readStripe fetches the n-1 data-slot blocks of one stripe in slot order.
func (e *Engine) readStripe(ctx context.Context, key storage.BlockKey) ([]byte, error) {
	n := e.n()
	p := ParitySlot(key.Stripe, n)

	data := make([]byte, 0, DataPerStripe(n, e.Unit))
	for i := 0; i < n-1; i++ {
		b, err := e.Peers[DataSlot(i, p)].ReadBlock(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("stripe %d slot %d: %w", key.Stripe, DataSlot(i, p), err)
		}
		data = append(data, b.Payload...)
	}
	return data, nil
}

// readStripeVerified fetches all n blocks of one stripe concurrently,
// optionally injects corruption, and checks that the data blocks XOR to the
// stored parity. A mismatch retries the whole stripe.
func (e *Engine) readStripeVerified(ctx context.Context, key storage.BlockKey, opts ReadOptions) ([]byte, error) {
	n := e.n()
	p := ParitySlot(key.Stripe, n)

	for attempt := 1; attempt <= maxStripeAttempts; attempt++ {
		xfers := make([]transfer, n)
		for slot := 0; slot < n; slot++ {
			xfers[slot] = transfer{slot: slot}
		}
		err := e.fanOut(ctx, key, xfers, func(ctx context.Context, peer Peer, key storage.BlockKey, t *transfer) error {
			b, err := peer.ReadBlock(ctx, key)
			if err != nil {
				return err
			}
			t.block = b
			return nil
		})
		if err != nil {
			return nil, err
		}

		blocks := make([][]byte, n)
		for _, t := range xfers {
			blocks[t.slot] = t.block.Payload
		}
		if opts.Corrupt != nil {
			flipRandomBit(opts.Corrupt, blocks)
		}

		dataBlocks := make([][]byte, 0, n-1)
		for i := 0; i < n-1; i++ {
			dataBlocks = append(dataBlocks, blocks[DataSlot(i, p)])
		}
		if bytes.Equal(XOR(dataBlocks...), blocks[p]) {
			data := make([]byte, 0, DataPerStripe(n, e.Unit))
			for _, b := range dataBlocks {
				data = append(data, b...)
			}
			return data, nil
		}
		// Corruption only simulates a transient fault once; retries see
		// clean blocks again.
		opts.Corrupt = nil
	}
	return nil, fmt.Errorf("stripe %d: parity mismatch after %d attempts", key.Stripe, maxStripeAttempts)
}

// flipRandomBit flips one pseudo-random bit in one of the blocks.
func flipRandomBit(rng *rand.Rand, blocks [][]byte) {
	b := blocks[rng.Intn(len(blocks))]
	if len(b) == 0 {
		return
	}
	bit := rng.Intn(len(b) * 8)
	b[bit/8] ^= 1 << (bit % 8)
}

// Rebuild reconstructs every block of (array, file) that lived on failed
// slot and writes it back there. For each stripe the surviving n-1 blocks
// are fetched concurrently and XORed together; by the parity invariant that
// XOR is the missing block whether it held data or parity.
func (e *Engine) Rebuild(ctx context.Context, array, file string, size int64, failed int) error {
	n, unit := e.n(), e.Unit
	count := StripeCount(size, n, unit)

	for s := 0; s < count; s++ {
		key := storage.BlockKey{Array: array, File: file, Stripe: s}

		xfers := make([]transfer, 0, n-1)
		for slot := 0; slot < n; slot++ {
			if slot != failed {
				xfers = append(xfers, transfer{slot: slot})
			}
		}
		err := e.fanOut(ctx, key, xfers, func(ctx context.Context, peer Peer, key storage.BlockKey, t *transfer) error {
			b, err := peer.ReadBlock(ctx, key)
			if err != nil {
				return err
			}
			t.block = b
			return nil
		})
		if err != nil {
			return fmt.Errorf("rebuild %s/%s: %w", array, file, err)
		}

		survivors := make([][]byte, 0, n-1)
		for _, t := range xfers {
			survivors = append(survivors, t.block.Payload)
		}
		rebuilt := storage.Block{Type: storage.BlockData, Payload: XOR(survivors...)}
		if failed == ParitySlot(s, n) {
			rebuilt.Type = storage.BlockParity
		}
		if err := e.Peers[failed].StoreBlock(ctx, key, rebuilt); err != nil {
			return fmt.Errorf("rebuild %s/%s stripe %d: %w", array, file, s, err)
		}
	}
	return nil
}
