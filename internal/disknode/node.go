package disknode

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/dreamware/strata/internal/storage"
	"github.com/dreamware/strata/internal/wire"
)

// OpStats counts executed commands.
type OpStats struct {
	Stores   uint64 // store-block commands persisted
	Reads    uint64 // read-block commands answered
	Rejected uint64 // commands rejected while Failed
}

// Node is one disk's runtime state: its name, its block store, and the
// failed flag. The mutex serializes command execution.
type Node struct {
	Name  string
	store storage.Store

	mu     sync.Mutex
	failed bool
	stats  OpStats
}

// NewNode creates an Active node over the given store.
func NewNode(name string, store storage.Store) *Node {
	return &Node{Name: name, store: store}
}

// Failed reports whether the node has been failed.
func (n *Node) Failed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.failed
}

// Stats returns a snapshot of the node's operation counters.
func (n *Node) Stats() OpStats {
	return OpStats{
		Stores:   atomic.LoadUint64(&n.stats.Stores),
		Reads:    atomic.LoadUint64(&n.stats.Reads),
		Rejected: atomic.LoadUint64(&n.stats.Rejected),
	}
}

// Store returns the node's block store.
func (n *Node) Store() storage.Store {
	return n.store
}

// result is one executed command's outcome: the response frame plus an
// optional raw payload to follow it (read-block).
type result struct {
	frame []byte
	raw   []byte
}

// Exec runs one decoded command under the node lock. payload carries the
// raw block bytes for store-block, nil otherwise.
//
// State machine: fail answers FAIL-COMPLETE and flips the failed flag;
// restore flips it back; every other command on a Failed node answers FAIL.
func (n *Node) Exec(cmd string, args []string, payload []byte) result {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.failed && cmd != wire.CmdRestore {
		atomic.AddUint64(&n.stats.Rejected, 1)
		return result{frame: []byte(wire.StatusFail)}
	}

	switch cmd {
	case wire.CmdStoreBlock:
		return n.execStore(args, payload)
	case wire.CmdReadBlock:
		return n.execRead(args)
	case wire.CmdGetStripe:
		return n.execGetStripe(args)
	case wire.CmdDeleteArray:
		if _, err := n.store.DeleteArray(args[0]); err != nil {
			return result{frame: wire.Failure()}
		}
		return result{frame: wire.OK()}
	case wire.CmdFail:
		n.failed = true
		return result{frame: []byte(wire.StatusFailComplete)}
	case wire.CmdRestore:
		n.failed = false
		return result{frame: wire.OK()}
	}
	return result{frame: wire.Failure()}
}

// blockKey parses the shared array/file/stripe argument prefix.
func blockKey(args []string) (storage.BlockKey, bool) {
	stripe, err := strconv.Atoi(args[2])
	if err != nil || stripe < 0 {
		return storage.BlockKey{}, false
	}
	return storage.BlockKey{Array: args[0], File: args[1], Stripe: stripe}, true
}

// execStore persists a block: store-block array file stripe type size, raw
// payload already read by the connection handler.
func (n *Node) execStore(args []string, payload []byte) result {
	key, ok := blockKey(args)
	if !ok {
		return result{frame: wire.Failure()}
	}
	typ, err := storage.ParseBlockType(args[3])
	if err != nil {
		return result{frame: wire.Failure()}
	}
	if err := n.store.Put(key, storage.Block{Type: typ, Payload: payload}); err != nil {
		return result{frame: wire.Failure()}
	}
	atomic.AddUint64(&n.stats.Stores, 1)
	return result{frame: wire.OK()}
}

// execRead answers SUCCESS size type followed by the raw payload, or a
// not-found failure.
func (n *Node) execRead(args []string) result {
	key, ok := blockKey(args)
	if !ok {
		return result{frame: wire.Failure()}
	}
	b, err := n.store.Get(key)
	if err != nil {
		return result{frame: wire.Failure()}
	}
	atomic.AddUint64(&n.stats.Reads, 1)
	return result{
		frame: wire.OK(strconv.Itoa(len(b.Payload)), string(b.Type)),
		raw:   b.Payload,
	}
}

// execGetStripe is the metadata-only variant used for recovery planning:
// SUCCESS type size, no payload.
func (n *Node) execGetStripe(args []string) result {
	key, ok := blockKey(args)
	if !ok {
		return result{frame: wire.Failure()}
	}
	b, err := n.store.Get(key)
	if err != nil {
		return result{frame: wire.Failure()}
	}
	return result{frame: wire.OK(string(b.Type), strconv.Itoa(len(b.Payload)))}
}
