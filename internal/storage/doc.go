// Package storage implements the block store a disk process uses to persist
// the blocks it is responsible for.
//
// A block is addressed by (array, file, stripe index); the slot dimension is
// implicit because every disk only ever stores its own slot of a stripe.
// Each block carries a type tag (data or parity) and an opaque payload of
// exactly one striping unit.
//
// Two implementations are provided behind the Store interface:
//
//   - MemoryStore: RWMutex-guarded map, used in tests and throwaway disks.
//   - FileStore: one file per block under a root directory, the default for
//     a real disk process. The on-disk layout is private to this package;
//     peers only ever see the put/get/delete contract.
//
// All implementations are safe for concurrent use.
package storage
