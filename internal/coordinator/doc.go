// Package coordinator implements the cluster directory and its command
// server: the single authority for disk membership, array configurations,
// file visibility, and ownership.
//
// # State machine
//
// Disks register in state Free, flip to InArray when selected into an
// array's disk order, and return to Free only when that array is
// decommissioned. Array configurations are immutable once created. A file
// entry appears in an array's directory only when the driver reports
// copy-complete, never at copy initiation, so a partially written file is
// invisible to listings and reads.
//
// # Concurrency
//
// Every directory operation, reads included, runs under one process-wide
// mutex. That serializes all mutations, making membership and ownership
// changes linearizable across concurrent client connections, and gives ls a
// consistent snapshot per call.
//
// # Protocol shape
//
// Operations that move blocks (copy, read, disk-failure, decommission) are
// two-phase: the initiating command validates and returns the array topology
// without mutating the file directory; the driver then talks to the disks
// directly and reports completion, which is the only point where directory
// state changes.
package coordinator
