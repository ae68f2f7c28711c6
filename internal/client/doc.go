// Package client implements the user driver: the side of the protocol that
// asks the coordinator for array topology, moves blocks directly to and from
// the disks through the striping engine, and reports completion back to the
// coordinator.
//
// Every multi-block operation follows the same two-phase shape: an
// initiating coordinator command that validates and returns topology,
// direct disk traffic, then a completion report. Only the completion report
// changes directory state, so an aborted operation leaves no visible trace
// (already-written blocks on disks notwithstanding).
package client
