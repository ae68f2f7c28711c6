// Package disknode implements a disk process: the command server that owns
// one block store and executes the block and control commands the user
// driver sends it.
//
// A node starts Active and flips to Failed on the fail command. While
// Failed it answers every command except restore with the hard failure
// token FAIL, legitimate recovery writes included, so the driver must
// explicitly restore the node before writing reconstructed blocks back.
//
// Each accepted connection is served by its own goroutine; a per-node
// exclusive lock serializes command execution against local state so
// concurrent peers cannot interleave store, read, and fail inconsistently.
package disknode
