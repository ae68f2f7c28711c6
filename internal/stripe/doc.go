// Package stripe implements the striping and parity engine: it turns a byte
// stream into rotating-parity stripes spread over an array's disks, reverses
// that on read, and rebuilds any one lost slot from the surviving ones.
//
// # Placement
//
// An array has n disks and a striping unit U. A stripe covers up to (n-1)*U
// file bytes split into n-1 data blocks of exactly U bytes (zero-padded),
// plus one parity block holding their byte-wise XOR. For stripe s the parity
// block lives at slot
//
//	ParitySlot(s, n) = (n - 1 - (s mod n)) mod n
//
// so parity rotates backward one slot per stripe and every slot carries
// parity exactly once in any n consecutive stripes. Data block i lands at
// slot i when i < ParitySlot, else at slot i+1.
//
// Because XOR is self-inverse, the XOR of any n-1 blocks of a stripe equals
// the missing one, whether it held data or parity. Both the verified read
// path and disk recovery rely on that identity.
//
// # Transfer model
//
// The Engine issues all n transfers of one stripe concurrently and joins
// them before moving on; stripes are strictly sequential relative to each
// other. Any failed transfer fails the whole operation; already-written
// blocks are not rolled back, which is safe because a file only becomes
// visible once the driver reports copy completion to the coordinator.
package stripe
