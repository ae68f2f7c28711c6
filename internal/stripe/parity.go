package stripe

// ParitySlot returns the slot holding stripe s's parity block in an array of
// n disks. Parity rotates backward one slot per stripe: over any n
// consecutive stripes every slot serves as parity exactly once.
func ParitySlot(s, n int) int {
	return (n - 1 - (s % n)) % n
}

// DataSlot returns the slot for data block i of a stripe whose parity lives
// at slot p: data fills the remaining slots in order, skipping p.
func DataSlot(i, p int) int {
	if i < p {
		return i
	}
	return i + 1
}

// DataPerStripe returns how many file bytes one stripe covers.
func DataPerStripe(n, unit int) int {
	return (n - 1) * unit
}

// StripeCount returns how many stripes a file of size bytes needs.
// A zero-size file needs none.
func StripeCount(size int64, n, unit int) int {
	per := int64(DataPerStripe(n, unit))
	return int((size + per - 1) / per)
}

// Pad returns b extended with zero bytes to exactly unit length.
// Input longer than unit is truncated.
func Pad(b []byte, unit int) []byte {
	if len(b) == unit {
		return b
	}
	out := make([]byte, unit)
	copy(out, b)
	return out
}

// XOR returns the byte-wise XOR of the given equal-length blocks.
// With no blocks it returns an empty block.
func XOR(blocks ...[]byte) []byte {
	if len(blocks) == 0 {
		return []byte{}
	}
	out := make([]byte, len(blocks[0]))
	copy(out, blocks[0])
	for _, b := range blocks[1:] {
		for i := range out {
			out[i] ^= b[i]
		}
	}
	return out
}
