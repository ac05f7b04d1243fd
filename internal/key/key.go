package key

import "sort"

// Internal is the canonical byte view of an internal key: the logical
// concatenation of a 4-byte big-endian column-family id and the compressed
// user key. It borrows the compressed bytes for the lifetime of a single
// storage operation; it is a value type and must not be retained past that
// call.
type Internal struct {
	cfID uint32
	data []byte
}

// New builds an Internal key from an already-compressed key and a column
// family id (0 when the caller used a cf-less overload).
func New(cfID uint32, compressed []byte) Internal {
	return Internal{cfID: cfID, data: compressed}
}

// Len returns the total byte length of the virtual concatenation
// cf_id_be ∥ compressed_bytes.
func (k Internal) Len() int { return 4 + len(k.data) }

// At returns byte i of the virtual concatenation, or 0 if i is out of
// range — callers never need to special-case the boundary between the cf
// prefix and the compressed key.
func (k Internal) At(i int) byte {
	switch {
	case i < 0 || i >= k.Len():
		return 0
	case i < 4:
		return byte(k.cfID >> uint(8*(3-i)))
	default:
		return k.data[i-4]
	}
}

// Bits returns the total number of key-bit-range variables this key
// occupies (K_bits in the design's notation).
func (k Internal) Bits() int { return 8 * k.Len() }

// BitAt reports the value of bit p (0-based, counting from the MSB of byte
// 0 down to the LSB of the last byte — i.e. from the top of the key-bit
// range to the bottom).
func (k Internal) BitAt(p int) bool {
	byteIdx := p / 8
	bitIdx := 7 - (p % 8)
	return k.At(byteIdx)&(1<<uint(bitIdx)) != 0
}

// NzVars returns the ascending list of levels base+p+1 for every bit
// position p that is set in k. When prefixLen is positive, only
// the first prefixLen bits (from the top of the key range) are considered;
// zero or negative means "the whole key".
//
// The embedded ZDD engine this package feeds never reorders variables
// dynamically (SPEC_FULL.md §9), so the levels below are already produced
// in ascending order by construction; the IntsAreSorted guard is a cheap
// defensive check rather than a load-bearing correctness step, matching the
// design's resolution of that open question.
func (k Internal) NzVars(base uint32, prefixLen int) []int {
	bits := k.Bits()
	if prefixLen <= 0 || prefixLen > bits {
		prefixLen = bits
	}
	vars := make([]int, 0, prefixLen)
	for p := 0; p < prefixLen; p++ {
		if k.BitAt(p) {
			vars = append(vars, int(base)+p+1)
		}
	}
	if !sort.IntsAreSorted(vars) {
		sort.Ints(vars)
	}
	return vars
}
