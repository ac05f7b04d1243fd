package key

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAtCoversCFPrefixAndBody(t *testing.T) {
	k := New(0x01020304, []byte{0xAA, 0xBB})

	assert.Equal(t, byte(0x01), k.At(0))
	assert.Equal(t, byte(0x02), k.At(1))
	assert.Equal(t, byte(0x03), k.At(2))
	assert.Equal(t, byte(0x04), k.At(3))
	assert.Equal(t, byte(0xAA), k.At(4))
	assert.Equal(t, byte(0xBB), k.At(5))
	assert.Equal(t, byte(0), k.At(6))
	assert.Equal(t, byte(0), k.At(-1))
	assert.Equal(t, 6, k.Len())
	assert.Equal(t, 48, k.Bits())
}

func TestBitAtMSBFirst(t *testing.T) {
	k := New(0, []byte{0b1000_0001})
	// cf prefix is all zero bits (32 bits), then byte 0b10000001.
	assert.True(t, k.BitAt(32))
	for p := 33; p < 39; p++ {
		assert.False(t, k.BitAt(p), "bit %d should be 0", p)
	}
	assert.True(t, k.BitAt(39))
}

func TestNzVarsAscendingAndPrefixed(t *testing.T) {
	k := New(0, []byte{0b1010_0000})
	full := k.NzVars(32, 0)
	// cf prefix contributes no bits (cf id 0); absolute bit positions 32
	// and 34 are set, giving variables base+p+1.
	assert.Equal(t, []int{65, 67}, full)

	prefixed := k.NzVars(32, 34)
	assert.Equal(t, []int{65}, prefixed)
}

func TestNzVarsWithNonZeroCF(t *testing.T) {
	k := New(1, []byte{0x00})
	vars := k.NzVars(32, 0)
	// cf id 1 sets only the last bit of the 4-byte prefix (absolute
	// position 31).
	assert.Equal(t, []int{64}, vars)
}
