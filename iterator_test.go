package zddlsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectKeys(t *testing.T, it *Iterator) [][]byte {
	t.Helper()
	var out [][]byte
	for it.HasNext() {
		kv, ok := it.Deref()
		require.True(t, ok)
		out = append(out, kv.Key)
		it.Next()
	}
	return out
}

func TestIteratorOverEmptyStorageHasNothing(t *testing.T) {
	s := NewStorage(2, WithTotalVars(testUniverse))
	it := NewIterator(s)
	assert.False(t, it.HasNext())
	_, ok := it.Deref()
	assert.False(t, ok)
}

func TestIteratorYieldsAscendingOrder(t *testing.T) {
	s := NewStorage(2, WithTotalVars(testUniverse))

	inserted := [][]byte{
		{0x00, 0x05},
		{0x00, 0x01},
		{0x01, 0x00},
		{0x00, 0x03},
	}
	for i, k := range inserted {
		s.Set(k, uint32(i))
	}

	got := collectKeys(t, NewIterator(s))
	want := [][]byte{
		{0x00, 0x01},
		{0x00, 0x03},
		{0x00, 0x05},
		{0x01, 0x00},
	}
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i], got[i], "position %d", i)
	}
}

func TestIteratorDerefReportsLevel(t *testing.T) {
	s := NewStorage(2, WithTotalVars(testUniverse))
	s.Set([]byte{0x00, 0x01}, 7)
	s.Set([]byte{0x00, 0x02}, 9)

	it := NewIterator(s)
	require.True(t, it.HasNext())
	kv, ok := it.Deref()
	require.True(t, ok)
	assert.Equal(t, []byte{0x00, 0x01}, kv.Key)
	assert.Equal(t, uint32(7), kv.Level)

	it.Next()
	require.True(t, it.HasNext())
	kv, ok = it.Deref()
	require.True(t, ok)
	assert.Equal(t, []byte{0x00, 0x02}, kv.Key)
	assert.Equal(t, uint32(9), kv.Level)

	it.Next()
	assert.False(t, it.HasNext())
}

func TestIteratorSeekLandsOnLowerBound(t *testing.T) {
	s := NewStorage(2, WithTotalVars(testUniverse))
	s.Set([]byte{0x00, 0x01}, 1)
	s.Set([]byte{0x00, 0x03}, 3)
	s.Set([]byte{0x00, 0x05}, 5)

	// Seeking a value between two present keys lands on the next one up.
	got := collectKeys(t, NewIterator(s, []byte{0x00, 0x02}))
	want := [][]byte{{0x00, 0x03}, {0x00, 0x05}}
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i], got[i])
	}

	// Seeking an exact present key starts there, inclusive.
	got = collectKeys(t, NewIterator(s, []byte{0x00, 0x03}))
	want = [][]byte{{0x00, 0x03}, {0x00, 0x05}}
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i], got[i])
	}
}

func TestIteratorSeekPastEveryKeyIsEmpty(t *testing.T) {
	s := NewStorage(2, WithTotalVars(testUniverse))
	s.Set([]byte{0x00, 0x01}, 1)
	s.Set([]byte{0x00, 0x03}, 3)

	it := NewIterator(s, []byte{0xFF, 0xFF})
	assert.False(t, it.HasNext())
}

func TestIteratorCFScopedOnlySeesItsColumnFamily(t *testing.T) {
	s := NewStorage(2, WithTotalVars(testUniverse))

	s.Set([]byte{0x00, 0x01}, 100)       // cf 0
	s.SetCF(5, []byte{0x00, 0x02}, 200)  // cf 5
	s.SetCF(5, []byte{0x00, 0x04}, 201)  // cf 5
	s.SetCF(9, []byte{0x00, 0x03}, 300)  // cf 9

	got := collectKeys(t, NewIteratorCF(s, 5))
	want := [][]byte{{0x00, 0x02}, {0x00, 0x04}}
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i], got[i])
	}
}

func TestIteratorCFScopedSeek(t *testing.T) {
	s := NewStorage(2, WithTotalVars(testUniverse))
	s.SetCF(5, []byte{0x00, 0x01}, 1)
	s.SetCF(5, []byte{0x00, 0x03}, 3)
	s.SetCF(5, []byte{0x00, 0x05}, 5)

	got := collectKeys(t, NewIteratorCF(s, 5, []byte{0x00, 0x02}))
	want := [][]byte{{0x00, 0x03}, {0x00, 0x05}}
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i], got[i])
	}
}

func TestIteratorDeletedKeyIsSkipped(t *testing.T) {
	s := NewStorage(2, WithTotalVars(testUniverse))
	s.Set([]byte{0x00, 0x01}, 1)
	s.Set([]byte{0x00, 0x02}, 2)
	s.Delete([]byte{0x00, 0x01})

	got := collectKeys(t, NewIterator(s))
	require.Len(t, got, 1)
	assert.Equal(t, []byte{0x00, 0x02}, got[0])
}
