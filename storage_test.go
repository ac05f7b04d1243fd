package zddlsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emer4ldherald/zddlsm/internal/compressor"
)

// testUniverse is shared by every test in this package that constructs a
// Storage or ShardedStorage. bdd.Init is a process-wide singleton (the
// first caller wins, see internal/bdd's Init doc comment), so every test
// must declare the same universe size up front or a later, larger request
// would panic depending on test run order.
const testUniverse = 4_000_000

func TestNewStorageStartsEmpty(t *testing.T) {
	s := NewStorage(16, WithTotalVars(testUniverse))

	assert.True(t, s.IsEmpty())
	_, ok := s.GetLevel([]byte("anything"))
	assert.False(t, ok)
}

func TestSetGetLevelRoundTrip(t *testing.T) {
	s := NewStorage(16, WithTotalVars(testUniverse))

	s.Set([]byte("alpha"), 1)
	s.Set([]byte("beta"), 2)
	s.Set([]byte("gamma"), 3)

	lvl, ok := s.GetLevel([]byte("alpha"))
	require.True(t, ok)
	assert.Equal(t, uint32(1), lvl)

	lvl, ok = s.GetLevel([]byte("beta"))
	require.True(t, ok)
	assert.Equal(t, uint32(2), lvl)

	_, ok = s.GetLevel([]byte("delta"))
	assert.False(t, ok)

	assert.False(t, s.IsEmpty())
}

func TestSetOverwritesExistingKeyWithoutGrowing(t *testing.T) {
	s := NewStorage(16, WithTotalVars(testUniverse))

	s.Set([]byte("k"), 1)
	before := s.size

	s.Set([]byte("k"), 9)
	after := s.size

	assert.Equal(t, before, after)
	lvl, ok := s.GetLevel([]byte("k"))
	require.True(t, ok)
	assert.Equal(t, uint32(9), lvl)
}

func TestSetCFDisjointFromOtherColumnFamilies(t *testing.T) {
	s := NewStorage(16, WithTotalVars(testUniverse))

	s.Set([]byte("shared"), 1)        // cf 0
	s.SetCF(7, []byte("shared"), 42)  // cf 7

	lvl0, ok := s.GetLevel([]byte("shared"))
	require.True(t, ok)
	assert.Equal(t, uint32(1), lvl0)

	lvl7, ok := s.GetLevelCF(7, []byte("shared"))
	require.True(t, ok)
	assert.Equal(t, uint32(42), lvl7)

	_, ok = s.GetLevelCF(3, []byte("shared"))
	assert.False(t, ok)
}

func TestDeleteRemovesKey(t *testing.T) {
	s := NewStorage(16, WithTotalVars(testUniverse))

	s.Set([]byte("gone"), 1)
	require.False(t, s.IsEmpty())

	s.Delete([]byte("gone"))

	_, ok := s.GetLevel([]byte("gone"))
	assert.False(t, ok)
	assert.True(t, s.IsEmpty())
	assert.Equal(t, uint32(1), s.deleted)
}

func TestDeleteCFOnlyAffectsItsColumnFamily(t *testing.T) {
	s := NewStorage(16, WithTotalVars(testUniverse))

	s.Set([]byte("k"), 1)
	s.SetCF(1, []byte("k"), 2)

	s.DeleteCF(1, []byte("k"))

	_, ok := s.GetLevelCF(1, []byte("k"))
	assert.False(t, ok)
	lvl, ok := s.GetLevel([]byte("k"))
	require.True(t, ok)
	assert.Equal(t, uint32(1), lvl)
}

func TestDeleteAbsentKeyIsNoop(t *testing.T) {
	s := NewStorage(16, WithTotalVars(testUniverse))

	s.Delete([]byte("never-inserted"))
	assert.True(t, s.IsEmpty())
	assert.Equal(t, uint32(0), s.deleted)
}

func TestStorageWithNonIdentityCompressor(t *testing.T) {
	s := NewStorage(32, WithTotalVars(testUniverse), WithCompression(compressor.SHA256))

	s.Set([]byte("some fairly long user key"), 5)
	lvl, ok := s.GetLevel([]byte("some fairly long user key"))
	require.True(t, ok)
	assert.Equal(t, uint32(5), lvl)

	_, ok = s.GetLevel([]byte("a different key"))
	assert.False(t, ok)
}

func TestPrintDoesNotPanic(t *testing.T) {
	s := NewStorage(8, WithTotalVars(testUniverse))
	s.Set([]byte("x"), 1)
	assert.NotPanics(t, func() { s.Print() })
}
