package zddlsm

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/emer4ldherald/zddlsm/internal/bdd"
	"github.com/emer4ldherald/zddlsm/internal/compressor"
)

// defaultShardCount is N when WithShardCount is not given.
const defaultShardCount = 1000

// defaultRebuildThreshold is the default fraction of a shard's observed
// traffic that must be tombstoned before a rebuild is triggered.
const defaultRebuildThreshold = 0.5

// ShardStats is a diagnostic snapshot of one shard, for Print-style
// observability rather than anything load-bearing (C6).
type ShardStats struct {
	Keys     uint32
	Deleted  uint32
	Rebuilds uint32
}

// shardSlot pairs a shard's live Storage with the small bookkeeping
// ShardedStorage needs that Storage itself doesn't track: which column
// families have ever been written to this shard (so a rebuild can walk
// each one in turn) and a rebuild counter for diagnostics.
type shardSlot struct {
	mu     sync.Mutex
	store  *Storage
	cfSeen map[uint32]struct{}
	builds uint32
}

// ShardedStorage dispatches keys across N independent Storage instances by
// hash, so no single ticket lock serializes unrelated keys (C6). Column
// family id is deliberately excluded from the hash: the same user key in
// different column families always lands on the same shard, which is what
// lets a per-shard rebuild enumerate every cf a shard holds without having
// to consult every other shard.
type ShardedStorage struct {
	facade           *bdd.Facade
	shards           []*shardSlot
	n                int
	rebuildThreshold float64
	gcVoteThreshold  uint32
	logger           *zerolog.Logger
	compression      compressor.Compression
	keyLen           uint32
}

// NewShardedStorage creates a ShardedStorage with N shards (WithShardCount,
// default 1000), each a Storage sized for keys up to keyLen bytes.
func NewShardedStorage(keyLen uint32, opts ...Option) *ShardedStorage {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	n := cfg.shardCount
	if n <= 0 {
		n = defaultShardCount
	}

	sh := &ShardedStorage{
		n:                n,
		rebuildThreshold: cfg.rebuildThreshold,
		logger:           cfg.logger,
		compression:      cfg.compression,
		keyLen:           keyLen,
		shards:           make([]*shardSlot, n),
	}
	sh.gcVoteThreshold = uint32(n / 10)
	if sh.gcVoteThreshold == 0 {
		sh.gcVoteThreshold = 1
	}

	for i := range sh.shards {
		store := NewStorage(keyLen,
			WithCompression(cfg.compression),
			WithLogger(cfg.logger),
			WithTotalVars(cfg.totalVars),
		)
		sh.shards[i] = &shardSlot{store: store, cfSeen: make(map[uint32]struct{})}
	}
	// Every shard's Storage already called bdd.Init with a real universe
	// size; this just hands back the existing process-wide handle so
	// RegisterVote below shares it.
	sh.facade = bdd.Init(0)

	return sh
}

func (sh *ShardedStorage) shardFor(key []byte) (*shardSlot, int) {
	idx := int(xxhash.Sum64(key) % uint64(sh.n))
	return sh.shards[idx], idx
}

// Set inserts or overwrites the level for key in column family 0.
func (sh *ShardedStorage) Set(key []byte, level uint32) {
	sh.SetCF(0, key, level)
}

// SetCF inserts or overwrites the level for key within column family cfID.
func (sh *ShardedStorage) SetCF(cfID uint32, key []byte, level uint32) {
	slot, _ := sh.shardFor(key)
	slot.store.SetCF(cfID, key, level)

	slot.mu.Lock()
	slot.cfSeen[cfID] = struct{}{}
	slot.mu.Unlock()
}

// Delete removes key from column family 0, if present.
func (sh *ShardedStorage) Delete(key []byte) {
	sh.DeleteCF(0, key)
}

// DeleteCF removes key from column family cfID, if present, and evaluates
// the owning shard for a rebuild.
func (sh *ShardedStorage) DeleteCF(cfID uint32, key []byte) {
	slot, idx := sh.shardFor(key)
	slot.store.DeleteCF(cfID, key)
	sh.maybeRebuild(idx)
}

// GetLevel returns the level stored for key in column family 0.
func (sh *ShardedStorage) GetLevel(key []byte) (uint32, bool) {
	return sh.GetLevelCF(0, key)
}

// GetLevelCF returns the level stored for key in column family cfID.
func (sh *ShardedStorage) GetLevelCF(cfID uint32, key []byte) (uint32, bool) {
	slot, _ := sh.shardFor(key)
	return slot.store.GetLevelCF(cfID, key)
}

// ShardStats returns a diagnostic snapshot of shard idx.
func (sh *ShardedStorage) ShardStats(idx int) ShardStats {
	slot := sh.shards[idx]
	guard := slot.store.Lock()
	keys, deleted := slot.store.size, slot.store.deleted
	guard.Release()

	slot.mu.Lock()
	builds := slot.builds
	slot.mu.Unlock()

	return ShardStats{Keys: keys, Deleted: deleted, Rebuilds: builds}
}

// maybeRebuild rebuilds shard idx if its tombstone count exceeds
// rebuildThreshold of the shard's observed traffic (size+deleted, a proxy
// for "expected shard size" since the public constructor takes no capacity
// hint to compute one from directly — see DESIGN.md).
func (sh *ShardedStorage) maybeRebuild(idx int) {
	slot := sh.shards[idx]
	guard := slot.store.Lock()
	size, deleted := slot.store.size, slot.store.deleted
	guard.Release()

	expected := size + deleted
	if expected == 0 {
		return
	}
	if float64(deleted) <= sh.rebuildThreshold*float64(expected) {
		return
	}
	sh.rebuildShard(idx)
}

// rebuildShard replaces a shard's Storage with a fresh one containing only
// its live members, reinserted column family by column family. Reinsertion
// uses Storage's unexported setCompressed path (bypassing the compressor,
// since the iterator already yields compressed bytes) into a replacement
// sized for those bytes directly via the identity compressor — the
// "no-compression" rebuild path §4.6 calls for.
func (sh *ShardedStorage) rebuildShard(idx int) {
	slot := sh.shards[idx]

	slot.mu.Lock()
	cfs := make([]uint32, 0, len(slot.cfSeen)+1)
	if len(slot.cfSeen) == 0 {
		cfs = append(cfs, 0)
	} else {
		for cf := range slot.cfSeen {
			cfs = append(cfs, cf)
		}
	}
	oldStore := slot.store
	slot.mu.Unlock()

	newStore := NewStorage(uint32(oldStore.compressedLen),
		WithCompression(compressor.Identity),
		WithLogger(sh.logger),
	)

	for _, cf := range cfs {
		it := NewIteratorCF(oldStore, cf)
		for it.HasNext() {
			kv, ok := it.Deref()
			if ok {
				newStore.setCompressed(cf, kv.Key, kv.Level)
			}
			it.Next()
		}
	}

	seen := make(map[uint32]struct{}, len(cfs))
	for _, cf := range cfs {
		seen[cf] = struct{}{}
	}

	slot.mu.Lock()
	slot.store = newStore
	slot.cfSeen = seen
	slot.builds++
	slot.mu.Unlock()

	triggered, collected := sh.facade.RegisterVote(sh.gcVoteThreshold)
	if triggered {
		sh.logger.Info().Int("collected", collected).Msg("sharded storage: facade gc triggered")
	}
}
