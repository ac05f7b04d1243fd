package zddlsm

import (
	"github.com/rs/zerolog"

	"github.com/emer4ldherald/zddlsm/internal/compressor"
)

// config collects the knobs every Option mutates. It is never exposed
// directly; Storage and ShardedStorage each copy the fields they care
// about out of it at construction time.
//
// Grounded on the Option/WithX idiom used by the ZDD reference material
// retrieved alongside this design (WithParallel, WithTimeout style
// constructors) rather than positional booleans or a config struct the
// caller builds by hand.
type config struct {
	compression      compressor.Compression
	logger           *zerolog.Logger
	shardCount       int
	rebuildThreshold float64
	totalVars        uint32
}

func defaultConfig() config {
	noop := zerolog.Nop()
	return config{
		compression:      compressor.Identity,
		logger:           &noop,
		shardCount:       defaultShardCount,
		rebuildThreshold: defaultRebuildThreshold,
	}
}

// Option configures a Storage or ShardedStorage at construction time.
type Option func(*config)

// WithCompression selects the key-compressor variant (C2). The default is
// Identity.
func WithCompression(c compressor.Compression) Option {
	return func(cfg *config) { cfg.compression = c }
}

// WithLogger wires a structured logger into Storage/ShardedStorage
// diagnostics (C0). Passing nil is equivalent to not calling this option;
// the default is a disabled logger so consumers pay nothing unless they
// opt in.
func WithLogger(l *zerolog.Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithShardCount sets the number of shards for NewShardedStorage. It has
// no effect on a plain Storage. The default is 1000.
func WithShardCount(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.shardCount = n
		}
	}
}

// WithRebuildThreshold sets the fraction of a shard's expected size that
// its deletion count must exceed before the shard is rebuilt. It has no
// effect on a plain Storage. The default is 0.5.
func WithRebuildThreshold(f float64) Option {
	return func(cfg *config) {
		if f > 0 {
			cfg.rebuildThreshold = f
		}
	}
}

// WithTotalVars overrides the variable universe declared to the embedded
// BDD façade. This is an advanced knob: the value must stay at or above
// the computed requirement (T + K_bits + A per Storage, multiplied by the
// shard count for ShardedStorage) or construction panics. Most callers
// never need it; it exists for processes that create many Storages over
// time and want to reserve headroom up front.
func WithTotalVars(v uint32) Option {
	return func(cfg *config) { cfg.totalVars = v }
}
