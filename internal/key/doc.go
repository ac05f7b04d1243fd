// Package key implements the canonical byte view over (column-family id ∥
// compressed user key) that the storage layer bit-encodes into the ZDD, plus
// the pure bit/variable arithmetic used to navigate it. It has no knowledge
// of tokens, levels or the ZDD itself — those live in the storage package,
// which is the only importer.
package key
