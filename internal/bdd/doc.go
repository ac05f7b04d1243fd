// Package bdd implements the embedded Zero-suppressed Binary Decision Diagram
// (ZDD) runtime that backs the key→level index. It plays the role the design
// calls an "external collaborator": a process-wide, variable-indexed set
// algebra with structural sharing, reference-counted handles, and a
// coarse-grained GC. No importable Go ZDD/BDD module covers this contract, so
// the engine lives here instead of being vendored.
//
// The public surface is intentionally small: a singleton Facade created by
// Init, and an opaque, reference-counted Set value returned by every
// operation. Internals (the node table, the unique-table dedup, the
// reachability sweep used by GC) are not part of any outer contract and may
// change shape freely.
package bdd
