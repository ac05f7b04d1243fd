// Package compressor reduces a user key to a fixed-length byte image before
// it is bit-encoded into the ZDD. It is a closed, enumerable set of
// variants rather than an interface scattered across N implementation
// files: dispatch on key compression is cold (once per Storage operation,
// never on the ZDD hot path) and the variant set is small and unlikely to
// grow, so a tagged sum type is the better fit here than a polymorphic
// interface.
package compressor
