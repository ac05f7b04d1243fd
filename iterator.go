package zddlsm

import (
	"github.com/emer4ldherald/zddlsm/internal/bdd"
	"github.com/emer4ldherald/zddlsm/internal/key"
)

// Iterator walks a Storage's keys in ascending lexicographic order of the
// internal key image (cf prefix followed by compressed key bytes), per
// §4.5. It holds an explicit stack of branch points rather than recursing,
// so it can resume across calls without re-walking the diagram from the
// root each time.
//
// An Iterator is a read-only view. The caller must not mutate the Storage
// between construction and the Iterator's last use; doing so is undefined
// behavior, not a panic — the same contract the façade places on concurrent
// access before the ticket lock layer was added (see REDESIGN FLAGS).
type Iterator struct {
	s      *Storage
	frames []iterFrame
	cur    bdd.Set
	curOK  bool
	end    bool
}

// iterFrame records one branch decision taken while descending the
// key-bit range: other is the retained, not-yet-explored sibling subtree
// (owned), bitPos is the key-bit position the branch occurred at, and
// tookLo records which child was taken so a later backtrack knows whether
// other is still a legal (larger) alternative.
type iterFrame struct {
	other  bdd.Set
	bitPos int
	tookLo bool
}

// NewIterator creates an Iterator over every column family in s, in
// internal-key order (cf prefix first), optionally positioned at the
// smallest present key greater than or equal to seek[0] taken as a key of
// column family 0. With no seek argument it starts at the smallest present
// key. Use NewIteratorCF to restrict the walk to one column family.
func NewIterator(s *Storage, seek ...[]byte) *Iterator {
	return newIterator(s, 0, firstOrNil(seek), false)
}

// NewIteratorCF creates an Iterator scoped to column family cfID, with the
// same optional seek semantics as NewIterator.
func NewIteratorCF(s *Storage, cfID uint32, seek ...[]byte) *Iterator {
	return newIterator(s, cfID, firstOrNil(seek), true)
}

func firstOrNil(seek [][]byte) []byte {
	if len(seek) > 0 {
		return seek[0]
	}
	return nil
}

func newIterator(s *Storage, cfID uint32, seekUserKey []byte, cfScoped bool) *Iterator {
	guard := s.Lock()
	defer guard.Release()

	it := &Iterator{s: s}
	root := s.root.Acquire()
	var frames []iterFrame
	var cur bdd.Set

	if cfScoped {
		cfBits := cfBitsOf(cfID)
		cur = s.exactDescend(root, cfBits, 0, cfPrefixBits)
		if cur.IsFalse() {
			it.end = true
			return it
		}
		if seekUserKey != nil {
			suffix := key.New(cfID, s.compression.Compress(seekUserKey))
			bits := extractBits(suffix, suffix.Bits())
			cur = s.seekDescend(cur, bits, cfPrefixBits, len(bits), &frames)
			for cur.IsFalse() && len(frames) > 0 {
				cur, frames = s.backtrack(frames)
			}
		} else {
			cur = s.descendLeftmost(cur, &frames)
		}
	} else if seekUserKey != nil {
		ik := key.New(0, s.compression.Compress(seekUserKey))
		bits := extractBits(ik, ik.Bits())
		cur = s.seekDescend(root, bits, 0, len(bits), &frames)
		for cur.IsFalse() && len(frames) > 0 {
			cur, frames = s.backtrack(frames)
		}
	} else {
		cur = s.descendLeftmost(root, &frames)
	}

	if cur.IsFalse() {
		it.end = true
		return it
	}
	it.frames = frames
	it.cur = cur
	it.curOK = true
	return it
}

// HasNext reports whether a current position is available to Deref.
func (it *Iterator) HasNext() bool {
	return !it.end && it.curOK
}

// Next advances the iterator to the following key in ascending order, if
// any. Calling Next once HasNext is false is a no-op.
func (it *Iterator) Next() {
	if !it.HasNext() {
		return
	}
	guard := it.s.Lock()
	defer guard.Release()

	it.cur.Release()
	it.curOK = false

	cur, frames := it.s.backtrack(it.frames)
	if cur.IsFalse() {
		it.end = true
		it.frames = nil
		return
	}
	it.frames = frames
	it.cur = cur
	it.curOK = true
}

// Deref returns the (key, level) pair at the iterator's current position.
// Key is the full key-bit-range bit vector with the 4-byte cf prefix
// stripped — under a non-identity compressor this is the compressed image,
// not the original user key; see the compressor's doc comment.
func (it *Iterator) Deref() (KV, bool) {
	if !it.HasNext() {
		return KV{}, false
	}
	guard := it.s.Lock()
	defer guard.Release()

	token, ok := it.s.decodeTokenAt(it.cur)
	if !ok {
		return KV{}, false
	}
	level, ok := it.s.data[token]
	if !ok {
		return KV{}, false
	}

	bits := make([]bool, it.s.keyBitsLen())
	for _, f := range it.frames {
		if f.bitPos >= 0 && f.bitPos < len(bits) {
			bits[f.bitPos] = !f.tookLo
		}
	}
	full := bitsToBytes(bits)
	return KV{Key: full[4:], Level: level}, true
}

// exactDescend walks bits[offset:offset+length] with no fallback: any
// divergence from the target bits (or the underlying diagram lacking a
// variable for one of them) means the prefix is entirely absent, and the
// call returns FALSE. No frames are recorded, since a cf prefix is never
// part of a dereferenced key and callers discard it.
func (s *Storage) exactDescend(cur bdd.Set, bits []bool, offset, length int) bdd.Set {
	end := offset + length
	p := offset
	for p < end {
		if cur.IsTerminal() {
			return s.requireZeroTail(cur, bits, p, end)
		}
		top, _ := cur.Top()
		if uint32(top) <= s.lastTokenVar() {
			return s.requireZeroTail(cur, bits, p, end)
		}
		bp := s.bitPosOf(top)
		if bp >= end {
			return s.requireZeroTail(cur, bits, p, end)
		}
		if bp > p {
			if anySet(bits, p, bp) {
				cur.Release()
				return s.facade.False()
			}
		}
		lo, hi, _ := cur.Children()
		var next bdd.Set
		if bits[bp] {
			lo.Release()
			next = hi
		} else {
			hi.Release()
			next = lo
		}
		cur.Release()
		cur = next
		p = bp + 1
	}
	return cur
}

// requireZeroTail returns cur unchanged if no bit in [from, to) of bits is
// set, else releases cur and returns FALSE — used when the diagram runs out
// of key-bit nodes (reaches the token range, or a terminal) before all of
// a scope's bits have been consumed; every unconsumed bit is implicitly 0.
func (s *Storage) requireZeroTail(cur bdd.Set, bits []bool, from, to int) bdd.Set {
	if anySet(bits, from, to) {
		cur.Release()
		return s.facade.False()
	}
	return cur
}

func anySet(bits []bool, from, to int) bool {
	for i := from; i < to; i++ {
		if bits[i] {
			return true
		}
	}
	return false
}

// descendLeftmost repeatedly takes the 0-branch (preferring absent bits,
// i.e. smaller keys), falling back to the 1-branch whenever the 0-branch is
// FALSE, until it reaches the token range or exhausts every branch. It
// consumes cur and returns the new owned position (FALSE if nothing live
// remains below cur).
func (s *Storage) descendLeftmost(cur bdd.Set, frames *[]iterFrame) bdd.Set {
	for {
		if cur.IsTerminal() {
			return cur
		}
		top, _ := cur.Top()
		if uint32(top) <= s.lastTokenVar() {
			return cur
		}
		bp := s.bitPosOf(top)
		lo, hi, _ := cur.Children()
		if !lo.IsFalse() {
			*frames = append(*frames, iterFrame{other: hi, bitPos: bp, tookLo: true})
			cur.Release()
			cur = lo
			continue
		}
		lo.Release()
		if hi.IsFalse() {
			hi.Release()
			cur.Release()
			return s.facade.False()
		}
		*frames = append(*frames, iterFrame{other: s.facade.False(), bitPos: bp, tookLo: false})
		cur.Release()
		cur = hi
	}
}

// seekDescend walks toward the smallest key whose bits are >= bits[:length]
// lexicographically, preferring an exact match at each bit (0 -> lo, 1 ->
// hi) but retaining the untaken sibling as a frame so backtrack can relax
// to a larger key if the exact path dead-ends. If forced to diverge upward
// (take hi where the target wanted lo, because lo was FALSE) the remaining
// suffix is unconstrained and descendLeftmost takes over, since any
// completion from there already satisfies ">= target".
func (s *Storage) seekDescend(cur bdd.Set, bits []bool, offset, length int, frames *[]iterFrame) bdd.Set {
	p := offset
	for p < length {
		if cur.IsTerminal() {
			return s.requireZeroTail(cur, bits, p, length)
		}
		top, _ := cur.Top()
		lvl := uint32(top)
		if lvl <= s.lastTokenVar() {
			return s.requireZeroTail(cur, bits, p, length)
		}
		bp := s.bitPosOf(top)
		if bp >= length {
			return s.requireZeroTail(cur, bits, p, length)
		}
		if bp > p && anySet(bits, p, bp) {
			cur.Release()
			return s.facade.False()
		}

		lo, hi, _ := cur.Children()
		if bits[bp] {
			lo.Release()
			if hi.IsFalse() {
				hi.Release()
				cur.Release()
				return s.facade.False()
			}
			*frames = append(*frames, iterFrame{other: s.facade.False(), bitPos: bp, tookLo: false})
			cur.Release()
			cur = hi
			p = bp + 1
			continue
		}

		if !lo.IsFalse() {
			*frames = append(*frames, iterFrame{other: hi, bitPos: bp, tookLo: true})
			cur.Release()
			cur = lo
			p = bp + 1
			continue
		}

		lo.Release()
		if hi.IsFalse() {
			hi.Release()
			cur.Release()
			return s.facade.False()
		}
		*frames = append(*frames, iterFrame{other: s.facade.False(), bitPos: bp, tookLo: false})
		cur.Release()
		return s.descendLeftmost(hi, frames)
	}
	return cur
}

// backtrack pops frames looking for the most recent one that took the
// 0-branch and still has a live, untried 1-branch alternative; it switches
// to that alternative and completes with descendLeftmost. Used both to
// recover from a seek's exact-match dead end and to advance to the next
// key after a successful yield.
func (s *Storage) backtrack(frames []iterFrame) (bdd.Set, []iterFrame) {
	for len(frames) > 0 {
		last := frames[len(frames)-1]
		frames = frames[:len(frames)-1]
		if last.tookLo && !last.other.IsFalse() {
			frames = append(frames, iterFrame{other: s.facade.False(), bitPos: last.bitPos, tookLo: false})
			cur := s.descendLeftmost(last.other, &frames)
			if !cur.IsFalse() {
				return cur, frames
			}
			continue
		}
		last.other.Release()
	}
	return s.facade.False(), nil
}

func cfBitsOf(cfID uint32) []bool {
	bits := make([]bool, cfPrefixBits)
	for i := 0; i < cfPrefixBits; i++ {
		bits[i] = (cfID>>uint(cfPrefixBits-1-i))&1 != 0
	}
	return bits
}

func extractBits(ik key.Internal, n int) []bool {
	bits := make([]bool, n)
	for p := 0; p < n; p++ {
		bits[p] = ik.BitAt(p)
	}
	return bits
}

func bitsToBytes(bits []bool) []byte {
	out := make([]byte, len(bits)/8)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << uint(7-(i%8))
		}
	}
	return out
}
