package zddlsm

import (
	"github.com/rs/zerolog"

	"github.com/emer4ldherald/zddlsm/internal/bdd"
	"github.com/emer4ldherald/zddlsm/internal/compressor"
	"github.com/emer4ldherald/zddlsm/internal/key"
)

// tokenBits is T in the design's notation: the width of the token range,
// variables 1..T, MSB at variable 1.
//
// paddingBits is A: extra headroom reserved above the key-bit range so a
// shard rebuilt with a differently-shaped cf prefix, or a future trailing
// terminator, never collides with a neighboring Storage's variable block.
const (
	tokenBits   = 32
	paddingBits = 32

	// cfPrefixBits is the width, in bits, of the column-family prefix that
	// leads every internal key (see internal/key's 4-byte cf_id_be). It is
	// numerically equal to tokenBits but denotes a different concept, so it
	// gets its own name everywhere a cf prefix specifically is meant.
	cfPrefixBits = 32
)

// Storage owns one ZDD root plus a token→level mapping (C4). It implements
// Set/Delete/GetLevel/IsEmpty directly on the shared diagram, and exposes
// the ticket lock (ticket.go) that every operation here acquires internally
// so callers never have to remember to lock by hand.
//
// A Storage claims a private, contiguous block of the façade's global
// variable universe at construction time (facade.AllocVars) and never lets
// go of it. Variables are allocated in ascending id order, and a larger id
// sits nearer the root (see bdd.VarID), so the block reads bottom-to-top as
// allocated: the token range occupies the bottom (smallest ids, closest to
// the terminals), the key-bit range sits above it, and paddingBits of slack
// sit unused at the very top in case a rebuild or future feature needs a
// slightly different shape without reallocating. This places every
// currently-live key's distinguishing bits above its token bits, so a walk
// from the shared root always exhausts the key-bit range before reaching
// the token range — exactly what getSubZDD's descent below relies on.
type Storage struct {
	ticketLock

	facade      *bdd.Facade
	vars        []bdd.VarID
	compression compressor.Compression
	logger      *zerolog.Logger

	// compressedLen is the compressor's output length for the declared max
	// key length, frozen at construction; it is what a shard rebuild uses
	// to size the identity-compressed replacement Storage (see sharded.go).
	compressedLen int

	root         bdd.Set
	data         map[uint32]uint32 // token -> level
	currentToken uint32
	size         uint32
	deleted      uint32
}

// NewStorage creates a fresh, empty Storage sized for user keys up to
// keyLen bytes (before compression). The default compressor is Identity;
// use WithCompression to pick MD5, SHA256 or Zstd instead.
func NewStorage(keyLen uint32, opts ...Option) *Storage {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	compressedLen := cfg.compression.CompressedLen(int(keyLen))
	kBytes := 4 + compressedLen
	kBits := kBytes * 8
	required := uint32(tokenBits + kBits + paddingBits)

	universe := required
	if cfg.totalVars > universe {
		universe = cfg.totalVars
	}
	facade := bdd.Init(universe)
	vars := facade.AllocVars(int(required))

	return &Storage{
		facade:        facade,
		vars:          vars,
		compression:   cfg.compression,
		logger:        cfg.logger,
		compressedLen: compressedLen,
		root:          facade.False(),
		data:          make(map[uint32]uint32),
	}
}

// Set inserts or overwrites the level for key in column family 0.
func (s *Storage) Set(userKey []byte, level uint32) {
	s.SetCF(0, userKey, level)
}

// SetCF inserts or overwrites the level for key within column family cfID.
func (s *Storage) SetCF(cfID uint32, userKey []byte, level uint32) {
	s.setCompressed(cfID, s.compression.Compress(userKey), level)
}

// setCompressed is the shared body of Set/SetCF, parameterized on
// already-compressed bytes so a shard rebuild (sharded.go) can reinsert an
// iterator's yielded bytes directly without running them back through a
// compressor a second time — the "no-compression" rebuild path the design
// notes call for.
func (s *Storage) setCompressed(cfID uint32, compressed []byte, level uint32) {
	guard := s.Lock()
	defer guard.Release()

	ik := key.New(cfID, compressed)
	if token, ok := s.decodeTokenFor(ik); ok {
		s.data[token] = level
		return
	}

	s.currentToken++
	token := s.currentToken
	elem := s.transform(ik, token)
	newRoot := s.root.Union(elem)
	elem.Release()
	s.root.Release()
	s.root = newRoot
	s.data[token] = level
	s.size++

	s.logger.Debug().Uint32("token", token).Uint32("cf", cfID).Uint32("size", s.size).
		Msg("storage: assigned token")
}

// Delete removes key from column family 0, if present.
func (s *Storage) Delete(userKey []byte) {
	s.DeleteCF(0, userKey)
}

// DeleteCF removes key from column family cfID, if present. Absent keys are
// a silent no-op.
func (s *Storage) DeleteCF(cfID uint32, userKey []byte) {
	guard := s.Lock()
	defer guard.Release()

	ik := key.New(cfID, s.compression.Compress(userKey))
	token, ok := s.decodeTokenFor(ik)
	if !ok {
		return
	}

	elem := s.transform(ik, token)
	newRoot := s.root.Diff(elem)
	elem.Release()
	s.root.Release()
	s.root = newRoot
	delete(s.data, token)
	s.size--
	s.deleted++

	s.logger.Debug().Uint32("token", token).Uint32("cf", cfID).Uint32("deleted", s.deleted).
		Msg("storage: retired token")
}

// GetLevel returns the level stored for key in column family 0.
func (s *Storage) GetLevel(userKey []byte) (uint32, bool) {
	return s.GetLevelCF(0, userKey)
}

// GetLevelCF returns the level stored for key in column family cfID.
func (s *Storage) GetLevelCF(cfID uint32, userKey []byte) (uint32, bool) {
	guard := s.Lock()
	defer guard.Release()

	ik := key.New(cfID, s.compression.Compress(userKey))
	token, ok := s.decodeTokenFor(ik)
	if !ok {
		return 0, false
	}
	level, ok := s.data[token]
	return level, ok
}

// IsEmpty reports whether the Storage currently holds no keys.
func (s *Storage) IsEmpty() bool {
	guard := s.Lock()
	defer guard.Release()
	return s.size == 0
}

// Print emits a structured diagnostic snapshot of the Storage (size,
// deleted count, token cursor, façade node-table size) through the
// configured logger at debug level, per C0. A disabled logger makes this a
// no-op; nothing about correctness depends on it running.
func (s *Storage) Print() {
	guard := s.Lock()
	defer guard.Release()
	s.logger.Debug().
		Uint32("size", s.size).
		Uint32("deleted", s.deleted).
		Uint32("current_token", s.currentToken).
		Int("facade_nodes", s.facade.Size()).
		Msg("storage: snapshot")
}

// transform builds the ZDD element for (k, token): the unit set with every
// bit of token and every 1-bit of k's internal-key image toggled on, per
// §4.4's bit-encoding algorithm. The caller owns the returned Set.
func (s *Storage) transform(ik key.Internal, token uint32) bdd.Set {
	cur := s.facade.True()
	for i := 0; i < tokenBits; i++ {
		if token&(1<<uint(tokenBits-1-i)) != 0 {
			next := cur.Change(s.vars[i])
			cur.Release()
			cur = next
		}
	}
	kBits := ik.Bits()
	for p := 0; p < kBits; p++ {
		if ik.BitAt(p) {
			next := cur.Change(s.keyVar(p))
			cur.Release()
			cur = next
		}
	}
	return cur
}

// decodeTokenFor resolves k to its live token, if k is currently present.
func (s *Storage) decodeTokenFor(ik key.Internal) (uint32, bool) {
	sub, ok := s.getSubZDD(ik, 0)
	if !ok {
		return 0, false
	}
	defer sub.Release()
	return s.decodeTokenAt(sub)
}

// getSubZDD descends from the root to the sub-diagram encoding exactly the
// key-bit variables of k (optionally only its first prefixLen bits),
// leaving the token range just below the current top — §4.4's getSubZDD.
// Unlike the Iterator's seek, this is an exact-match walk: any divergence
// from k's bits means the key is not present, full stop, no backtracking.
func (s *Storage) getSubZDD(ik key.Internal, prefixLen int) (bdd.Set, bool) {
	kBits := ik.Bits()
	if prefixLen <= 0 || prefixLen > kBits {
		prefixLen = kBits
	}

	// NzVars lists set bit positions (as p+1) in ascending order; key-bit
	// variables run the other way (see keyVar), so map and reverse them to
	// get ascending variable levels.
	pos := ik.NzVars(0, prefixLen)
	nz := make([]int, len(pos))
	for i, v := range pos {
		nz[len(pos)-1-i] = int(s.keyVar(v - 1))
	}
	sp := len(nz) - 1

	cur := s.root.Acquire()
	lastTokenVar := s.lastTokenVar()

	// A whole-key lookup may pass lo-branch nodes for bits beyond the
	// lookup key's own length (stored keys can be longer), so it is bounded
	// by the Storage's key-bit width rather than by kBits.
	steps := prefixLen
	if prefixLen == kBits {
		steps = s.keyBitsLen()
	}
	for i := 0; i < steps; i++ {
		if cur.IsTerminal() {
			break
		}
		top, _ := cur.Top()
		lvl := uint32(top)
		if lvl <= lastTokenVar {
			break
		}

		switch {
		case sp < 0 || int(lvl) > nz[sp]:
			lo, hi, _ := cur.Children()
			hi.Release()
			cur.Release()
			cur = lo
		case int(lvl) < nz[sp]:
			lo, hi, _ := cur.Children()
			lo.Release()
			hi.Release()
			cur.Release()
			return bdd.Set{}, false
		default:
			lo, hi, _ := cur.Children()
			lo.Release()
			cur.Release()
			cur = hi
			sp--
		}
	}

	if sp < 0 && !cur.IsTerminal() {
		top, _ := cur.Top()
		next := cur.OnSet(top)
		cur.Release()
		cur = next
	}

	if sp >= 0 || cur.IsFalse() {
		cur.Release()
		return bdd.Set{}, false
	}
	return cur, true
}

// decodeTokenAt walks T token bits from pos (which must sit at the top of
// the token range, as getSubZDD leaves it) and returns the decoded token.
// pos is borrowed, not consumed: callers that want to Deref repeatedly
// without re-walking the key range (the Iterator) rely on this not
// releasing their copy.
func (s *Storage) decodeTokenAt(pos bdd.Set) (uint32, bool) {
	cur := pos.Acquire()
	var token uint32
	for {
		if cur.IsTrue() {
			cur.Release()
			return token, true
		}
		lo, hi, ok := cur.Children()
		if !ok {
			cur.Release()
			return 0, false
		}
		top, _ := cur.Top()
		bitIdx := tokenBits - 1 - int(uint32(top)-uint32(s.vars[0]))

		var next bdd.Set
		switch {
		case !lo.IsFalse():
			next = lo
			hi.Release()
		case !hi.IsFalse():
			next = hi
			token |= 1 << uint(bitIdx)
			lo.Release()
		default:
			lo.Release()
			hi.Release()
			cur.Release()
			return 0, false
		}
		cur.Release()
		cur = next
	}
}

func (s *Storage) lastTokenVar() uint32 { return uint32(s.vars[tokenBits-1]) }
func (s *Storage) keyBaseVar() uint32   { return uint32(s.vars[tokenBits]) }
func (s *Storage) bitPosOf(v bdd.VarID) int {
	return s.keyBitsLen() - 1 - int(uint32(v)-s.keyBaseVar())
}
func (s *Storage) keyBitsLen() int { return len(s.vars) - tokenBits - paddingBits }

// keyVar returns the variable encoding bit p of an internal key. Bit 0 (the
// MSB of byte 0) gets the highest variable of the key-bit range, so it sits
// nearest the root and a 0-branch-first walk visits keys in ascending byte
// order.
func (s *Storage) keyVar(p int) bdd.VarID { return s.vars[tokenBits+s.keyBitsLen()-1-p] }
