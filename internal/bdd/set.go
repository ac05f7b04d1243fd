package bdd

// Set is an opaque, reference-counted handle to a ZDD value: a set of
// fixed-width bit-vectors over the Facade's declared variables. The zero
// Set is not valid; obtain one from Facade.False, Facade.True, or another
// Set's operations.
//
// Set follows the ownership discipline from the design notes: every
// operation that returns a new Set hands the caller a fresh reference (the
// table's refcount for that node has already been bumped). Callers that
// keep a Set around — a Storage's root, an in-flight iterator frame — must
// Release it when they replace or discard it, and Acquire it if they hand
// out a second independent owner of the same value.
type Set struct {
	f  *Facade
	id id
}

func (f *Facade) wrap(x id) Set {
	f.table.incRef(x)
	return Set{f: f, id: x}
}

// False returns the empty set (the ZDD 0-terminal).
func (f *Facade) False() Set { return f.wrap(falseID) }

// True returns the set containing only the empty combination (the ZDD
// 1-terminal, also called "single" in the design notes).
func (f *Facade) True() Set { return f.wrap(trueID) }

// IsFalse reports whether s is the empty set.
func (s Set) IsFalse() bool { return s.id == falseID }

// IsTrue reports whether s is exactly {∅}.
func (s Set) IsTrue() bool { return s.id == trueID }

// IsTerminal reports whether s is either terminal.
func (s Set) IsTerminal() bool { return s.id == falseID || s.id == trueID }

// Top returns the variable at the root of s. ok is false when s is
// terminal, in which case the variable is undefined.
func (s Set) Top() (v VarID, ok bool) {
	if s.IsTerminal() {
		return 0, false
	}
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	return VarID(s.f.table.get(s.id).level), true
}

// Acquire bumps s's reference count and returns s unchanged, for callers
// that need a second independent owner of the same value (e.g. stashing a
// copy of the current root before attempting a mutation that might panic).
func (s Set) Acquire() Set {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.table.incRef(s.id)
	return s
}

// Release drops s's reference. It must be called exactly once for every Set
// a caller owns, on every exit path, per the resource-acquisition rule in
// §5. Releasing a terminal is a harmless no-op.
func (s Set) Release() {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.table.decRef(s.id)
}

// Equal reports whether s and o denote the same ZDD value. Because the
// table structurally shares nodes, equal values always carry the same id.
func (s Set) Equal(o Set) bool { return s.f == o.f && s.id == o.id }

// Children returns s's immediate 0-arc and 1-arc successors. ok is false
// when s is terminal. Unlike OffSet/OnSet0, this does not restrict or
// strip anything below the top node — it is the raw node-table child
// extraction the design's C1 contract names alongside Top, used by the
// token decoder and the iterator's DFS walk, both of which need to follow
// a single node's arcs rather than filter a whole sub-diagram.
func (s Set) Children() (lo, hi Set, ok bool) {
	if s.IsTerminal() {
		return Set{}, Set{}, false
	}
	s.f.mu.Lock()
	n := s.f.table.get(s.id)
	s.f.mu.Unlock()
	return s.f.wrap(n.lo), s.f.wrap(n.hi), true
}

func levelOf(nt *nodeTable, x id) uint32 {
	if x == falseID || x == trueID {
		return levelBottom
	}
	return nt.get(x).level
}
