package bdd

// This file implements the ZDD set-algebra primitives the design specifies
// for the Facade: Union, Diff, Change, OnSet0, OffSet and OnSet. All of them
// are standard recursive "apply" style algorithms over the shared node
// table (see e.g. Minato's ZDD operators); each call takes the Facade's
// mutex for its whole recursion since the engine is modeled as
// single-threaded-at-a-time (§5).
//
// A larger variable level sits nearer the root (see VarID's doc comment), so
// throughout this file the operand with the *greater* level is the one
// still above the other and gets recursed into first, with the smaller-level
// operand carried along unchanged until the recursion reaches its level.

// Change toggles membership of variable v in every member of s: a vector
// that had v unset gains it, and vice versa.
func (s Set) Change(v VarID) Set {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	memo := make(map[id]id)
	return s.f.wrap(s.f.change(memo, s.id, v))
}

func (f *Facade) change(memo map[id]id, x id, v VarID) id {
	if x == falseID {
		return falseID
	}
	if cached, ok := memo[x]; ok {
		return cached
	}
	var result id
	lvl := levelOf(f.table, x)
	switch {
	case x == trueID:
		result = f.table.addNode(uint32(v), falseID, trueID)
	case lvl == uint32(v):
		n := f.table.get(x)
		result = f.table.addNode(n.level, n.hi, n.lo)
	case lvl > uint32(v):
		n := f.table.get(x)
		lo := f.change(memo, n.lo, v)
		hi := f.change(memo, n.hi, v)
		result = f.table.addNode(n.level, lo, hi)
	default: // lvl < uint32(v): x never branches on v
		result = f.table.addNode(uint32(v), falseID, x)
	}
	memo[x] = result
	return result
}

// Union returns s ∪ o.
func (s Set) Union(o Set) Set {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	memo := make(map[[2]id]id)
	return s.f.wrap(s.f.union(memo, s.id, o.id))
}

func (f *Facade) union(memo map[[2]id]id, x, y id) id {
	if x == falseID {
		return y
	}
	if y == falseID {
		return x
	}
	if x == y {
		return x
	}
	key := [2]id{x, y}
	if x > y {
		key = [2]id{y, x}
	}
	if cached, ok := memo[key]; ok {
		return cached
	}

	lx, ly := levelOf(f.table, x), levelOf(f.table, y)
	var result id
	switch {
	case lx == ly: // both TRUE is excluded by x==y above; both non-terminal at the same level
		nx, ny := f.table.get(x), f.table.get(y)
		lo := f.union(memo, nx.lo, ny.lo)
		hi := f.union(memo, nx.hi, ny.hi)
		result = f.table.addNode(nx.level, lo, hi)
	case lx > ly:
		nx := f.table.get(x)
		lo := f.union(memo, nx.lo, y)
		result = f.table.addNode(nx.level, lo, nx.hi)
	default:
		ny := f.table.get(y)
		lo := f.union(memo, x, ny.lo)
		result = f.table.addNode(ny.level, lo, ny.hi)
	}
	memo[key] = result
	return result
}

// Diff returns s \ o: the members of s that are not also members of o.
func (s Set) Diff(o Set) Set {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	memo := make(map[[2]id]id)
	return s.f.wrap(s.f.diff(memo, s.id, o.id))
}

func (f *Facade) diff(memo map[[2]id]id, x, y id) id {
	if x == falseID {
		return falseID
	}
	if y == falseID {
		return x
	}
	if x == y {
		return falseID
	}
	key := [2]id{x, y}
	if cached, ok := memo[key]; ok {
		return cached
	}

	lx, ly := levelOf(f.table, x), levelOf(f.table, y)
	var result id
	switch {
	case lx == ly:
		nx, ny := f.table.get(x), f.table.get(y)
		lo := f.diff(memo, nx.lo, ny.lo)
		hi := f.diff(memo, nx.hi, ny.hi)
		result = f.table.addNode(nx.level, lo, hi)
	case lx > ly:
		nx := f.table.get(x)
		lo := f.diff(memo, nx.lo, y)
		result = f.table.addNode(nx.level, lo, nx.hi)
	default:
		ny := f.table.get(y)
		result = f.diff(memo, x, ny.lo)
	}
	memo[key] = result
	return result
}

// OnSet0 returns the subset of s whose members contain v, with v itself
// removed from every member (the classic ZDD "restrict to 1-branch and
// strip" operation).
func (s Set) OnSet0(v VarID) Set {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	memo := make(map[id]id)
	return s.f.wrap(s.f.onSet0(memo, s.id, v))
}

func (f *Facade) onSet0(memo map[id]id, x id, v VarID) id {
	if x == falseID || x == trueID {
		return falseID
	}
	if cached, ok := memo[x]; ok {
		return cached
	}
	n := f.table.get(x)
	var result id
	switch {
	case n.level == uint32(v):
		result = n.hi
	case n.level < uint32(v):
		result = falseID
	default:
		lo := f.onSet0(memo, n.lo, v)
		hi := f.onSet0(memo, n.hi, v)
		result = f.table.addNode(n.level, lo, hi)
	}
	memo[x] = result
	return result
}

// OffSet returns the subset of s whose members do not contain v.
func (s Set) OffSet(v VarID) Set {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	memo := make(map[id]id)
	return s.f.wrap(s.f.offSet(memo, s.id, v))
}

func (f *Facade) offSet(memo map[id]id, x id, v VarID) id {
	if x == falseID || x == trueID {
		return x
	}
	if cached, ok := memo[x]; ok {
		return cached
	}
	n := f.table.get(x)
	var result id
	switch {
	case n.level == uint32(v):
		result = n.lo
	case n.level < uint32(v):
		result = x
	default:
		lo := f.offSet(memo, n.lo, v)
		hi := f.offSet(memo, n.hi, v)
		result = f.table.addNode(n.level, lo, hi)
	}
	memo[x] = result
	return result
}

// OnSet returns the subset of s whose members contain v, keeping v set in
// every member (unlike OnSet0, which strips it). Used by getSubZDD to
// descend from the key-bit range into the token range without disturbing
// the key bits already consumed.
func (s Set) OnSet(v VarID) Set {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	memo := make(map[id]id)
	return s.f.wrap(s.f.onSet(memo, s.id, v))
}

func (f *Facade) onSet(memo map[id]id, x id, v VarID) id {
	if x == falseID || x == trueID {
		return falseID
	}
	if cached, ok := memo[x]; ok {
		return cached
	}
	n := f.table.get(x)
	var result id
	switch {
	case n.level == uint32(v):
		result = f.table.addNode(n.level, falseID, n.hi)
	case n.level < uint32(v):
		result = falseID
	default:
		lo := f.onSet(memo, n.lo, v)
		hi := f.onSet(memo, n.hi, v)
		result = f.table.addNode(n.level, lo, hi)
	}
	memo[x] = result
	return result
}
