package bdd

import (
	"fmt"
	"sync"
)

// VarID identifies a ZDD variable. Variables are declared in order starting
// at 1, and a variable's level equals its VarID; root-to-terminal order runs
// the opposite way from declaration order: a
// larger VarID sits nearer the root, variable 1 sits at the bottom of the
// diagram closest to the terminals — matching the SAPPOROBDD-style runtime
// this façade's algorithms are grounded on, where the last-declared
// variable is the topmost.
type VarID uint32

// Facade is the process-wide ZDD runtime. It owns the unique table and the
// declared variable universe, and it serializes every mutating operation
// behind a single mutex.
//
// §5 of the design calls the "only one goroutine touches the façade at a
// time" rule a hard invariant enforced externally by callers; this rewrite
// bakes it into the façade itself instead (see REDESIGN FLAGS in
// DESIGN.md/SPEC_FULL.md) because a Go library that corrupts shared state
// when a caller forgets an undocumented locking obligation is not how the
// rest of this codebase's dependencies behave.
type Facade struct {
	mu        sync.Mutex
	table     *nodeTable
	totalVars uint32
	nextVar   uint32

	gcVotes   uint32
	lastGCKey uint64
}

var (
	initOnce sync.Once
	global   *Facade
)

// Init idempotently creates the process-wide Facade with room for totalVars
// variables. The first caller wins; every later caller must request a
// variable count no larger than what was already declared, or Init panics —
// mirroring the "must declare a compatible (≤) variable count" rule from the
// design notes.
func Init(totalVars uint32) *Facade {
	initOnce.Do(func() {
		global = &Facade{
			table:     newNodeTable(),
			totalVars: totalVars,
		}
	})
	if totalVars > global.totalVars {
		panic(fmt.Sprintf("bdd: Init(%d) requested more variables than the process-wide facade already declared (%d)", totalVars, global.totalVars))
	}
	return global
}

// NewVarOfLevel appends a new variable at the next available level. Levels
// are assigned densely in declaration order (1, 2, 3, ...); since this
// embedded engine never reorders variables dynamically (see the resolved
// open question in SPEC_FULL.md §9), a variable's level never changes after
// creation and LevelOfVar is simply the identity.
func (f *Facade) NewVarOfLevel(level uint32) VarID {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.nextVar >= f.totalVars {
		panic("bdd: variable universe exhausted")
	}
	if level != f.nextVar+1 {
		panic(fmt.Sprintf("bdd: variables must be declared in order; expected level %d, got %d", f.nextVar+1, level))
	}
	f.nextVar = level
	return VarID(level)
}

// LevelOfVar returns the numeric level of a previously declared variable.
func (f *Facade) LevelOfVar(v VarID) uint32 {
	return uint32(v)
}

// AllocVars declares n fresh variables in one atomic step and returns them
// in level order. It is the batch form of NewVarOfLevel: a Storage needs a
// whole contiguous block (its token range plus its key-bit range) at
// construction time, and allocating that block one call at a time would
// race against another Storage doing the same thing between calls.
func (f *Facade) AllocVars(n int) []VarID {
	f.mu.Lock()
	defer f.mu.Unlock()

	if uint32(n) > f.totalVars-f.nextVar {
		panic("bdd: variable universe exhausted")
	}
	vars := make([]VarID, n)
	for i := 0; i < n; i++ {
		f.nextVar++
		vars[i] = VarID(f.nextVar)
	}
	return vars
}

// TotalVars returns the declared size of the variable universe.
func (f *Facade) TotalVars() uint32 {
	return f.totalVars
}

// Size reports the number of live entries in the unique table, for
// diagnostics (Storage.Print and tests) only.
func (f *Facade) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.table.size()
}
