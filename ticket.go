package zddlsm

import (
	"runtime"
	"sync/atomic"
)

// LockGuard represents one goroutine's turn in a Storage's ticket lock. It
// must be released exactly once, normally via a deferred Release call,
// which lets the next queued ticket proceed.
type LockGuard struct {
	s  *Storage
	id uint32
}

// Release hands the lock to the next ticket in FIFO order.
func (g *LockGuard) Release() {
	g.s.readyTask.Add(1)
}

// Lock acquires the Storage's ticket lock and returns a guard. Tickets are
// served strictly in the order they were issued: a goroutine that called
// Lock first is always unblocked before one that called it later,
// regardless of scheduling. This realizes the FIFO mutual exclusion the
// design requires across all goroutines sharing a Storage.
//
// Acquisition busy-waits with a bounded backoff rather than blocking on a
// channel or a condition variable — retained deliberately, since a
// Storage's critical sections are short bit-twiddling operations on the
// BDD, not I/O, and the spin avoids the latency and allocation cost of
// parking a goroutine for what is typically a handful of instructions.
func (s *Storage) Lock() *LockGuard {
	id := s.currTask.Add(1) - 1
	for spins := 0; s.readyTask.Load() != id; spins++ {
		if spins < 100 {
			runtime.Gosched()
			continue
		}
		backoff(spins)
	}
	return &LockGuard{s: s, id: id}
}

// backoff grows the pause between spin attempts once plain Gosched
// rescheduling hasn't cleared the ticket after a generous number of tries,
// so a goroutine waiting behind a long-running holder doesn't burn a full
// core spinning.
func backoff(spins int) {
	n := spins - 100
	if n > 10 {
		n = 10
	}
	for i := 0; i < 1<<uint(n); i++ {
		runtime.Gosched()
	}
}

// ticketLock is the pair of counters backing Lock/Release. Embedded by
// value in Storage; zero value is a valid, unlocked lock.
type ticketLock struct {
	currTask  atomic.Uint32
	readyTask atomic.Uint32
}
