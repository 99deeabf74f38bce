// Package stats provides the counters behind the dispatcher statistics.
//
// Counters are indexed by event kind ordinal. A Set is owned by a single
// reporter (one adapter, or the engine itself); a Group unions many Sets
// that report the same kinds, so several adapters layered on one engine
// add up to a single received total per kind.
//
// All types are safe for concurrent increment and concurrent reads.
package stats

import (
	"sync"
	"sync/atomic"
)

// Set is a fixed-size array of monotonic counters.
type Set struct {
	counts []atomic.Int64
}

// NewSet creates a Set with n counters.
func NewSet(n int) *Set {
	return &Set{counts: make([]atomic.Int64, n)}
}

// Len returns the number of counters.
func (s *Set) Len() int {
	return len(s.counts)
}

// Inc adds one to counter i. Out-of-range indexes are ignored.
func (s *Set) Inc(i int) {
	s.Add(i, 1)
}

// Add adds delta to counter i. Out-of-range indexes are ignored.
func (s *Set) Add(i int, delta int64) {
	if i < 0 || i >= len(s.counts) {
		return
	}
	s.counts[i].Add(delta)
}

// Load returns counter i, 0 if out of range.
func (s *Set) Load(i int) int64 {
	if i < 0 || i >= len(s.counts) {
		return 0
	}
	return s.counts[i].Load()
}

// Snapshot copies every counter.
func (s *Set) Snapshot() []int64 {
	out := make([]int64, len(s.counts))
	for i := range s.counts {
		out[i] = s.counts[i].Load()
	}
	return out
}

// Total returns the sum of every counter.
func (s *Set) Total() int64 {
	var total int64
	for i := range s.counts {
		total += s.counts[i].Load()
	}
	return total
}

// Group is the union of Sets reporting the same indexes.
type Group struct {
	n    int
	mu   sync.RWMutex
	sets []*Set
}

// NewGroup creates a Group whose members have n counters.
func NewGroup(n int) *Group {
	return &Group{n: n}
}

// NewMember creates a Set and adds it to the group.
func (g *Group) NewMember() *Set {
	s := NewSet(g.n)
	g.mu.Lock()
	g.sets = append(g.sets, s)
	g.mu.Unlock()
	return s
}

// Members returns the number of Sets in the group.
func (g *Group) Members() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sets)
}

// Load sums counter i across the group.
func (g *Group) Load(i int) int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var total int64
	for _, s := range g.sets {
		total += s.Load(i)
	}
	return total
}

// Snapshot sums every counter across the group.
func (g *Group) Snapshot() []int64 {
	out := make([]int64, g.n)
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, s := range g.sets {
		for i := range out {
			out[i] += s.Load(i)
		}
	}
	return out
}
