// Package visitset provides a compact "have I seen this node already"
// marker for tree walks that must assert an ownership invariant (no node
// visited twice, i.e. no shared sub-trees). A map assigns each pointer a
// dense id, and the visited marks for those ids are kept in a
// [bitset.BitSet], following the bitmap technique the bart routing-table
// package uses for its prefix and child presence bitmaps.
package visitset

import "github.com/bits-and-blooms/bitset"

// Set assigns a dense sequential id to each pointer the first time it is
// seen and tracks which ids have been marked visited. It is built for the
// single-pass, single-goroutine invariant walkers in this module and is not
// safe for concurrent use.
type Set[P comparable] struct {
	ids     map[P]uint
	visited *bitset.BitSet
	next    uint
}

// New returns an empty Set.
func New[P comparable]() *Set[P] {
	return &Set[P]{
		ids:     make(map[P]uint),
		visited: bitset.New(0),
	}
}

// Visit marks p as visited and reports whether it had already been marked
// by a previous call. Callers use the return value to detect a node reached
// through more than one path, which would violate the single-owner rule.
func (s *Set[P]) Visit(p P) (alreadyVisited bool) {
	id, ok := s.ids[p]
	if !ok {
		id = s.next
		s.ids[p] = id
		s.next++
	}

	if s.visited.Test(id) {
		return true
	}
	s.visited.Set(id)
	return false
}

// Len returns the number of distinct pointers visited so far.
func (s *Set[P]) Len() int {
	return int(s.visited.Count())
}
