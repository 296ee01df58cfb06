package mtree

import (
	"container/heap"
	"iter"
	"math"
	"sort"
)

var infinity = math.Inf(1)

// rangeCandidate is one pending node to visit during a range query, ordered
// by nothing in particular: range queries don't need best-first order to be
// correct, only the triangle-inequality prune below, so a plain stack (via
// a slice) would do. A heap is used anyway to share code shape with k-NN
// and to visit the most promising subtrees first, which tends to shrink
// the stack faster in practice.
type rangeCandidate[T comparable] struct {
	n            *node[T]
	parent       T
	hasParent    bool
	distToParent float64
}

type rangeHeap[T comparable] []rangeCandidate[T]

func (h rangeHeap[T]) Len() int            { return len(h) }
func (h rangeHeap[T]) Less(i, j int) bool  { return h[i].distToParent < h[j].distToParent }
func (h rangeHeap[T]) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *rangeHeap[T]) Push(x any)         { *h = append(*h, x.(rangeCandidate[T])) }
func (h *rangeHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// rangeResult is one qualifying (object, distance) pair found during a
// range traversal, buffered so the full set can be sorted before yielding
// -- mirrors how KNNQuery sorts its bounded result set before yielding.
type rangeResult[T comparable] struct {
	obj T
	d   float64
}

// RangeQuery returns every stored object within radius r of q, together
// with its distance to q, implementing §4.5. The traversal only descends
// into a subtree whose covering radius cannot be ruled out by the triangle
// inequality, but results are collected in full before any are yielded, in
// ascending distance order, since the traversal order of the heap below
// (by distance to the routing object, not by the §4.5 lower bound) does
// not itself guarantee monotonic output. The iterator is single-use and
// not safe to share across goroutines; it must not be resumed after a
// mutation of t.
//
// A poisoned tree yields no results; callers that care should check the
// error from [Tree.CheckInvariants], [Tree.Add] or [Tree.Remove] (each
// returns [ErrTreePoisoned] on a poisoned tree) rather than rely on an
// empty range meaning "found nothing".
func (t *Tree[T]) RangeQuery(q T, r float64) iter.Seq2[T, float64] {
	return func(yield func(T, float64) bool) {
		if t.poisoned || t.root == nil || r < 0 {
			return
		}
		cache := newCachedDistanceFunction(t.distanceFn)
		defer t.poisonRecover()

		h := &rangeHeap[T]{{n: t.root}}
		heap.Init(h)

		var results []rangeResult[T]

		for h.Len() > 0 {
			cand := heap.Pop(h).(rangeCandidate[T])
			n := cand.n

			for _, e := range n.entries {
				if cand.hasParent && e.hasDistToParent {
					if abs(cand.distToParent-e.distToParent) > r+entryRadius(n, e) {
						continue
					}
				}

				d := cache.distance(q, e.data)

				if n.leaf {
					if d <= r {
						results = append(results, rangeResult[T]{obj: e.data, d: d})
					}
					continue
				}

				if d <= r+e.radius {
					heap.Push(h, rangeCandidate[T]{n: e.subtree, parent: e.data, hasParent: true, distToParent: d})
				}
			}
		}

		sortRangeResults(results)
		for _, res := range results {
			if !yield(res.obj, res.d) {
				return
			}
		}
	}
}

// sortRangeResults orders results ascending by distance; unlike the bounded
// (size <= k) result set KNNQuery sorts with a small insertion sort, a
// range query's result count is unbounded, so this uses sort.Slice.
func sortRangeResults[T comparable](rs []rangeResult[T]) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].d < rs[j].d })
}

// entryRadius is 0 for a leaf entry (a bare object has no covering radius
// of its own) and e.radius otherwise; used by RangeQuery's parent-distance
// prefilter. KNNQuery does not apply that prefilter.
func entryRadius[T comparable](n *node[T], e *entry[T]) float64 {
	if n.leaf {
		return 0
	}
	return e.radius
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// knnCandidate is a pending node in the k-NN best-first traversal, ordered
// by the lower bound on the distance from q to anything in its subtree
// (§4.6): the entry's own distance to q minus its covering radius.
type knnCandidate[T comparable] struct {
	n          *node[T]
	lowerBound float64
}

type knnCandidateHeap[T comparable] []knnCandidate[T]

func (h knnCandidateHeap[T]) Len() int           { return len(h) }
func (h knnCandidateHeap[T]) Less(i, j int) bool { return h[i].lowerBound < h[j].lowerBound }
func (h knnCandidateHeap[T]) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *knnCandidateHeap[T]) Push(x any)         { *h = append(*h, x.(knnCandidate[T])) }
func (h *knnCandidateHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// knnResult is a provisional answer held in the bounded max-heap of size k;
// the farthest current result sits at the root so it can be evicted in
// O(log k) as closer ones are found.
type knnResult[T comparable] struct {
	obj T
	d   float64
}

type knnResultHeap[T comparable] []knnResult[T]

func (h knnResultHeap[T]) Len() int           { return len(h) }
func (h knnResultHeap[T]) Less(i, j int) bool { return h[i].d > h[j].d }
func (h knnResultHeap[T]) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *knnResultHeap[T]) Push(x any)         { *h = append(*h, x.(knnResult[T])) }
func (h *knnResultHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// KNNQuery returns the k stored objects closest to q, nearest first,
// together with their distance to q, implementing §4.6 via a best-first
// traversal with a bounded result set. If the tree holds fewer than k
// objects, all of them are returned. k <= 0 yields no results.
//
// As with [Tree.RangeQuery], nothing is computed until the caller starts
// ranging; the whole traversal then runs to completion before the first
// result is yielded, and yielding stops as soon as the caller stops pulling.
func (t *Tree[T]) KNNQuery(q T, k int) iter.Seq2[T, float64] {
	return func(yield func(T, float64) bool) {
		if t.poisoned || t.root == nil || k <= 0 {
			return
		}
		cache := newCachedDistanceFunction(t.distanceFn)
		defer t.poisonRecover()

		results := &knnResultHeap[T]{}
		heap.Init(results)
		worst := func() float64 {
			if results.Len() < k {
				return infinity
			}
			return (*results)[0].d
		}

		candidates := &knnCandidateHeap[T]{{n: t.root}}
		heap.Init(candidates)

		for candidates.Len() > 0 {
			if (*candidates)[0].lowerBound > worst() {
				break
			}
			cand := heap.Pop(candidates).(knnCandidate[T])
			if cand.lowerBound > worst() {
				continue
			}
			n := cand.n

			for _, e := range n.entries {
				d := cache.distance(q, e.data)

				if n.leaf {
					if d <= worst() {
						heap.Push(results, knnResult[T]{obj: e.data, d: d})
						for results.Len() > k {
							heap.Pop(results)
						}
					}
					continue
				}

				lb := d - e.radius
				if lb <= worst() {
					heap.Push(candidates, knnCandidate[T]{n: e.subtree, lowerBound: lb})
				}
			}
		}

		ordered := make([]knnResult[T], results.Len())
		copy(ordered, *results)
		// results is a max-heap (farthest first); reverse by repeated pop
		// would also work, but a sort keeps this independent of heap order.
		sortResults(ordered)

		for _, r := range ordered {
			if !yield(r.obj, r.d) {
				return
			}
		}
	}
}

func sortResults[T comparable](rs []knnResult[T]) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j].d < rs[j-1].d; j-- {
			rs[j], rs[j-1] = rs[j-1], rs[j]
		}
	}
}
