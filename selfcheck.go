package mtree

import (
	"fmt"

	"github.com/gosha-labs/mtree/internal/visitset"
)

// CheckInvariants walks the entire tree and verifies every invariant listed
// in this package's documentation: balance (every leaf at the same depth),
// capacity bounds, covering radii, stored parent distances, and single
// ownership of every subtree. It is not called by any mutating method --
// doing so would make every operation pay for a full traversal -- and exists
// for tests and for callers that want to assert on a tree built through
// this package's public API alone.
func (t *Tree[T]) CheckInvariants() error {
	if t.poisoned {
		return fmt.Errorf("mtree: %w", ErrTreePoisoned)
	}
	if t.root == nil {
		if t.size != 0 {
			return fmt.Errorf("mtree: empty root but size=%d", t.size)
		}
		return nil
	}

	cache := newCachedDistanceFunction(t.distanceFn)
	seen := visitset.New[*node[T]]()

	count, depth, err := checkNode(t, cache, seen, t.root, nil, true)
	if err != nil {
		return err
	}
	if count != t.size {
		return fmt.Errorf("mtree: tree reports size=%d but holds %d objects", t.size, count)
	}
	_ = depth
	return nil
}

// checkNode verifies n and its descendants, returning the number of stored
// objects beneath n and the depth of every leaf beneath it (an error if
// that depth is not uniform). parent is n's governing object, nil at the
// root; isRoot relaxes the capacity bound to [1, maxCapacity].
func checkNode[T comparable](t *Tree[T], cache *cachedDistanceFunction[T], seen *visitset.Set[*node[T]], n *node[T], parent *T, isRoot bool) (count int, leafDepth int, err error) {
	if seen.Visit(n) {
		return 0, 0, fmt.Errorf("mtree: node visited more than once, subtree is shared")
	}

	size := n.size()
	switch {
	case isRoot:
		if size < 1 || size > t.maxCapacity {
			return 0, 0, fmt.Errorf("mtree: root has %d entries, want [1,%d]", size, t.maxCapacity)
		}
	default:
		if size < t.minCapacity || size > t.maxCapacity {
			return 0, 0, fmt.Errorf("mtree: node has %d entries, want [%d,%d]", size, t.minCapacity, t.maxCapacity)
		}
	}

	childDepth := -1
	for _, e := range n.entries {
		if parent != nil {
			want := cache.distance(e.data, *parent)
			if !e.hasDistToParent || !floatsClose(e.distToParent, want) {
				return 0, 0, fmt.Errorf("mtree: entry distToParent=%v, recomputed=%v", e.distToParent, want)
			}
		} else if e.hasDistToParent {
			return 0, 0, fmt.Errorf("mtree: root-level entry unexpectedly carries a parent distance")
		}

		if n.leaf {
			count++
			continue
		}

		if e.subtree == nil {
			return 0, 0, fmt.Errorf("mtree: internal entry missing subtree")
		}

		subCount, subDepth, err := checkNode(t, cache, seen, e.subtree, &e.data, false)
		if err != nil {
			return 0, 0, err
		}

		observedRadius := e.subtree.coveringRadius()
		if observedRadius > e.radius+epsilon {
			return 0, 0, fmt.Errorf("mtree: entry radius=%v but subtree requires %v", e.radius, observedRadius)
		}

		if childDepth == -1 {
			childDepth = subDepth
		} else if childDepth != subDepth {
			return 0, 0, fmt.Errorf("mtree: unbalanced tree, leaf depths %d and %d both present", childDepth, subDepth)
		}

		count += subCount
	}

	if n.leaf {
		return count, 0, nil
	}
	return count, childDepth + 1, nil
}

const epsilon = 1e-9

func floatsClose(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= epsilon
}
