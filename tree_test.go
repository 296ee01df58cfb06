package mtree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// point is the integer 2-vector used throughout §8's seed scenarios.
type point struct{ x, y int }

func euclidean(a, b point) float64 {
	dx := float64(a.x - b.x)
	dy := float64(a.y - b.y)
	return sqrtApprox(dx*dx + dy*dy)
}

// sqrtApprox avoids importing math twice across test files just for one call.
func sqrtApprox(v float64) float64 {
	if v == 0 {
		return 0
	}
	x := v
	for i := 0; i < 50; i++ {
		x = 0.5 * (x + v/x)
	}
	return x
}

func newTestTree(t *testing.T, opts ...Option[point]) *Tree[point] {
	t.Helper()
	tr, err := New[point](euclidean, opts...)
	require.NoError(t, err)
	return tr
}

func TestNewRejectsNilDistanceFunc(t *testing.T) {
	_, err := New[point](nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewRejectsInfeasibleCapacities(t *testing.T) {
	_, err := New[point](euclidean, WithMaxCapacity[point](2), WithMinCapacity[point](3))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// Seed scenario 1: empty tree.
func TestEmptyTreeQueriesYieldNothing(t *testing.T) {
	tr := newTestTree(t)
	q := point{1, 2}

	for range tr.RangeQuery(q, 4) {
		t.Fatal("expected no results from an empty tree")
	}
	for range tr.KNNQuery(q, 4) {
		t.Fatal("expected no results from an empty tree")
	}
	assert.True(t, tr.IsEmpty())
}

// Seed scenario 2: remove on an absent object reports DataNotFound and
// leaves the tree untouched.
func TestRemoveAbsentObjectReportsDataNotFound(t *testing.T) {
	tr := newTestTree(t, WithMinCapacity[point](2), WithMaxCapacity[point](6))
	pts := []point{{4, 44}, {95, 43}, {76, 21}, {64, 53}, {47, 3}, {26, 11}}
	for _, p := range pts {
		require.NoError(t, tr.Add(p))
	}

	err := tr.Remove(point{99, 77})
	assert.ErrorIs(t, err, ErrDataNotFound)
	assert.Equal(t, len(pts), tr.Len())
	require.NoError(t, tr.CheckInvariants())
}

// Seed scenario 3: six distinct insertions that force at least one split,
// with all four quantified invariants checked afterward.
func TestSixInsertionsTriggerSplitAndPreserveInvariants(t *testing.T) {
	tr := newTestTree(t, WithMinCapacity[point](2), WithMaxCapacity[point](4))
	pts := []point{{4, 44}, {95, 43}, {76, 21}, {64, 53}, {47, 3}, {26, 11}}
	for _, p := range pts {
		require.NoError(t, tr.Add(p))
	}

	require.NoError(t, tr.CheckInvariants())
	assert.Equal(t, 6, tr.Len())
}

// Seed scenario 6: duplicate objects are independent entries.
func TestDuplicateObjectLifecycle(t *testing.T) {
	tr := newTestTree(t)
	x := point{7, 7}
	require.NoError(t, tr.Add(x))
	require.NoError(t, tr.Add(x))

	require.NoError(t, tr.Remove(x))
	found := false
	for o := range tr.RangeQuery(x, 0) {
		if o == x {
			found = true
		}
	}
	assert.True(t, found, "one copy of x should still be queryable")
	assert.Equal(t, 1, tr.Len())

	require.NoError(t, tr.Remove(x))
	assert.Equal(t, 0, tr.Len())
	for range tr.RangeQuery(x, 0) {
		t.Fatal("no copies of x should remain queryable")
	}

	err := tr.Remove(x)
	assert.ErrorIs(t, err, ErrDataNotFound)
}

// Seed scenario 5: interleaved add/remove, checking invariants after every
// step under a tight capacity that forces frequent split/merge/redistribute
// activity. This fixed seed is not known to force a root-shrink itself --
// see TestRootShrinkClearsPromotedEntriesParentDistance below for a fixture
// that deliberately drives the root down to one entry via a merge.
func TestInterleavedOperationsPreserveInvariants(t *testing.T) {
	tr := newTestTree(t, WithMinCapacity[point](2), WithMaxCapacity[point](4))

	var live []point
	seed := uint64(12345)
	nextInt := func(n int) int {
		seed = seed*6364136223846793005 + 1442695040888963407
		return int((seed >> 33) % uint64(n))
	}

	for i := 0; i < 150; i++ {
		if len(live) == 0 || nextInt(3) != 0 {
			p := point{nextInt(100), nextInt(100)}
			require.NoError(t, tr.Add(p))
			live = append(live, p)
		} else {
			idx := nextInt(len(live))
			p := live[idx]
			require.NoError(t, tr.Remove(p))
			live = append(live[:idx], live[idx+1:]...)
		}
		require.NoErrorf(t, tr.CheckInvariants(), "after step %d (live=%d)", i, len(live))
		require.Equal(t, len(live), tr.Len())
	}
}

// Regression: a root-size-2-to-1 shrink must clear the promoted child
// node's entries' parent distance exactly like root-grow clears it on the
// way up (Add, via split[0]/split[1].clearParent()). This fixture forces
// a merge (not a redistribute) deep enough to bubble all the way up to a
// root collapse.
func TestRootShrinkClearsPromotedEntriesParentDistance(t *testing.T) {
	tr := newTestTree(t, WithMinCapacity[point](2), WithMaxCapacity[point](4))

	pts := []point{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {10, 10}, {11, 10}, {12, 10}}
	for _, p := range pts {
		require.NoError(t, tr.Add(p))
	}

	for _, p := range []point{{10, 10}, {11, 10}, {2, 0}, {3, 0}} {
		require.NoError(t, tr.Remove(p))
	}

	require.NoError(t, tr.CheckInvariants())
}

func TestRemoveEmptiesRoot(t *testing.T) {
	tr := newTestTree(t)
	p := point{1, 1}
	require.NoError(t, tr.Add(p))
	require.NoError(t, tr.Remove(p))
	assert.True(t, tr.IsEmpty())
	require.NoError(t, tr.CheckInvariants())
}

func TestPoisonedTreeRejectsFurtherOperations(t *testing.T) {
	tr, err := New[point](func(a, b point) float64 { return -1 }, WithMaxCapacity[point](4), WithMinCapacity[point](2))
	require.NoError(t, err)

	pts := []point{{0, 0}, {1, 1}, {2, 2}, {3, 3}}
	for _, p := range pts {
		require.NoError(t, tr.Add(p))
	}

	// The fifth insertion overflows maxCapacity and triggers a split, whose
	// promotion step needs real pairwise distances -- this is where an
	// always-invalid distance function first gets exercised and panics.
	assert.Panics(t, func() { _ = tr.Add(point{4, 4}) })

	err = tr.Add(point{5, 5})
	assert.ErrorIs(t, err, ErrTreePoisoned)

	err = tr.Remove(point{3, 3})
	assert.ErrorIs(t, err, ErrTreePoisoned)

	checkErr := tr.CheckInvariants()
	assert.ErrorIs(t, checkErr, ErrTreePoisoned)
}

func TestUserDistanceFuncPanicPoisonsTree(t *testing.T) {
	boom := errors.New("boom")
	tr, err := New[point](func(a, b point) float64 {
		if a != b {
			panic(boom)
		}
		return 0
	})
	require.NoError(t, err)
	require.NoError(t, tr.Add(point{1, 1}))

	// A root-level leaf entry carries no parent, so Add never invokes the
	// distance function until a query compares it against something else.
	assert.PanicsWithValue(t, boom, func() {
		for range tr.RangeQuery(point{2, 2}, 1) {
		}
	})
	assert.ErrorIs(t, tr.Add(point{3, 3}), ErrTreePoisoned)
}
