package mtree

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by this package. Use [errors.Is] to test for them;
// wrapping functions that return a richer error always wrap one of these.
var (
	// ErrDataNotFound is returned by [Tree.Remove] when no entry matching the
	// given object exists in the tree. The tree is left unchanged.
	ErrDataNotFound = errors.New("mtree: data not found")

	// ErrInvalidConfig is returned by [New] when the requested capacity
	// constraints cannot be satisfied. It is fatal to the instance under
	// construction; no tree is returned alongside it.
	ErrInvalidConfig = errors.New("mtree: invalid configuration")

	// ErrTreePoisoned is returned by [Tree.Add], [Tree.Remove] and
	// [Tree.CheckInvariants] once a prior operation observed the distance
	// function panic or return a NaN, infinite or negative value; on such a
	// tree [Tree.RangeQuery] and [Tree.KNNQuery] yield nothing. A poisoned tree may be in an
	// inconsistent state with respect to the invariants in this package's
	// documentation and must be discarded; there is no repair path.
	ErrTreePoisoned = errors.New("mtree: tree poisoned by a prior failure, discard it")
)

// InvalidConfigError reports which capacity constraint New's arguments
// violated.
type InvalidConfigError struct {
	MinCapacity int
	MaxCapacity int
	Reason      string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("mtree: invalid configuration (minCapacity=%d, maxCapacity=%d): %s", e.MinCapacity, e.MaxCapacity, e.Reason)
}

func (e *InvalidConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func newInvalidConfigError(minCap, maxCap int, reason string) error {
	return &InvalidConfigError{MinCapacity: minCap, MaxCapacity: maxCap, Reason: reason}
}

// nonFiniteDistanceError wraps a distance-function result that breaks the
// metric contract (NaN, or an infinite/negative value), poisoning the tree.
type nonFiniteDistanceError struct {
	value float64
}

func (e *nonFiniteDistanceError) Error() string {
	return fmt.Sprintf("mtree: distance function returned a non-finite or negative value (%v)", e.value)
}

func (e *nonFiniteDistanceError) Unwrap() error {
	return ErrTreePoisoned
}
