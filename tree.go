package mtree

import (
	"fmt"
	"log/slog"
)

// Tree is an M-tree index over objects of type T. The zero value is not
// usable; construct one with [New].
type Tree[T comparable] struct {
	root        *node[T]
	minCapacity int
	maxCapacity int
	distanceFn  DistanceFunc[T]
	strategy    SplitStrategy[T]
	logger      *slog.Logger
	size        int
	poisoned    bool
}

const (
	defaultMaxCapacity = 8
	defaultMinCapacity = 4
)

// New constructs an empty [Tree] using distanceFn to compare objects. By
// default it uses a maximum node capacity of 8 (minimum 4) and
// [GeneralizedHyperplaneStrategy]; both are overridable via opts.
//
// New returns an [InvalidConfigError] (wrapping [ErrInvalidConfig]) if the
// resulting minCapacity is below 2 or maxCapacity is below 2*minCapacity.
// That bound lets every split produce two groups of at least minCapacity
// and lets an underflowing node always merge with a minCapacity-sized
// sibling into one node.
func New[T comparable](distanceFn DistanceFunc[T], opts ...Option[T]) (*Tree[T], error) {
	if distanceFn == nil {
		return nil, newInvalidConfigError(0, 0, "distance function must not be nil")
	}

	t := &Tree[T]{
		minCapacity: defaultMinCapacity,
		maxCapacity: defaultMaxCapacity,
		distanceFn:  distanceFn,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.strategy == nil {
		t.strategy = GeneralizedHyperplaneStrategy[T]{}
	}

	if t.minCapacity < 2 {
		return nil, newInvalidConfigError(t.minCapacity, t.maxCapacity, "minCapacity must be at least 2")
	}
	if t.maxCapacity < 2*t.minCapacity {
		return nil, newInvalidConfigError(t.minCapacity, t.maxCapacity, "maxCapacity must be at least 2*minCapacity")
	}

	return t, nil
}

// Len reports the number of objects currently stored.
func (t *Tree[T]) Len() int {
	return t.size
}

// IsEmpty reports whether the tree holds no objects.
func (t *Tree[T]) IsEmpty() bool {
	return t.size == 0
}

func (t *Tree[T]) logDebug(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Debug(msg, args...)
	}
}

// poisonRecover is deferred at the top of every exported mutating and
// querying method. A panicking [DistanceFunc] -- whether it panics directly
// or is flagged by [cachedDistanceFunction.distance] for returning a
// non-finite or negative value -- marks the tree poisoned and re-panics so
// the original failure still reaches the caller unchanged; recovering here
// only buys us the chance to flip the flag first.
func (t *Tree[T]) poisonRecover() {
	if r := recover(); r != nil {
		t.poisoned = true
		panic(r)
	}
}

func (t *Tree[T]) checkPoisoned() error {
	if t.poisoned {
		return fmt.Errorf("mtree: %w", ErrTreePoisoned)
	}
	return nil
}

// Add inserts obj into the tree, growing it by exactly one object.
// Duplicate objects (per T's == ) are permitted and stored as distinct
// entries; Add never reports an object as already present.
func (t *Tree[T]) Add(obj T) error {
	defer t.poisonRecover()
	if err := t.checkPoisoned(); err != nil {
		return err
	}

	cache := newCachedDistanceFunction(t.distanceFn)

	if t.root == nil {
		t.root = &node[T]{leaf: true}
	}

	split, overflowed := t.root.addData(t, cache, nil, obj)
	if overflowed {
		split[0].clearParent()
		split[1].clearParent()
		t.root = &node[T]{entries: []*entry[T]{split[0], split[1]}}
		t.logDebug("root grew", slog.Int("size", t.size+1))
	}

	t.size++
	return nil
}

// Remove deletes one entry matching obj from the tree. If multiple stored
// objects compare equal under T's ==, an arbitrary one of them is removed.
// It returns [ErrDataNotFound] (and leaves the tree unchanged) if no
// matching entry exists.
func (t *Tree[T]) Remove(obj T) error {
	defer t.poisonRecover()
	if err := t.checkPoisoned(); err != nil {
		return err
	}

	if t.root == nil {
		return fmt.Errorf("mtree: %w", ErrDataNotFound)
	}

	cache := newCachedDistanceFunction(t.distanceFn)
	underflowed, found := t.root.removeData(t, cache, nil, obj)
	if !found {
		return fmt.Errorf("mtree: %w", ErrDataNotFound)
	}
	t.size--

	if underflowed && !t.root.leaf && t.root.size() == 1 {
		t.root = t.root.entries[0].subtree
		for _, e := range t.root.entries {
			e.clearParent()
		}
		t.logDebug("root shrank", slog.Int("size", t.size))
	}
	if t.root.leaf && t.root.size() == 0 {
		t.root = nil
	}

	return nil
}
