package mtree

import "log/slog"

// Option configures a [Tree] at construction time.
type Option[T comparable] func(*Tree[T])

// WithMaxCapacity sets the maximum number of entries a non-root node may
// hold before it splits. minCapacity is derived as max(2, maxCapacity/2);
// [New] rejects the combination if that leaves maxCapacity < 2*minCapacity.
func WithMaxCapacity[T comparable](maxCapacity int) Option[T] {
	return func(t *Tree[T]) {
		t.maxCapacity = maxCapacity
		t.minCapacity = maxCapacity / 2
		if t.minCapacity < 2 {
			t.minCapacity = 2
		}
	}
}

// WithMinCapacity overrides the minCapacity derived by [WithMaxCapacity].
// Most callers do not need this; it exists for tests and fixtures that
// reproduce a specific (minCapacity, maxCapacity) pair from the original
// implementation this package's behavior was checked against.
func WithMinCapacity[T comparable](minCapacity int) Option[T] {
	return func(t *Tree[T]) {
		t.minCapacity = minCapacity
	}
}

// WithSplitStrategy overrides the default [GeneralizedHyperplaneStrategy].
func WithSplitStrategy[T comparable](strategy SplitStrategy[T]) Option[T] {
	return func(t *Tree[T]) {
		t.strategy = strategy
	}
}

// WithLogger attaches a structured logger the tree emits debug-level events
// to at split, merge, redistribute, and root-resize points. The default is
// slog.Default(); pass slog.New(slog.NewTextHandler(io.Discard, nil)) (or an
// equivalent no-op handler) to silence it entirely.
func WithLogger[T comparable](logger *slog.Logger) Option[T] {
	return func(t *Tree[T]) {
		t.logger = logger
	}
}
