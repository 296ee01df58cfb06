// The code in this package is derivative of https://github.com/jub0bs/iterutil (all credit to jub0bs).
// Mount of this source code is governed by a MIT License that can be found
// at https://github.com/jub0bs/iterutil/blob/main/LICENSE.

package iterutil

import "iter"

// SeqOf returns a one-shot iterator over the given elements, in order.
func SeqOf[E any](elems ...E) iter.Seq[E] {
	return func(yield func(E) bool) {
		for _, e := range elems {
			if !yield(e) {
				return
			}
		}
	}
}

// Map lazily transforms each element of seq with f.
func Map[A, B any](seq iter.Seq[A], f func(A) B) iter.Seq[B] {
	return func(yield func(B) bool) {
		for a := range seq {
			if !yield(f(a)) {
				return
			}
		}
	}
}

// Collect drains seq into a slice, in order. It takes a single-value
// iter.Seq, so the iter.Seq2 query iterators cannot be passed to it.
func Collect[E any](seq iter.Seq[E]) []E {
	var out []E
	for e := range seq {
		out = append(out, e)
	}
	return out
}
