package lmdbm

import (
	"iter"
	"maps"
	"slices"
)

// Pairs returns a pair sequence over entries, in order.
func Pairs(entries ...Entry) iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		for _, e := range entries {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}

// MapPairs returns a pair sequence over m in ascending key order, so that
// a batch built from it is deterministic.
func MapPairs(m map[string][]byte) iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		for _, k := range slices.Sorted(maps.Keys(m)) {
			if !yield([]byte(k), m[k]) {
				return
			}
		}
	}
}

// Concat returns the pairs of each sequence in turn. Passed to
// Store.Update, pairs of later sequences overwrite earlier ones.
func Concat(seqs ...iter.Seq2[[]byte, []byte]) iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		for _, seq := range seqs {
			for k, v := range seq {
				if !yield(k, v) {
					return
				}
			}
		}
	}
}
