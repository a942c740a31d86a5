// Package order computes sequence numbers for a parent's record set.
//
// Append mode numbers new records after the current maximum; Reindex mode
// rewrites a whole set to the contiguous range 1..N. Neither mode ever
// produces a duplicate value within one set.
package order

import (
	"sort"
)

// Assignment pairs a record with its current and assigned order index.
type Assignment[T any] struct {
	Record T
	From   int
	To     int
}

// Changed reports whether the assignment rewrites the index.
func (a Assignment[T]) Changed() bool {
	return a.From != a.To
}

// KeyFunc extracts the current order index of a record.
type KeyFunc[T any] func(T) int

// MaxIndex returns the largest order index in records, or 0 if there are none.
func MaxIndex[T any](records []T, key KeyFunc[T]) int {
	maxIdx := 0
	for _, r := range records {
		if v := key(r); v > maxIdx {
			maxIdx = v
		}
	}
	return maxIdx
}

// Append assigns currentMax+1, currentMax+2, ... to records in input order.
// A negative currentMax is treated as 0.
func Append[T any](records []T, currentMax int, key KeyFunc[T]) []Assignment[T] {
	if currentMax < 0 {
		currentMax = 0
	}
	out := make([]Assignment[T], len(records))
	for i, r := range records {
		from := 0
		if key != nil {
			from = key(r)
		}
		out[i] = Assignment[T]{Record: r, From: from, To: currentMax + i + 1}
	}
	return out
}

// Reindex sorts records by ascending order index and assigns 1..N.
// Ties keep their input order. The result is in sorted order.
func Reindex[T any](records []T, key KeyFunc[T]) []Assignment[T] {
	out := make([]Assignment[T], len(records))
	for i, r := range records {
		out[i] = Assignment[T]{Record: r, From: key(r)}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].From < out[b].From
	})
	for i := range out {
		out[i].To = i + 1
	}
	return out
}

// Changed drops assignments that keep their current index.
// Callers submit only these so untouched records are not rewritten.
func Changed[T any](assignments []Assignment[T]) []Assignment[T] {
	var out []Assignment[T]
	for _, a := range assignments {
		if a.Changed() {
			out = append(out, a)
		}
	}
	return out
}

// IsContiguous reports whether values are exactly {1..N} in any order.
func IsContiguous(values []int) bool {
	seen := make([]bool, len(values)+1)
	for _, v := range values {
		if v < 1 || v > len(values) || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
