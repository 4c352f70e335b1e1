// Package lod describes how variable-length sequences are packed into the rows
// of a single matrix.  A Layout holds the level-0 offsets: sequence i owns rows
// [Offsets[i], Offsets[i+1]).
package lod

import (
	"errors"
	"fmt"
	"iter"
)

var (
	ErrEmptyLayout  = errors.New("lod: offsets must contain at least one entry")
	ErrBadStart     = errors.New("lod: first offset must be zero")
	ErrNonMonotonic = errors.New("lod: offsets must be non-decreasing")
	ErrRowMismatch  = errors.New("lod: last offset does not match row count")
)

// Span is the half-open row range of one sequence.
type Span struct {
	Begin, End int
}

// Len returns the number of rows in the span.
func (s Span) Len() int { return s.End - s.Begin }

// Layout is a read-only view over sequence offsets.  The zero value is an
// empty batch with no sequences.
type Layout struct {
	offsets []int
}

// New validates offsets and returns a Layout that shares the slice.  Callers
// must not mutate offsets afterwards.
func New(offsets []int) (Layout, error) {
	if len(offsets) == 0 {
		return Layout{}, ErrEmptyLayout
	}
	if offsets[0] != 0 {
		return Layout{}, fmt.Errorf("%w: got %d", ErrBadStart, offsets[0])
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return Layout{}, fmt.Errorf("%w: offsets[%d]=%d < offsets[%d]=%d",
				ErrNonMonotonic, i, offsets[i], i-1, offsets[i-1])
		}
	}
	return Layout{offsets: offsets}, nil
}

// MustNew is like New but panics on invalid offsets.  Intended for tests and
// literals.
func MustNew(offsets ...int) Layout {
	l, err := New(offsets)
	if err != nil {
		panic(err)
	}
	return l
}

// FromLengths builds a Layout from per-sequence lengths.
func FromLengths(lengths []int) (Layout, error) {
	offsets := make([]int, len(lengths)+1)
	for i, n := range lengths {
		if n < 0 {
			return Layout{}, fmt.Errorf("%w: negative length %d for sequence %d", ErrNonMonotonic, n, i)
		}
		offsets[i+1] = offsets[i] + n
	}
	return Layout{offsets: offsets}, nil
}

// IsZero reports whether the layout was never built, as opposed to a batch
// of zero sequences.
func (l Layout) IsZero() bool { return l.offsets == nil }

// NumSeq returns the number of sequences.
func (l Layout) NumSeq() int {
	if len(l.offsets) == 0 {
		return 0
	}
	return len(l.offsets) - 1
}

// TotalRows returns the row count covered by the layout.
func (l Layout) TotalRows() int {
	if len(l.offsets) == 0 {
		return 0
	}
	return l.offsets[len(l.offsets)-1]
}

// Span returns the row range of sequence i.
func (l Layout) Span(i int) Span {
	return Span{Begin: l.offsets[i], End: l.offsets[i+1]}
}

// Len returns the length of sequence i.
func (l Layout) Len(i int) int {
	return l.offsets[i+1] - l.offsets[i]
}

// MaxLen returns the longest sequence length, or zero for an empty batch.
func (l Layout) MaxLen() int {
	longest := 0
	for i := range l.NumSeq() {
		longest = max(longest, l.Len(i))
	}
	return longest
}

// Offsets returns a copy of the underlying offsets.
func (l Layout) Offsets() []int {
	out := make([]int, len(l.offsets))
	copy(out, l.offsets)
	return out
}

// All yields every sequence index with its span, in order.
func (l Layout) All() iter.Seq2[int, Span] {
	return func(yield func(int, Span) bool) {
		for i := range l.NumSeq() {
			if !yield(i, l.Span(i)) {
				return
			}
		}
	}
}

// CheckRows reports whether the layout exactly covers rows rows.
func (l Layout) CheckRows(rows int) error {
	if total := l.TotalRows(); total != rows {
		return fmt.Errorf("%w: offsets end at %d, matrix has %d rows", ErrRowMismatch, total, rows)
	}
	return nil
}
