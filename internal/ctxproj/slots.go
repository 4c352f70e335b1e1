package ctxproj

import "iter"

// PadSlot is one contiguous run of window slots filled from the padding
// matrix.  OutRow indexes the sequence's output viewed as [height*Length,
// width] rows; PadRow indexes the padding matrix.  Rows
// [OutRow, OutRow+Len) pair with padding rows [PadRow, PadRow+Len).
type PadSlot struct {
	OutRow int
	PadRow int
	Len    int
}

// PadSlots yields the boundary slots of one sequence of the given height.
// The sequence is finite and can be ranged over any number of times.
func PadSlots(w Window, height int) iter.Seq[PadSlot] {
	return func(yield func(PadSlot) bool) {
		if !upSlots(w, height, yield) {
			return
		}
		downSlots(w, height, yield)
	}
}

// upSlots covers rows whose window starts before the sequence.
func upSlots(w Window, height int, yield func(PadSlot) bool) bool {
	if w.UpPad <= 0 {
		return true
	}
	l := w.Length
	for k := range min(w.UpPad, height) {
		size := l
		if k+l >= w.UpPad {
			size = w.UpPad - k
		}
		if !yield(PadSlot{OutRow: k * l, PadRow: k, Len: size}) {
			return false
		}
	}
	return true
}

// downSlots covers rows whose window ends past the sequence.  The slot is
// right-aligned in the output row; once a full window of padding is reached
// the padding index slides by one per row.
func downSlots(w Window, height int, yield func(PadSlot) bool) bool {
	if w.DownPad <= 0 {
		return true
	}
	l, s := w.Length, w.Start
	beginRow := max(0, height-s-l+1) + 1
	padBegin := max(0, s-height)

	size := 1
	if height-s < l {
		size = l - (height - s)
	}
	if s >= height {
		size = l
	}
	idx := padBegin
	for t := 0; beginRow+t <= height; t, size = t+1, size+1 {
		if s >= height {
			size = l
		}
		if size > l {
			size = l
			idx++
		}
		if padBegin > 0 || height == s {
			idx = padBegin + t
		}
		end := (beginRow + t) * l
		if !yield(PadSlot{OutRow: end - size, PadRow: w.UpPad + idx, Len: size}) {
			return false
		}
	}
	return true
}
