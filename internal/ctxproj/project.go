package ctxproj

import (
	"github.com/samcharles93/seqwin/internal/compute"
	"github.com/samcharles93/seqwin/internal/lod"
	"github.com/samcharles93/seqwin/internal/tensor"
	"github.com/samcharles93/seqwin/internal/unfold"
)

// Project writes the context windows of in into col.
//
// col must be [in.R, Length*in.C], contiguous, and zeroed by the caller:
// sequences too short to reach any input row are not touched.  When
// trainable is set, boundary slots are copied from padding, which must have
// at least UpPad+DownPad rows of width in.C.  Sequences are processed
// independently under ctx.
func Project(ctx compute.Context, in tensor.Mat, layout lod.Layout, padding tensor.Mat, col tensor.Mat, trainable bool, w Window) {
	checkWindow(w)
	checkLayout(layout, in.R)
	checkCol(in.R, in.C, &col, w, "output")
	if trainable {
		checkPadding(&padding, in.C, w, "padding")
	}

	g := w.geometry()
	ctx.ParallelFor(layout.NumSeq(), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			span := layout.Span(i)
			out := col.Rows(span.Begin, span.End)
			extract(in, out, span, w, g)
			if trainable {
				applyPadding(out, padding, span.Len(), w)
			}
		}
	})
}

// extract runs the sliding-window expand for one sequence.
func extract(in, out tensor.Mat, span lod.Span, w Window, g unfold.Geometry) {
	begin, end := w.inputRows(span)
	if begin >= end {
		return
	}
	unfold.Unfold(in.Rows(begin, end), out, g)
}

// applyPadding overwrites the boundary slots of one sequence's output with
// padding rows.
func applyPadding(out, padding tensor.Mat, height int, w Window) {
	if height == 0 {
		return
	}
	view := out.Reshape(height*w.Length, out.C/w.Length)
	for slot := range PadSlots(w, height) {
		for j := range slot.Len {
			copy(view.Row(slot.OutRow+j), padding.Row(slot.PadRow+j))
		}
	}
}
