package ctxproj

import (
	"github.com/samcharles93/seqwin/internal/compute"
	"github.com/samcharles93/seqwin/internal/lod"
	"github.com/samcharles93/seqwin/internal/tensor"
	"github.com/samcharles93/seqwin/internal/unfold"
)

// ProjectGrad accumulates the adjoint of Project.
//
// colGrad is the gradient of the output, [rows, Length*width] and
// contiguous.  When needInput is set, inGrad ([rows, width]) receives the
// overlap-add of every window slot back into the row it was read from.  When
// needPad and trainable are both set, padGrad receives the sum of every
// boundary slot that read the corresponding padding row.  Both targets are
// accumulated into, never overwritten.
func ProjectGrad(ctx compute.Context, inGrad, padGrad, colGrad tensor.Mat, layout lod.Layout, trainable bool, w Window, needInput, needPad bool) {
	checkWindow(w)
	rows := layout.TotalRows()
	width := colGrad.C / w.Length
	checkCol(rows, width, &colGrad, w, "output gradient")

	if needInput {
		if inGrad.R != rows || inGrad.C != width {
			panic("ctxproj: input gradient shape does not match layout")
		}
		foldInput(ctx, inGrad, colGrad, layout, w)
	}
	if needPad && trainable {
		checkPadding(&padGrad, width, w, "padding gradient")
		accumulatePadding(ctx, padGrad, colGrad, layout, w)
	}
}

func foldInput(ctx compute.Context, inGrad, colGrad tensor.Mat, layout lod.Layout, w Window) {
	g := w.geometry()
	ctx.ParallelFor(layout.NumSeq(), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			span := layout.Span(i)
			begin, end := w.inputRows(span)
			if begin >= end {
				continue
			}
			unfold.Fold(inGrad.Rows(begin, end), colGrad.Rows(span.Begin, span.End), g)
		}
	})
}

// accumulatePadding sums boundary slots into padGrad.  Several sequences
// read the same padding row, so rows are partitioned by padding index and
// each worker adds its rows in sequence order.  The result does not depend on
// the number of workers.
func accumulatePadding(ctx compute.Context, padGrad, colGrad tensor.Mat, layout lod.Layout, w Window) {
	// refs[p] lists rows of the flattened [rows*Length, width] gradient.
	refs := make([][]int, w.PadRows())
	for _, span := range layout.All() {
		base := span.Begin * w.Length
		for slot := range PadSlots(w, span.Len()) {
			for j := range slot.Len {
				p := slot.PadRow + j
				refs[p] = append(refs[p], base+slot.OutRow+j)
			}
		}
	}

	flat := colGrad.Reshape(colGrad.R*w.Length, colGrad.C/w.Length)
	ctx.ParallelFor(len(refs), func(lo, hi int) {
		for p := lo; p < hi; p++ {
			dst := padGrad.Row(p)
			for _, r := range refs[p] {
				tensor.Add(dst, flat.Row(r))
			}
		}
	})
}
