// Package ctxproj implements context projection over packed sequence batches.
//
// Every output row is the concatenation of Length input rows starting Start
// rows away from the current time step.  Rows of the window that fall outside
// the owning sequence are either left at zero or, when padding is trainable,
// taken from a small padding matrix shared by the whole batch:
//
//	in (lod [0 3 4], width 2)      col (Start -1, Length 3)
//	a1 a2                          w1 w2 a1 a2 b1 b2
//	b1 b2                          a1 a2 b1 b2 c1 c2
//	c1 c2                          b1 b2 c1 c2 w3 w4
//	d1 d2                          w1 w2 d1 d2 w3 w4
//
// Project is the forward pass and ProjectGrad its adjoint.  Both assume
// validated inputs; shape violations panic.
package ctxproj

import (
	"fmt"

	"github.com/samcharles93/seqwin/internal/lod"
	"github.com/samcharles93/seqwin/internal/tensor"
	"github.com/samcharles93/seqwin/internal/unfold"
)

// Window holds the projection parameters.  UpPad and DownPad are supplied by
// the caller; for a consistent window they are max(0, -Start) and
// max(0, Start+Length-1).  Only a unit Stride is supported.
type Window struct {
	Start   int
	Length  int
	Stride  int
	UpPad   int
	DownPad int
}

// Cols returns the output width for a feature width.
func (w Window) Cols(width int) int { return w.Length * width }

// PadRows returns the number of rows of the padding matrix.
func (w Window) PadRows() int { return w.UpPad + w.DownPad }

func (w Window) geometry() unfold.Geometry {
	return unfold.Geometry{
		KernelH: w.Length,
		StrideH: w.Stride,
		StrideW: 1,
		PadUp:   w.UpPad,
		PadDown: w.DownPad,
	}
}

// inputRows returns the strip of sequence rows the window can read from.
func (w Window) inputRows(span lod.Span) (int, int) {
	return span.Begin + max(w.Start, 0), span.End
}

func checkWindow(w Window) {
	if w.Length < 1 || w.Stride != 1 || w.UpPad < 0 || w.DownPad < 0 {
		panic(fmt.Sprintf("ctxproj: invalid window %+v", w))
	}
}

func checkCol(rows, width int, col *tensor.Mat, w Window, what string) {
	if col.R != rows || col.C != w.Cols(width) {
		panic(fmt.Sprintf("ctxproj: %s is %dx%d, want %dx%d", what, col.R, col.C, rows, w.Cols(width)))
	}
	if !col.Contiguous() {
		panic(fmt.Sprintf("ctxproj: %s must be contiguous", what))
	}
}

func checkPadding(pad *tensor.Mat, width int, w Window, what string) {
	if pad.R < w.PadRows() || pad.C != width {
		panic(fmt.Sprintf("ctxproj: %s is %dx%d, want at least %dx%d", what, pad.R, pad.C, w.PadRows(), width))
	}
}

func checkLayout(layout lod.Layout, rows int) {
	if layout.TotalRows() != rows {
		panic(fmt.Sprintf("ctxproj: layout covers %d rows, matrix has %d", layout.TotalRows(), rows))
	}
}
