// Package unfold implements the sliding-window expand (im2col) and its adjoint
// overlap-add (col2im) for a single-channel strip whose rows are time steps.
//
// The column layout is output-major ("OCF"): output row r holds KernelH
// consecutive source rows, each Width wide, so an output matrix has shape
// [outRows, KernelH*Width].
package unfold

import (
	"fmt"

	"github.com/samcharles93/seqwin/internal/tensor"
)

// Geometry describes the window.  Only unit horizontal stride and zero
// horizontal padding are supported.
type Geometry struct {
	KernelH  int
	StrideH  int
	StrideW  int
	PadUp    int
	PadDown  int
	PadLeft  int
	PadRight int
}

// OutRows returns the number of window positions the geometry yields for a
// strip of height h.
func (g Geometry) OutRows(h int) int {
	n := h + g.PadUp + g.PadDown - g.KernelH
	if n < 0 {
		return 0
	}
	return n/g.StrideH + 1
}

func (g Geometry) check(strip, col *tensor.Mat) {
	if g.KernelH < 1 || g.StrideH < 1 {
		panic(fmt.Sprintf("unfold: invalid kernel height %d or stride %d", g.KernelH, g.StrideH))
	}
	if g.StrideW != 1 || g.PadLeft != 0 || g.PadRight != 0 {
		panic("unfold: only unit horizontal stride without horizontal padding is supported")
	}
	if g.PadUp < 0 || g.PadDown < 0 {
		panic("unfold: negative padding")
	}
	if col.C != g.KernelH*strip.C {
		panic(fmt.Sprintf("unfold: column width %d != kernel %d x width %d", col.C, g.KernelH, strip.C))
	}
	if col.R > g.OutRows(strip.R) {
		panic(fmt.Sprintf("unfold: %d output rows exceed %d window positions", col.R, g.OutRows(strip.R)))
	}
}

// Unfold writes every window slot of col: the source row for output row r and
// kernel row k is r*StrideH + k - PadUp; slots whose source falls outside the
// strip are zeroed.
func Unfold(strip, col tensor.Mat, g Geometry) {
	g.check(&strip, &col)
	w := strip.C
	for r := range col.R {
		dst := col.Row(r)
		for k := range g.KernelH {
			slot := dst[k*w : (k+1)*w]
			src := r*g.StrideH + k - g.PadUp
			if src < 0 || src >= strip.R {
				clear(slot)
				continue
			}
			copy(slot, strip.Row(src))
		}
	}
}

// Fold is the adjoint of Unfold: each in-range slot of col is added into the
// strip row it was read from.
func Fold(strip, col tensor.Mat, g Geometry) {
	g.check(&strip, &col)
	w := strip.C
	for r := range col.R {
		src := col.Row(r)
		for k := range g.KernelH {
			dst := r*g.StrideH + k - g.PadUp
			if dst < 0 || dst >= strip.R {
				continue
			}
			tensor.Add(strip.Row(dst), src[k*w:(k+1)*w])
		}
	}
}
