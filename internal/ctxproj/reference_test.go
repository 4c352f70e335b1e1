package ctxproj

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/samcharles93/seqwin/internal/lod"
	"github.com/samcharles93/seqwin/internal/tensor"
)

// consistent returns the window with the padding counts a caller derives from
// start and length.
func consistent(start, length int) Window {
	return Window{
		Start:   start,
		Length:  length,
		Stride:  1,
		UpPad:   max(0, -start),
		DownPad: max(0, start+length-1),
	}
}

// padRowFor maps a window position relative to a sequence of height h to a
// padding row, or -1 when the position is inside the sequence.
func padRowFor(w Window, p, h int) int {
	switch {
	case p < 0:
		return w.UpPad + p
	case p >= h:
		return w.UpPad + p - h
	default:
		return -1
	}
}

// refProject is the explicit nested-loop windowing.
func refProject(in tensor.Mat, layout lod.Layout, padding tensor.Mat, trainable bool, w Window) tensor.Mat {
	width := in.C
	col := tensor.NewMat(in.R, w.Cols(width))
	for _, span := range layout.All() {
		h := span.Len()
		for r := range h {
			out := col.Row(span.Begin + r)
			for k := range w.Length {
				slot := out[k*width : (k+1)*width]
				p := r + w.Start + k
				if pr := padRowFor(w, p, h); pr < 0 {
					copy(slot, in.Row(span.Begin+p))
				} else if trainable {
					copy(slot, padding.Row(pr))
				}
			}
		}
	}
	return col
}

// refGrad is the explicit nested-loop adjoint.
func refGrad(colGrad tensor.Mat, layout lod.Layout, trainable bool, w Window) (tensor.Mat, tensor.Mat) {
	width := colGrad.C / w.Length
	inGrad := tensor.NewMat(colGrad.R, width)
	padGrad := tensor.NewMat(w.PadRows(), width)
	for _, span := range layout.All() {
		h := span.Len()
		for r := range h {
			g := colGrad.Row(span.Begin + r)
			for k := range w.Length {
				slot := g[k*width : (k+1)*width]
				p := r + w.Start + k
				if pr := padRowFor(w, p, h); pr < 0 {
					tensor.Add(inGrad.Row(span.Begin+p), slot)
				} else if trainable {
					tensor.Add(padGrad.Row(pr), slot)
				}
			}
		}
	}
	return inGrad, padGrad
}

func randMat(r, c int, seed int64) tensor.Mat {
	m := tensor.NewMat(r, c)
	tensor.FillRand(&m, seed)
	return m
}

func layoutFromLengths(t testing.TB, lengths []int) lod.Layout {
	t.Helper()
	l, err := lod.FromLengths(lengths)
	if err != nil {
		t.Fatalf("layout %v: %v", lengths, err)
	}
	return l
}

func matRows(m tensor.Mat) [][]float32 {
	rows := make([][]float32, m.R)
	for i := range rows {
		rows[i] = m.Row(i)
	}
	return rows
}

func assertMatEqual(t testing.TB, name string, got, want tensor.Mat, opts ...cmp.Option) {
	t.Helper()
	if !tensor.SameShape(&got, &want) {
		t.Fatalf("%s: shape %dx%d want %dx%d", name, got.R, got.C, want.R, want.C)
	}
	opts = append(opts, cmpopts.EquateEmpty())
	if diff := cmp.Diff(matRows(want), matRows(got), opts...); diff != "" {
		t.Fatalf("%s mismatch (-want +got):\n%s", name, diff)
	}
}

func assertMatClose(t testing.TB, name string, got, want tensor.Mat, tol float64) {
	t.Helper()
	assertMatEqual(t, name, got, want, cmpopts.EquateApprox(tol, tol))
}
