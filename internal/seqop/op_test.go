package seqop

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/samcharles93/seqwin/internal/compute"
	"github.com/samcharles93/seqwin/internal/ctxproj"
	"github.com/samcharles93/seqwin/internal/lod"
	"github.com/samcharles93/seqwin/internal/logger"
	"github.com/samcharles93/seqwin/internal/optim"
	"github.com/samcharles93/seqwin/internal/tensor"
)

func TestAttrsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		attrs Attrs
		ok    bool
	}{
		{"defaults", NewAttrs(-1, 3, false), true},
		{"single slot", NewAttrs(0, 1, true), true},
		{"zero length", NewAttrs(0, 0, false), false},
		{"negative length", NewAttrs(2, -1, false), false},
		{"stride", Attrs{ContextLength: 3, ContextStride: 2}, false},
		{"unset stride", Attrs{ContextLength: 3}, false},
		{"max length", NewAttrs(0, MaxContextLength, false), true},
		{"length past max", NewAttrs(0, MaxContextLength+1, false), false},
		{"wrapping length", NewAttrs(0, 1<<62, false), false},
		{"start past max", NewAttrs(MaxContextLength+1, 1, false), false},
		{"start below min", NewAttrs(-MaxContextLength-1, 1, false), false},
	}
	for _, tc := range tests {
		err := tc.attrs.Validate()
		if tc.ok != (err == nil) {
			t.Fatalf("%s: got %v", tc.name, err)
		}
		if err != nil && !errors.Is(err, ErrInvalidAttr) {
			t.Fatalf("%s: expected ErrInvalidAttr, got %v", tc.name, err)
		}
	}
}

func TestAttrsWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		start, length int
		want          ctxproj.Window
	}{
		{-1, 3, ctxproj.Window{Start: -1, Length: 3, Stride: 1, UpPad: 1, DownPad: 1}},
		{0, 1, ctxproj.Window{Start: 0, Length: 1, Stride: 1}},
		{-4, 2, ctxproj.Window{Start: -4, Length: 2, Stride: 1, UpPad: 4}},
		{2, 3, ctxproj.Window{Start: 2, Length: 3, Stride: 1, DownPad: 4}},
	}
	for _, tc := range tests {
		if diff := cmp.Diff(tc.want, NewAttrs(tc.start, tc.length, true).Window()); diff != "" {
			t.Fatalf("start=%d length=%d (-want +got):\n%s", tc.start, tc.length, diff)
		}
	}
}

func TestInferShape(t *testing.T) {
	t.Parallel()

	out, pad, err := InferShape(7, 4, NewAttrs(-2, 5, true))
	if err != nil {
		t.Fatalf("InferShape: %v", err)
	}
	if out != (Shape{Rows: 7, Cols: 20}) || pad != (Shape{Rows: 4, Cols: 4}) {
		t.Fatalf("shapes: got out=%v pad=%v", out, pad)
	}

	_, pad, err = InferShape(7, 4, NewAttrs(-2, 5, false))
	if err != nil || pad != (Shape{}) {
		t.Fatalf("untrainable padding shape: got %v, %v", pad, err)
	}
	if _, _, err := InferShape(7, 4, NewAttrs(0, 0, false)); !errors.Is(err, ErrInvalidAttr) {
		t.Fatalf("expected ErrInvalidAttr, got %v", err)
	}
	if _, _, err := InferShape(-1, 4, NewAttrs(0, 1, false)); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
	for _, tc := range []struct {
		rows, width int
		attrs       Attrs
	}{
		{2, 8192, NewAttrs(0, MaxContextLength, false)},
		{1 << 20, 1 << 10, NewAttrs(-1, 3, false)},
		{1 << 40, 1 << 40, NewAttrs(0, 1, false)},
		{0, MaxElements, NewAttrs(-1, 3, true)},
	} {
		if _, _, err := InferShape(tc.rows, tc.width, tc.attrs); !errors.Is(err, ErrShapeMismatch) {
			t.Fatalf("rows=%d width=%d: expected ErrShapeMismatch, got %v", tc.rows, tc.width, err)
		}
	}
}

func TestForwardRejectsOversizedOutput(t *testing.T) {
	t.Parallel()

	op, err := New(NewAttrs(0, MaxContextLength, false), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in := tensor.NewMat(2, 4096)
	layout := lod.MustNew(0, 1, 2)
	if _, err := op.Forward(compute.Serial(), in, layout, tensor.Mat{}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("Forward: expected ErrShapeMismatch, got %v", err)
	}
	if _, err := op.Backward(compute.Serial(), in, layout, tensor.Mat{}, true, false); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("Backward: expected ErrShapeMismatch, got %v", err)
	}
}

func goldenInput() (tensor.Mat, lod.Layout, tensor.Mat) {
	in := tensor.NewMatFromData(4, 2, []float32{1, 2, 3, 4, 5, 6, 7, 8})
	pad := tensor.NewMatFromData(2, 2, []float32{10, 20, 30, 40})
	return in, lod.MustNew(0, 3, 4), pad
}

func TestOpForward(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	op, err := New(NewAttrs(-1, 3, true), logger.JSON(&buf, slog.LevelDebug))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in, layout, pad := goldenInput()
	col, err := op.Forward(compute.Serial(), in, layout, pad)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	want := []float32{
		10, 20, 1, 2, 3, 4,
		1, 2, 3, 4, 5, 6,
		3, 4, 5, 6, 30, 40,
		10, 20, 7, 8, 30, 40,
	}
	if diff := cmp.Diff(want, col.Data); diff != "" {
		t.Fatalf("forward mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(buf.String(), `"sequences":2`) {
		t.Fatalf("expected forward debug record, got: %s", buf.String())
	}
}

func TestOpForwardErrors(t *testing.T) {
	t.Parallel()

	op, err := New(NewAttrs(-1, 3, true), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in, layout, pad := goldenInput()
	tests := []struct {
		name   string
		in     tensor.Mat
		layout lod.Layout
		pad    tensor.Mat
		want   error
	}{
		{"missing boundaries", in, lod.Layout{}, pad, ErrMissingInput},
		{"row mismatch", in, lod.MustNew(0, 3), pad, ErrShapeMismatch},
		{"padding rows", in, layout, tensor.NewMat(3, 2), ErrShapeMismatch},
		{"padding width", in, layout, tensor.NewMat(2, 3), ErrShapeMismatch},
		{"missing padding", in, layout, tensor.Mat{R: 2, C: 2, Stride: 2}, ErrMissingInput},
		{"missing input", tensor.Mat{R: 4, C: 2, Stride: 2}, layout, pad, ErrMissingInput},
	}
	for _, tc := range tests {
		if _, err := op.Forward(compute.Serial(), tc.in, tc.layout, tc.pad); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, err, tc.want)
		}
	}

	_, err = op.Forward(compute.Serial(), in, lod.MustNew(0, 3), pad)
	if !errors.Is(err, lod.ErrRowMismatch) {
		t.Fatalf("row mismatch should wrap lod.ErrRowMismatch, got %v", err)
	}
	if _, err := New(NewAttrs(0, 0, false), nil); !errors.Is(err, ErrInvalidAttr) {
		t.Fatalf("New: expected ErrInvalidAttr, got %v", err)
	}
}

func TestOpForwardIgnoresPaddingWhenFixed(t *testing.T) {
	t.Parallel()

	op, err := New(NewAttrs(-1, 3, false), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in, layout, _ := goldenInput()
	col, err := op.Forward(compute.Serial(), in, layout, tensor.Mat{})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	want := []float32{
		0, 0, 1, 2, 3, 4,
		1, 2, 3, 4, 5, 6,
		3, 4, 5, 6, 0, 0,
		0, 0, 7, 8, 0, 0,
	}
	if diff := cmp.Diff(want, col.Data); diff != "" {
		t.Fatalf("forward mismatch (-want +got):\n%s", diff)
	}
}

func TestOpBackwardFlags(t *testing.T) {
	t.Parallel()

	in, layout, _ := goldenInput()
	colGrad := tensor.NewMat(4, 6)
	tensor.Fill(colGrad.Data, 1)

	for _, trainable := range []bool{false, true} {
		op, err := New(NewAttrs(-1, 3, trainable), nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		for _, needInput := range []bool{false, true} {
			for _, needPad := range []bool{false, true} {
				g, err := op.Backward(compute.Serial(), in, layout, colGrad, needInput, needPad)
				if err != nil {
					t.Fatalf("Backward: %v", err)
				}
				if got := g.Input.R > 0; got != needInput {
					t.Fatalf("trainable=%v input=%v pad=%v: input grad present=%v", trainable, needInput, needPad, got)
				}
				if got, want := g.Padding.R > 0, needPad && trainable; got != want {
					t.Fatalf("trainable=%v input=%v pad=%v: padding grad present=%v", trainable, needInput, needPad, got)
				}
				if needInput {
					if diff := cmp.Diff([]float32{2, 2, 3, 3, 2, 2, 1, 1}, g.Input.Data); diff != "" {
						t.Fatalf("input grad mismatch (-want +got):\n%s", diff)
					}
				}
				if needPad && trainable {
					if diff := cmp.Diff([]float32{2, 2, 2, 2}, g.Padding.Data); diff != "" {
						t.Fatalf("padding grad mismatch (-want +got):\n%s", diff)
					}
				}
			}
		}
	}
}

func TestOpBackwardErrors(t *testing.T) {
	t.Parallel()

	op, err := New(NewAttrs(-1, 3, true), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in, layout, _ := goldenInput()
	if _, err := op.Backward(compute.Serial(), in, layout, tensor.NewMat(4, 4), true, true); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("narrow gradient: got %v", err)
	}
	if _, err := op.Backward(compute.Serial(), in, layout, tensor.Mat{R: 4, C: 6, Stride: 6}, true, true); !errors.Is(err, ErrMissingInput) {
		t.Fatalf("missing gradient: got %v", err)
	}
	if _, err := op.Backward(compute.Serial(), in, lod.MustNew(0, 1, 2), tensor.NewMat(4, 6), true, true); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("layout mismatch: got %v", err)
	}
}

func TestOpBackwardStridedGradient(t *testing.T) {
	t.Parallel()

	op, err := New(NewAttrs(-1, 3, true), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in, layout, _ := goldenInput()
	wide := tensor.NewMat(4, 8)
	tensor.Fill(wide.Data, 1)
	strided := tensor.Mat{R: 4, C: 6, Stride: 8, Data: wide.Data}

	g, err := op.Backward(compute.Serial(), in, layout, strided, true, false)
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}
	if diff := cmp.Diff([]float32{2, 2, 3, 3, 2, 2, 1, 1}, g.Input.Data); diff != "" {
		t.Fatalf("input grad mismatch (-want +got):\n%s", diff)
	}
}

func TestLayerTrainsPadding(t *testing.T) {
	t.Parallel()

	attrs := NewAttrs(-2, 4, true)
	layout := lod.MustNew(0, 5, 6, 6, 10)
	in := tensor.NewMat(10, 3)
	tensor.FillRand(&in, 1)

	target, err := NewLayer(attrs, 3, 99, nil)
	if err != nil {
		t.Fatalf("NewLayer: %v", err)
	}
	pad := target.Padding()
	tensor.FillRand(&pad, 5)
	want, err := target.Forward(compute.Serial(), in, layout)
	if err != nil {
		t.Fatalf("target Forward: %v", err)
	}

	layer, err := NewLayer(attrs, 3, 7, nil)
	if err != nil {
		t.Fatalf("NewLayer: %v", err)
	}
	opt := optim.NewDecayedAdagrad()
	loss := func() (float64, tensor.Mat) {
		out, err := layer.Forward(compute.Serial(), in, layout)
		if err != nil {
			t.Fatalf("Forward: %v", err)
		}
		tensor.Axpy(out.Data, -1, want.Data)
		return 0.5 * tensor.MatDot(&out, &out), out
	}

	initial, _ := loss()
	for range 300 {
		_, diff := loss()
		layer.ZeroGrad()
		if _, err := layer.Backward(compute.Serial(), in, layout, diff); err != nil {
			t.Fatalf("Backward: %v", err)
		}
		if err := layer.Step(opt, 0.02); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	final, _ := loss()
	if final > 0.05*initial {
		t.Fatalf("loss did not shrink: initial %v final %v", initial, final)
	}
}

func TestLayerFixedPaddingStepIsNoop(t *testing.T) {
	t.Parallel()

	layer, err := NewLayer(NewAttrs(-1, 3, false), 2, 1, nil)
	if err != nil {
		t.Fatalf("NewLayer: %v", err)
	}
	param, grad := layer.Params()
	if param.R != 0 || grad.R != 0 {
		t.Fatalf("fixed padding has parameters: %dx%d", param.R, param.C)
	}
	if err := layer.Step(optim.NewDecayedAdagrad(), 1); err != nil {
		t.Fatalf("Step: %v", err)
	}
	in, layout, _ := goldenInput()
	if _, err := layer.Forward(compute.Serial(), tensor.NewMat(4, 3), layout); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("width mismatch: got %v", err)
	}
	if _, err := layer.Forward(compute.Serial(), in, layout); err != nil {
		t.Fatalf("Forward: %v", err)
	}
}

func TestLayerSetPadding(t *testing.T) {
	t.Parallel()

	layer, err := NewLayer(NewAttrs(-1, 3, true), 2, 1, nil)
	if err != nil {
		t.Fatalf("NewLayer: %v", err)
	}
	_, _, pad := goldenInput()
	if err := layer.SetPadding(pad); err != nil {
		t.Fatalf("SetPadding: %v", err)
	}
	in, layout, _ := goldenInput()
	col, err := layer.Forward(compute.Serial(), in, layout)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if got := col.Row(3); got[0] != 10 || got[5] != 40 {
		t.Fatalf("padding not applied: %v", got)
	}
	if err := layer.SetPadding(tensor.NewMat(3, 2)); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("SetPadding shape: got %v", err)
	}
}
