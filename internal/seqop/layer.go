package seqop

import (
	"fmt"

	"github.com/samcharles93/seqwin/internal/compute"
	"github.com/samcharles93/seqwin/internal/lod"
	"github.com/samcharles93/seqwin/internal/logger"
	"github.com/samcharles93/seqwin/internal/tensor"
)

// Optimizer updates a parameter in place from its gradient and a per-element
// state slice of the same length.
type Optimizer interface {
	Update(param, grad, moment, lr []float32) error
}

// Layer is an Op that owns its padding matrix, the accumulated padding
// gradient and the optimizer state for it.
type Layer struct {
	op      *Op
	width   int
	padding tensor.Mat
	grad    tensor.Mat
	moment  []float32
}

// NewLayer builds a layer for inputs of the given feature width.  Trainable
// padding starts at small reproducible values drawn from seed.
func NewLayer(attrs Attrs, width int, seed int64, log logger.Logger) (*Layer, error) {
	_, padShape, err := InferShape(0, width, attrs)
	if err != nil {
		return nil, err
	}
	op, err := New(attrs, log)
	if err != nil {
		return nil, err
	}
	l := &Layer{
		op:      op,
		width:   width,
		padding: tensor.NewMat(padShape.Rows, padShape.Cols),
		grad:    tensor.NewMat(padShape.Rows, padShape.Cols),
		moment:  make([]float32, padShape.Rows*padShape.Cols),
	}
	tensor.FillRand(&l.padding, seed)
	tensor.Scale(l.padding.Data, 0.1)
	return l, nil
}

// Op returns the wrapped operator.
func (l *Layer) Op() *Op { return l.op }

// Padding returns the live padding matrix.
func (l *Layer) Padding() tensor.Mat { return l.padding }

// SetPadding copies p into the padding matrix.
func (l *Layer) SetPadding(p tensor.Mat) error {
	if !tensor.SameShape(&p, &l.padding) {
		return fmt.Errorf("%w: padding is %dx%d, want %dx%d", ErrShapeMismatch, p.R, p.C, l.padding.R, l.padding.C)
	}
	for i := range p.R {
		copy(l.padding.Row(i), p.Row(i))
	}
	return nil
}

// Params returns the padding matrix and its accumulated gradient.
func (l *Layer) Params() (param, grad tensor.Mat) { return l.padding, l.grad }

// Forward projects in using the layer's padding.
func (l *Layer) Forward(ctx compute.Context, in tensor.Mat, layout lod.Layout) (tensor.Mat, error) {
	if in.C != l.width {
		return tensor.Mat{}, fmt.Errorf("%w: input width %d, layer width %d", ErrShapeMismatch, in.C, l.width)
	}
	return l.op.Forward(ctx, in, layout, l.padding)
}

// Backward returns the input gradient and adds the padding gradient into the
// layer's accumulator.
func (l *Layer) Backward(ctx compute.Context, in tensor.Mat, layout lod.Layout, colGrad tensor.Mat) (tensor.Mat, error) {
	if in.C != l.width {
		return tensor.Mat{}, fmt.Errorf("%w: input width %d, layer width %d", ErrShapeMismatch, in.C, l.width)
	}
	g, err := l.op.Backward(ctx, in, layout, colGrad, true, l.op.attrs.PaddingTrainable)
	if err != nil {
		return tensor.Mat{}, err
	}
	if g.Padding.R > 0 {
		tensor.Add(l.grad.Data, g.Padding.Data)
	}
	return g.Input, nil
}

// ZeroGrad clears the accumulated padding gradient.
func (l *Layer) ZeroGrad() { l.grad.Zero() }

// Step applies one optimizer update to the padding with learning rate lr.
// Layers without trainable padding are left unchanged.
func (l *Layer) Step(opt Optimizer, lr float32) error {
	if !l.op.attrs.PaddingTrainable || len(l.padding.Data) == 0 {
		return nil
	}
	return opt.Update(l.padding.Data, l.grad.Data, l.moment, []float32{lr})
}
