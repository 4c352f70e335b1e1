package seqop

import (
	"fmt"

	"github.com/samcharles93/seqwin/internal/compute"
	"github.com/samcharles93/seqwin/internal/ctxproj"
	"github.com/samcharles93/seqwin/internal/lod"
	"github.com/samcharles93/seqwin/internal/logger"
	"github.com/samcharles93/seqwin/internal/tensor"
)

// Op runs context projection on validated inputs.
type Op struct {
	attrs  Attrs
	window ctxproj.Window
	log    logger.Logger
}

// New validates attrs and returns an operator.  A nil logger discards output.
func New(attrs Attrs, log logger.Logger) (*Op, error) {
	if err := attrs.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Op{
		attrs:  attrs,
		window: attrs.Window(),
		log:    log.With("op", "context_projection"),
	}, nil
}

// Attrs returns the operator attributes.
func (o *Op) Attrs() Attrs { return o.attrs }

// Window returns the derived kernel parameters.
func (o *Op) Window() ctxproj.Window { return o.window }

// Grads holds the gradients Backward produced.  A field is the zero Mat when
// it was not requested.
type Grads struct {
	Input   tensor.Mat
	Padding tensor.Mat
}

// Forward returns the projected matrix for in.  padding is only read when
// the attributes mark it trainable.
func (o *Op) Forward(ctx compute.Context, in tensor.Mat, layout lod.Layout, padding tensor.Mat) (tensor.Mat, error) {
	if err := o.checkInput(in, layout); err != nil {
		return tensor.Mat{}, err
	}
	if o.attrs.PaddingTrainable {
		if err := o.checkPadding(&padding, in.C, "padding"); err != nil {
			return tensor.Mat{}, err
		}
	}

	col := tensor.NewMat(in.R, o.window.Cols(in.C))
	ctxproj.Project(ctx, in, layout, padding, col, o.attrs.PaddingTrainable, o.window)
	o.log.Debug("forward",
		"sequences", layout.NumSeq(),
		"rows", in.R,
		"width", in.C,
		"trainable", o.attrs.PaddingTrainable,
		"backend", ctx.Name(),
	)
	return col, nil
}

// Backward returns the requested gradients for the output gradient colGrad.
// in supplies the input shape.  The padding gradient is only produced when
// needPad is set and padding is trainable.
func (o *Op) Backward(ctx compute.Context, in tensor.Mat, layout lod.Layout, colGrad tensor.Mat, needInput, needPad bool) (Grads, error) {
	if err := o.checkInput(in, layout); err != nil {
		return Grads{}, err
	}
	want := Shape{Rows: in.R, Cols: o.window.Cols(in.C)}
	if colGrad.R != want.Rows || colGrad.C != want.Cols {
		return Grads{}, fmt.Errorf("%w: output gradient is %dx%d, want %s", ErrShapeMismatch, colGrad.R, colGrad.C, want)
	}
	if colGrad.Data == nil && want.Rows*want.Cols > 0 {
		return Grads{}, fmt.Errorf("%w: output gradient", ErrMissingInput)
	}
	if !colGrad.Contiguous() {
		colGrad = colGrad.Clone()
	}

	var g Grads
	needPad = needPad && o.attrs.PaddingTrainable
	if needInput {
		g.Input = tensor.NewMat(in.R, in.C)
	}
	if needPad {
		g.Padding = tensor.NewMat(o.window.PadRows(), in.C)
	}
	if !needInput && !needPad {
		return g, nil
	}
	ctxproj.ProjectGrad(ctx, g.Input, g.Padding, colGrad, layout, o.attrs.PaddingTrainable, o.window, needInput, needPad)
	o.log.Debug("backward",
		"sequences", layout.NumSeq(),
		"rows", in.R,
		"input_grad", needInput,
		"padding_grad", needPad,
		"backend", ctx.Name(),
	)
	return g, nil
}

func (o *Op) checkInput(in tensor.Mat, layout lod.Layout) error {
	if layout.IsZero() {
		return fmt.Errorf("%w: sequence boundaries", ErrMissingInput)
	}
	if in.Data == nil && in.R*in.C > 0 {
		return fmt.Errorf("%w: input", ErrMissingInput)
	}
	if err := layout.CheckRows(in.R); err != nil {
		return fmt.Errorf("%w: %w", ErrShapeMismatch, err)
	}
	_, _, err := InferShape(in.R, in.C, o.attrs)
	return err
}

func (o *Op) checkPadding(pad *tensor.Mat, width int, name string) error {
	want := Shape{Rows: o.window.PadRows(), Cols: width}
	if pad.R != want.Rows || pad.C != want.Cols {
		return fmt.Errorf("%w: %s is %dx%d, want %s", ErrShapeMismatch, name, pad.R, pad.C, want)
	}
	if pad.Data == nil && want.Rows*want.Cols > 0 {
		return fmt.Errorf("%w: %s", ErrMissingInput, name)
	}
	return nil
}
