// Package seqop wraps the context projection kernels in an operator that
// validates its inputs, allocates outputs and reports errors instead of
// panicking.  Layer adds an owned, trainable padding matrix.
package seqop

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/samcharles93/seqwin/internal/ctxproj"
)

var (
	ErrInvalidAttr   = errors.New("seqop: invalid attribute")
	ErrShapeMismatch = errors.New("seqop: shape mismatch")
	ErrMissingInput  = errors.New("seqop: missing input")
)

const (
	// MaxContextLength bounds context_length and the magnitude of
	// context_start.
	MaxContextLength = 1 << 16
	// MaxElements bounds the element count of any matrix the operator
	// allocates.
	MaxElements = 1 << 28
)

// Attrs configures a projection.
type Attrs struct {
	ContextStart     int  `json:"context_start" yaml:"context_start"`
	ContextLength    int  `json:"context_length" yaml:"context_length"`
	ContextStride    int  `json:"context_stride" yaml:"context_stride"`
	PaddingTrainable bool `json:"padding_trainable" yaml:"padding_trainable"`
}

// NewAttrs returns attributes with unit stride.
func NewAttrs(start, length int, trainable bool) Attrs {
	return Attrs{
		ContextStart:     start,
		ContextLength:    length,
		ContextStride:    1,
		PaddingTrainable: trainable,
	}
}

// Validate reports attribute combinations the kernels cannot run.
func (a Attrs) Validate() error {
	if a.ContextLength < 1 {
		return fmt.Errorf("%w: context_length must be at least 1, got %d", ErrInvalidAttr, a.ContextLength)
	}
	if a.ContextLength > MaxContextLength {
		return fmt.Errorf("%w: context_length must be at most %d, got %d", ErrInvalidAttr, MaxContextLength, a.ContextLength)
	}
	if a.ContextStart < -MaxContextLength || a.ContextStart > MaxContextLength {
		return fmt.Errorf("%w: context_start must be within [%d, %d], got %d", ErrInvalidAttr, -MaxContextLength, MaxContextLength, a.ContextStart)
	}
	if a.ContextStride != 1 {
		return fmt.Errorf("%w: context_stride must be 1, got %d", ErrInvalidAttr, a.ContextStride)
	}
	return nil
}

// UpPad is the number of slots a window can reach before a sequence.
func (a Attrs) UpPad() int { return max(0, -a.ContextStart) }

// DownPad is the number of slots a window can reach past a sequence.
func (a Attrs) DownPad() int { return max(0, a.ContextStart+a.ContextLength-1) }

// Window derives the kernel parameters.
func (a Attrs) Window() ctxproj.Window {
	return ctxproj.Window{
		Start:   a.ContextStart,
		Length:  a.ContextLength,
		Stride:  a.ContextStride,
		UpPad:   a.UpPad(),
		DownPad: a.DownPad(),
	}
}

// Shape is a matrix shape.
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

func (s Shape) String() string { return fmt.Sprintf("%dx%d", s.Rows, s.Cols) }

// InferShape returns the output shape for an input of inRows x width and the
// shape the padding matrix must have.  The padding shape is zero when padding
// is not trainable.
func InferShape(inRows, width int, a Attrs) (out, padding Shape, err error) {
	if err := a.Validate(); err != nil {
		return Shape{}, Shape{}, err
	}
	if inRows < 0 || width < 0 {
		return Shape{}, Shape{}, fmt.Errorf("%w: negative input shape %dx%d", ErrShapeMismatch, inRows, width)
	}
	cols, ok := mulElems(a.ContextLength, width)
	if !ok {
		return Shape{}, Shape{}, fmt.Errorf("%w: output width %d x %d exceeds %d elements", ErrShapeMismatch, a.ContextLength, width, MaxElements)
	}
	if _, ok := mulElems(inRows, cols); !ok {
		return Shape{}, Shape{}, fmt.Errorf("%w: output %dx%d exceeds %d elements", ErrShapeMismatch, inRows, cols, MaxElements)
	}
	out = Shape{Rows: inRows, Cols: cols}
	if a.PaddingTrainable {
		padding = Shape{Rows: a.UpPad() + a.DownPad(), Cols: width}
		if _, ok := mulElems(padding.Rows, width); !ok {
			return Shape{}, Shape{}, fmt.Errorf("%w: padding %s exceeds %d elements", ErrShapeMismatch, padding, MaxElements)
		}
	}
	return out, padding, nil
}

// mulElems returns a*b for non-negative a and b, reporting false when the
// product overflows or exceeds MaxElements.
func mulElems(a, b int) (int, bool) {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || lo > MaxElements {
		return 0, false
	}
	return int(lo), true
}
