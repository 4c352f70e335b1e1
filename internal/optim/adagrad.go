// Package optim holds parameter update rules for trainable padding.
package optim

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrMissingInput      = errors.New("optim: missing input")
	ErrLearningRateShape = errors.New("optim: learning rate should have one element")
	ErrShapeMismatch     = errors.New("optim: shape mismatch")
)

const (
	DefaultDecay   = 0.95
	DefaultEpsilon = 1e-6
)

// DecayedAdagrad scales each step by a running, exponentially decayed
// average of squared gradients:
//
//	moment = decay*moment + (1-decay)*grad*grad
//	param  = param - lr*grad / (sqrt(moment) + epsilon)
type DecayedAdagrad struct {
	Decay   float32
	Epsilon float32
}

// NewDecayedAdagrad returns the optimizer with the default decay and epsilon.
func NewDecayedAdagrad() DecayedAdagrad {
	return DecayedAdagrad{Decay: DefaultDecay, Epsilon: DefaultEpsilon}
}

// Validate checks that every input is present, lr holds a single value and
// grad and moment match param element for element.
func (o DecayedAdagrad) Validate(param, grad, moment, lr []float32) error {
	for _, in := range []struct {
		name string
		v    []float32
	}{
		{"param", param},
		{"grad", grad},
		{"moment", moment},
		{"learning rate", lr},
	} {
		if in.v == nil {
			return fmt.Errorf("%w: %s", ErrMissingInput, in.name)
		}
	}
	if len(lr) != 1 {
		return fmt.Errorf("%w: got %d", ErrLearningRateShape, len(lr))
	}
	if len(grad) != len(param) {
		return fmt.Errorf("%w: param has %d elements, grad %d", ErrShapeMismatch, len(param), len(grad))
	}
	if len(moment) != len(param) {
		return fmt.Errorf("%w: param has %d elements, moment %d", ErrShapeMismatch, len(param), len(moment))
	}
	return nil
}

// Update applies one step in place to param and moment.
func (o DecayedAdagrad) Update(param, grad, moment, lr []float32) error {
	if err := o.Validate(param, grad, moment, lr); err != nil {
		return err
	}
	rate := lr[0]
	for i, g := range grad {
		m := o.Decay*moment[i] + (1-o.Decay)*g*g
		moment[i] = m
		param[i] -= rate * g / (float32(math.Sqrt(float64(m))) + o.Epsilon)
	}
	return nil
}
