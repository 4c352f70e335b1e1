// Package compute provides the execution contexts numeric kernels run under.
// A Context only decides how a loop over independent index ranges is
// scheduled; kernels stay agnostic of where the iterations execute.
package compute

import (
	"fmt"
	"runtime"
	"strings"
)

const (
	SerialName   = "serial"
	ParallelName = "parallel"
	Auto         = "auto"
)

// Context schedules loops over [0, n).
type Context interface {
	Name() string
	Workers() int
	// ParallelFor calls fn over disjoint sub-ranges covering [0, n) and returns
	// once every call has finished.  fn must be safe to run concurrently on
	// different ranges.  Calling ParallelFor from inside fn is not supported.
	ParallelFor(n int, fn func(lo, hi int))
}

// Normalize canonicalises a context name.
func Normalize(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return Auto, nil
	}
	switch n {
	case SerialName, ParallelName, Auto:
		return n, nil
	case "cpu":
		return SerialName, nil
	default:
		return "", fmt.Errorf("unknown backend %q (expected auto, serial, or parallel)", name)
	}
}

// New builds a context by name.  workers <= 0 selects GOMAXPROCS.  "auto"
// resolves to the shared parallel context when more than one processor is
// available.
func New(name string, workers int) (Context, error) {
	n, err := Normalize(name)
	if err != nil {
		return nil, err
	}
	switch n {
	case SerialName:
		return Serial(), nil
	case ParallelName:
		if workers <= 0 {
			return Default(), nil
		}
		return NewParallel(workers), nil
	default:
		if workers == 1 || (workers <= 0 && runtime.GOMAXPROCS(0) == 1) {
			return Serial(), nil
		}
		if workers <= 0 {
			return Default(), nil
		}
		return NewParallel(workers), nil
	}
}

// Available returns a comma-separated list of context names.
func Available() string {
	return strings.Join([]string{Auto, SerialName, ParallelName}, ",")
}

type serial struct{}

// Serial returns the single-domain context: fn runs once, in order, on the
// calling goroutine.
func Serial() Context { return serial{} }

func (serial) Name() string { return SerialName }
func (serial) Workers() int { return 1 }

func (serial) ParallelFor(n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	fn(0, n)
}
