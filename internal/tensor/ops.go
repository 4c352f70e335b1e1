package tensor

import (
	"gonum.org/v1/gonum/blas/blas32"
)

// Add adds src to dst element-wise.
func Add(dst, src []float32) {
	Axpy(dst, 1, src)
}

// Axpy computes dst += alpha*src.  dst and src must have equal length.
func Axpy(dst []float32, alpha float32, src []float32) {
	if len(dst) != len(src) {
		panic("axpy length mismatch")
	}
	if len(dst) == 0 {
		return
	}
	blas32.Axpy(alpha, vec(src), vec(dst))
}

// Scale multiplies every element of dst by alpha.
func Scale(dst []float32, alpha float32) {
	if len(dst) == 0 {
		return
	}
	blas32.Scal(alpha, vec(dst))
}

// Dot computes the dot product of a and b.
func Dot(a, b []float32) float32 {
	if len(a) != len(b) {
		panic("dot length mismatch")
	}
	if len(a) == 0 {
		return 0
	}
	return blas32.Dot(vec(a), vec(b))
}

// MatDot is the Frobenius inner product of two equally shaped matrices.
// Rows are summed in float64 to keep the result stable for large batches.
func MatDot(a, b *Mat) float64 {
	if !SameShape(a, b) {
		panic("matdot shape mismatch")
	}
	var sum float64
	for i := range a.R {
		sum += float64(Dot(a.Row(i), b.Row(i)))
	}
	return sum
}

// Fill sets every element of dst to v.
func Fill(dst []float32, v float32) {
	for i := range dst {
		dst[i] = v
	}
}

func vec(x []float32) blas32.Vector {
	return blas32.Vector{N: len(x), Data: x, Inc: 1}
}
