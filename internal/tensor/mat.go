package tensor

import (
	"fmt"
	"math/rand"
)

// Mat represents a dense row‑major matrix of float32 values.
//
// R and C represent the number of rows and columns respectively.  Stride is the
// number of elements between the starts of two consecutive rows.  Views created
// by Rows share Data with their parent, so writes through a view are visible in
// the parent.
//
// Mat does not perform any memory safety beyond the checks performed by Go's
// slice types and the explicit shape checks below; violations panic.
type Mat struct {
	R, C   int
	Stride int
	Data   []float32
}

// NewMat allocates a new matrix with the given number of rows and columns.
// The underlying slice is zero initialised.  The stride is set to the
// number of columns.
func NewMat(r, c int) Mat {
	if r < 0 || c < 0 {
		panic("negative dimension for matrix")
	}
	return Mat{
		R:      r,
		C:      c,
		Stride: c,
		Data:   make([]float32, r*c),
	}
}

// NewMatFromData creates a matrix from existing data.
// It checks that the data length matches r*c.
func NewMatFromData(r, c int, data []float32) Mat {
	if r < 0 || c < 0 {
		panic("negative dimension for matrix")
	}
	if r*c != len(data) {
		panic(fmt.Sprintf("data length mismatch: %dx%d needs %d values, got %d", r, c, r*c, len(data)))
	}
	return Mat{
		R:      r,
		C:      c,
		Stride: c,
		Data:   data,
	}
}

// Contiguous reports whether rows are packed back to back.
func (m *Mat) Contiguous() bool {
	return m.Stride == m.C || m.R <= 1
}

// Row returns a view of the i‑th row of the matrix as a slice.  The slice
// has length equal to the number of columns.  Modifications to the returned
// slice update the underlying matrix values.
func (m *Mat) Row(i int) []float32 {
	if i < 0 || i >= m.R {
		panic(fmt.Sprintf("row index %d out of range [0,%d)", i, m.R))
	}
	start := i * m.Stride
	return m.Data[start : start+m.C]
}

// Rows returns a view over rows [lo, hi).  An empty range yields a matrix with
// zero rows and the same column count.
func (m *Mat) Rows(lo, hi int) Mat {
	if lo < 0 || hi < lo || hi > m.R {
		panic(fmt.Sprintf("row range [%d,%d) out of range [0,%d)", lo, hi, m.R))
	}
	n := hi - lo
	if n == 0 {
		return Mat{R: 0, C: m.C, Stride: m.Stride}
	}
	start := lo * m.Stride
	end := start + (n-1)*m.Stride + m.C
	return Mat{
		R:      n,
		C:      m.C,
		Stride: m.Stride,
		Data:   m.Data[start:end],
	}
}

// Reshape reinterprets a contiguous matrix as r x c without copying.
func (m *Mat) Reshape(r, c int) Mat {
	if !m.Contiguous() {
		panic("reshape of non-contiguous matrix")
	}
	if r*c != m.R*m.C {
		panic(fmt.Sprintf("reshape %dx%d to %dx%d changes element count", m.R, m.C, r, c))
	}
	return Mat{R: r, C: c, Stride: c, Data: m.Data[:r*c]}
}

// Zero clears every element reachable through the matrix.
func (m *Mat) Zero() {
	if m.Contiguous() {
		clear(m.Data[:m.R*m.C])
		return
	}
	for i := range m.R {
		clear(m.Row(i))
	}
}

// Clone returns a contiguous deep copy.
func (m *Mat) Clone() Mat {
	out := NewMat(m.R, m.C)
	for i := range m.R {
		copy(out.Row(i), m.Row(i))
	}
	return out
}

// SameShape reports whether a and b have identical dimensions.
func SameShape(a, b *Mat) bool {
	return a.R == b.R && a.C == b.C
}

// FillRand fills the matrix with reproducible pseudo‑random values in [-1, 1).
// The seed controls the random sequence; multiple calls with the same seed
// produce identical matrices.
func FillRand(m *Mat, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for i := range m.R {
		row := m.Row(i)
		for j := range row {
			row[j] = rng.Float32()*2 - 1
		}
	}
}
