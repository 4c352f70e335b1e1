package seqfile

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/samcharles93/seqwin/internal/lod"
	"github.com/samcharles93/seqwin/internal/seqop"
	"github.com/samcharles93/seqwin/internal/tensor"
)

// JSONBatch is the text form of a Batch.  Matrices are lists of rows.
type JSONBatch struct {
	Boundaries []int        `json:"boundaries"`
	Width      int          `json:"width"`
	Features   [][]float32  `json:"features"`
	Padding    [][]float32  `json:"padding,omitempty"`
	Attrs      *seqop.Attrs `json:"attrs,omitempty"`
}

// DecodeJSON reads one JSONBatch from r.
func DecodeJSON(r io.Reader) (Batch, error) {
	var jb JSONBatch
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&jb); err != nil {
		return Batch{}, err
	}
	return jb.Batch()
}

// Batch converts the text form, checking that every row has Width values.
func (jb JSONBatch) Batch() (Batch, error) {
	layout, err := lod.New(jb.Boundaries)
	if err != nil {
		return Batch{}, err
	}
	features, err := rowsToMat(jb.Features, jb.Width, "features")
	if err != nil {
		return Batch{}, err
	}
	padding, err := rowsToMat(jb.Padding, jb.Width, "padding")
	if err != nil {
		return Batch{}, err
	}
	b := Batch{Features: features, Layout: layout, Padding: padding, Attrs: jb.Attrs}
	if err := b.Validate(); err != nil {
		return Batch{}, err
	}
	return b, nil
}

// EncodeJSON writes b as an indented JSONBatch.
func EncodeJSON(w io.Writer, b Batch) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ToJSON(b))
}

// ToJSON converts b to its text form.
func ToJSON(b Batch) JSONBatch {
	return JSONBatch{
		Boundaries: b.Layout.Offsets(),
		Width:      b.Features.C,
		Features:   MatRows(b.Features),
		Padding:    MatRows(b.Padding),
		Attrs:      b.Attrs,
	}
}

// MatRows copies m into a list of rows.  A matrix without rows yields nil.
func MatRows(m tensor.Mat) [][]float32 {
	if m.R == 0 {
		return nil
	}
	out := make([][]float32, m.R)
	for i := range m.R {
		out[i] = append([]float32(nil), m.Row(i)...)
	}
	return out
}

func rowsToMat(rows [][]float32, width int, name string) (tensor.Mat, error) {
	if width < 0 {
		return tensor.Mat{}, fmt.Errorf("%s: negative width %d", name, width)
	}
	m := tensor.NewMat(len(rows), width)
	for i, row := range rows {
		if len(row) != width {
			return tensor.Mat{}, fmt.Errorf("%s row %d has %d values, want %d", name, i, len(row), width)
		}
		copy(m.Row(i), row)
	}
	return m, nil
}

// MatFromRows builds a [len(rows), width] matrix, checking every row length.
func MatFromRows(rows [][]float32, width int) (tensor.Mat, error) {
	return rowsToMat(rows, width, "rows")
}
