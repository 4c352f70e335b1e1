package seqfile

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/samcharles93/seqwin/internal/lod"
	"github.com/samcharles93/seqwin/internal/seqop"
	"github.com/samcharles93/seqwin/internal/tensor"
)

const sectionVersion = 1

// Meta is stored as JSON in the meta section.
type Meta struct {
	Rows        int          `json:"rows"`
	Width       int          `json:"width"`
	Sequences   int          `json:"sequences"`
	DType       DType        `json:"dtype"`
	PaddingRows int          `json:"padding_rows,omitempty"`
	Attrs       *seqop.Attrs `json:"attrs,omitempty"`
	Producer    string       `json:"producer,omitempty"`
}

// Batch is a packed sequence batch.  Padding has zero rows when absent.
type Batch struct {
	Features tensor.Mat
	Layout   lod.Layout
	Padding  tensor.Mat
	Attrs    *seqop.Attrs
	Producer string
}

// Validate checks that the layout covers the features and the padding width
// matches.
func (b Batch) Validate() error {
	if b.Layout.IsZero() {
		return fmt.Errorf("%w: boundaries", ErrMissingSection)
	}
	if err := b.Layout.CheckRows(b.Features.R); err != nil {
		return err
	}
	if b.Padding.R > 0 && b.Padding.C != b.Features.C {
		return fmt.Errorf("padding width %d does not match feature width %d", b.Padding.C, b.Features.C)
	}
	return nil
}

// WriteBatch stores b at path with matrices encoded as dt.
func WriteBatch(path string, b Batch, dt DType) (err error) {
	if err := b.Validate(); err != nil {
		return err
	}
	meta := Meta{
		Rows:        b.Features.R,
		Width:       b.Features.C,
		Sequences:   b.Layout.NumSeq(),
		DType:       dt,
		PaddingRows: b.Padding.R,
		Attrs:       b.Attrs,
		Producer:    b.Producer,
	}
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	features, err := encodeValues(dt, packed(b.Features))
	if err != nil {
		return err
	}
	var padding []byte
	if b.Padding.R > 0 {
		if padding, err = encodeValues(dt, packed(b.Padding)); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w, err := NewWriter(f)
	if err != nil {
		return err
	}
	if err := w.WriteSection(SectionMeta, sectionVersion, metaRaw); err != nil {
		return err
	}
	if err := w.WriteSection(SectionBoundaries, sectionVersion, encodeBoundaries(b.Layout.Offsets())); err != nil {
		return err
	}
	if err := w.WriteSection(SectionFeatures, sectionVersion, features); err != nil {
		return err
	}
	if padding != nil {
		if err := w.WriteSection(SectionPadding, sectionVersion, padding); err != nil {
			return err
		}
	}
	return w.Finalise()
}

// Meta decodes the meta section.
func (f *File) Meta() (Meta, error) {
	raw, err := f.Payload(SectionMeta)
	if err != nil {
		return Meta{}, err
	}
	var m Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return Meta{}, fmt.Errorf("%w: meta: %w", ErrCorruptFile, err)
	}
	if m.Rows < 0 || m.Width < 0 || m.PaddingRows < 0 {
		return Meta{}, fmt.Errorf("%w: negative shape in meta", ErrCorruptFile)
	}
	if m.DType, err = ParseDType(string(m.DType)); err != nil {
		return Meta{}, err
	}
	for _, rows := range []int{m.Rows, m.PaddingRows} {
		n, ok := byteLen(rows, m.Width)
		if ok {
			_, ok = byteLen(n, m.DType.Size())
		}
		if !ok {
			return Meta{}, fmt.Errorf("%w: %dx%d matrix in meta is too large", ErrCorruptFile, rows, m.Width)
		}
	}
	return m, nil
}

// Batch decodes the whole batch into freshly allocated matrices, so the
// result stays valid after Close.
func (f *File) Batch() (Batch, error) {
	meta, err := f.Meta()
	if err != nil {
		return Batch{}, err
	}

	raw, err := f.Payload(SectionBoundaries)
	if err != nil {
		return Batch{}, err
	}
	offsets, err := decodeBoundaries(raw)
	if err != nil {
		return Batch{}, err
	}
	layout, err := lod.New(offsets)
	if err != nil {
		return Batch{}, fmt.Errorf("%w: %w", ErrCorruptFile, err)
	}
	if err := layout.CheckRows(meta.Rows); err != nil {
		return Batch{}, fmt.Errorf("%w: %w", ErrCorruptFile, err)
	}

	features, err := f.matrix(SectionFeatures, meta.DType, meta.Rows, meta.Width)
	if err != nil {
		return Batch{}, err
	}
	b := Batch{
		Features: features,
		Layout:   layout,
		Padding:  tensor.NewMat(0, meta.Width),
		Attrs:    meta.Attrs,
		Producer: meta.Producer,
	}
	if meta.PaddingRows > 0 {
		if b.Padding, err = f.matrix(SectionPadding, meta.DType, meta.PaddingRows, meta.Width); err != nil {
			return Batch{}, err
		}
	}
	return b, nil
}

func (f *File) matrix(t SectionType, dt DType, rows, cols int) (tensor.Mat, error) {
	raw, err := f.Payload(t)
	if err != nil {
		return tensor.Mat{}, err
	}
	n, ok := byteLen(rows, cols)
	if !ok {
		return tensor.Mat{}, fmt.Errorf("%s: %w: %dx%d is too large", t, ErrCorruptFile, rows, cols)
	}
	vals, err := decodeValues(dt, raw, n)
	if err != nil {
		return tensor.Mat{}, fmt.Errorf("%s: %w", t, err)
	}
	return tensor.NewMatFromData(rows, cols, vals), nil
}

// ReadBatch opens path, decodes its batch and closes it.
func ReadBatch(path string) (Batch, error) {
	f, err := Open(path)
	if err != nil {
		return Batch{}, err
	}
	defer func() { _ = f.Close() }()
	return f.Batch()
}
