package seqfile

import (
	"fmt"
	"math"
	"math/bits"

	bfloat16 "github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"

	"github.com/samcharles93/seqwin/internal/tensor"
)

func encodeValues(dt DType, vals []float32) ([]byte, error) {
	switch dt {
	case F32:
		out := make([]byte, 4*len(vals))
		for i, v := range vals {
			le.PutUint32(out[4*i:], math.Float32bits(v))
		}
		return out, nil
	case F16:
		out := make([]byte, 2*len(vals))
		for i, v := range vals {
			le.PutUint16(out[2*i:], float16.Fromfloat32(v).Bits())
		}
		return out, nil
	case BF16:
		return bfloat16.EncodeFloat32(vals), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDType, dt)
	}
}

func decodeValues(dt DType, raw []byte, n int) ([]float32, error) {
	if size := dt.Size(); size == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDType, dt)
	} else if want, ok := byteLen(n, size); !ok || len(raw) != want {
		return nil, fmt.Errorf("%w: %d bytes for %d %s values", ErrCorruptFile, len(raw), n, dt)
	}
	switch dt {
	case F32:
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(le.Uint32(raw[4*i:]))
		}
		return out, nil
	case F16:
		out := make([]float32, n)
		for i := range out {
			out[i] = float16.Frombits(le.Uint16(raw[2*i:])).Float32()
		}
		return out, nil
	default:
		return bfloat16.DecodeFloat32(raw), nil
	}
}

// byteLen returns n*size, reporting false when it does not fit an int.
func byteLen(n, size int) (int, bool) {
	hi, lo := bits.Mul64(uint64(n), uint64(size))
	if n < 0 || hi != 0 || lo > math.MaxInt {
		return 0, false
	}
	return int(lo), true
}

// packed returns the matrix elements row by row without gaps.
func packed(m tensor.Mat) []float32 {
	if m.Contiguous() {
		return m.Data[:m.R*m.C]
	}
	c := m.Clone()
	return c.Data
}

func encodeBoundaries(offsets []int) []byte {
	out := make([]byte, 8*len(offsets))
	for i, o := range offsets {
		le.PutUint64(out[8*i:], uint64(o))
	}
	return out
}

func decodeBoundaries(raw []byte) ([]int, error) {
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("%w: boundaries section is %d bytes", ErrCorruptFile, len(raw))
	}
	out := make([]int, len(raw)/8)
	for i := range out {
		v := le.Uint64(raw[8*i:])
		if v > math.MaxInt {
			return nil, fmt.Errorf("%w: boundary %d overflows", ErrCorruptFile, i)
		}
		out[i] = int(v)
	}
	return out, nil
}
