// Package seqfile implements the packed sequence batch container.
//
// A seqfile is a single little-endian, memory-mappable file: a fixed header,
// 8-byte aligned section payloads and a section directory at the end.  A
// batch is stored as sequence boundaries, a feature matrix and, optionally,
// a padding matrix, plus a JSON metadata section describing them.
package seqfile

import (
	"fmt"
	"strings"
)

const (
	// Magic is the file magic, "SEQ\0".
	Magic = "SEQ\x00"

	// CurrentMajor changes only with breaking format changes.
	CurrentMajor uint16 = 1

	// CurrentMinor may add optional sections.
	CurrentMinor uint16 = 0

	align = 8
)

type SectionType uint32

const (
	SectionMeta       SectionType = 0x0001
	SectionBoundaries SectionType = 0x0002
	SectionFeatures   SectionType = 0x0003
	SectionPadding    SectionType = 0x0004
)

func (t SectionType) String() string {
	switch t {
	case SectionMeta:
		return "meta"
	case SectionBoundaries:
		return "boundaries"
	case SectionFeatures:
		return "features"
	case SectionPadding:
		return "padding"
	default:
		return fmt.Sprintf("section(%#x)", uint32(t))
	}
}

// DType is the element encoding of a matrix section.
type DType string

const (
	F32  DType = "f32"
	F16  DType = "f16"
	BF16 DType = "bf16"
)

// ParseDType accepts the names above in any case.  An empty name is F32.
func ParseDType(s string) (DType, error) {
	switch d := DType(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return F32, nil
	case F32, F16, BF16:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDType, s)
	}
}

// Size returns the number of bytes per element.
func (d DType) Size() int {
	switch d {
	case F32:
		return 4
	case F16, BF16:
		return 2
	default:
		return 0
	}
}
