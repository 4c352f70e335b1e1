package seqfile

import "errors"

var (
	ErrInvalidMagic     = errors.New("invalid seqfile magic")
	ErrUnsupportedMajor = errors.New("unsupported seqfile major version")
	ErrCorruptFile      = errors.New("corrupt seqfile")
	ErrMissingSection   = errors.New("missing seqfile section")
	ErrUnsupportedDType = errors.New("unsupported seqfile dtype")
)
