package loader

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rvexec/go/models/cpu"
)

// malformed image
var (
	ErrTruncatedHeader     = errors.New("truncated header")
	ErrInvalidFormat       = errors.New("invalid format")
	ErrUnsupportedClass    = errors.New("unsupported class")
	ErrInvalidProgHeader   = errors.New("invalid program header")
	ErrMalformedSegment    = errors.New("malformed segment")
	ErrTruncatedSegment    = errors.New("segment extends past end of file")
	ErrOverlappingSegments = errors.New("overlapping loadable segments")
	ErrBadEntry            = errors.New("entry point not in an executable segment")
	ErrEmptyImage          = errors.New("empty image")
)

// resource exhaustion
var ErrOutOfFrames = cpu.ErrOutOfFrames

// page table refusal
var (
	ErrMapFailed   = errors.New("page mapping failed")
	ErrMapConflict = errors.New("page already mapped")
)

var ErrUnknownMode = errors.New("unknown load mode")

// MapError is returned when the installer refuses a page.
type MapError struct {
	Addr uint64
	Err  error
}

func (e *MapError) Error() string {
	return fmt.Sprintf("failed to map page 0x%x: %v", e.Addr, e.Err)
}

func (e *MapError) Unwrap() error { return e.Err }

func (e *MapError) Is(target error) bool {
	switch target {
	case ErrMapFailed:
		return true
	case ErrMapConflict:
		var merr *cpu.MemError
		return errors.As(e.Err, &merr) && merr.Enum == cpu.MEM_MAP_CONFLICT
	}
	return false
}

func IsMalformed(err error) bool {
	for _, target := range []error{
		ErrTruncatedHeader, ErrInvalidFormat, ErrUnsupportedClass, ErrInvalidProgHeader,
		ErrMalformedSegment, ErrTruncatedSegment, ErrOverlappingSegments, ErrBadEntry, ErrEmptyImage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsResource(err error) bool {
	return errors.Is(err, ErrOutOfFrames)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrMapConflict)
}
