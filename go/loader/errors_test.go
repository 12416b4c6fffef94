package loader

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rvexec/go/models/cpu"
)

func TestErrorClasses(t *testing.T) {
	conflict := errors.Wrap(&MapError{Addr: 0x1000, Err: &cpu.MemError{Addr: 0x1000, Size: ps, Enum: cpu.MEM_MAP_CONFLICT}}, "segment 1")
	refused := &MapError{Addr: 0x2000, Err: &cpu.MemError{Addr: 0x2000, Size: ps, Enum: cpu.MEM_MAP_UNALIGNED}}
	oom := errors.Wrap(cpu.ErrOutOfFrames, "segment 0")
	bad := errors.Wrapf(ErrMalformedSegment, "phdr 2")

	for _, tc := range []struct {
		err                                      error
		malformed, resource, conflict, mapFailed bool
	}{
		{conflict, false, false, true, true},
		{refused, false, false, false, true},
		{oom, false, true, false, false},
		{bad, true, false, false, false},
	} {
		if IsMalformed(tc.err) != tc.malformed || IsResource(tc.err) != tc.resource ||
			IsConflict(tc.err) != tc.conflict || errors.Is(tc.err, ErrMapFailed) != tc.mapFailed {
			t.Errorf("wrong classification for %v", tc.err)
		}
	}
}
