package models

import (
	"github.com/lunixbochs/rvexec/go/models/cpu"
)

// FrameAllocator hands out physical page frames. Alloc returns
// cpu.ErrOutOfFrames when exhausted; frames are not zeroed.
type FrameAllocator interface {
	Alloc() (*cpu.Frame, error)
	Free(f *cpu.Frame) error
}

// PageMapper installs frames into one address space. Install on a page that
// is already mapped is an error. Unmap returns ownership of the frame.
type PageMapper interface {
	Install(va uint64, f *cpu.Frame, perm int) error
	Unmap(va uint64) (*cpu.Frame, error)
}

// Process is the process under construction. Nothing else may observe its
// address space until loading returns.
type Process interface {
	Mapper() PageMapper
	// SpawnThread creates the initial thread of execution.
	SpawnThread(pc, sp uint64) error
}
