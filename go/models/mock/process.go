// Package mock provides collaborators with injectable failures for loader tests.
package mock

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/rvexec/go/models"
	"github.com/lunixbochs/rvexec/go/models/cpu"
)

var ErrInjected = errors.New("injected failure")

type Thread struct {
	PC, SP uint64
}

// Process wraps a real page table. Install fails on the FailInstallAt'th
// call (1-based) when set.
type Process struct {
	Pages         *cpu.PageTable
	FailInstallAt int
	SpawnErr      error
	Threads       []Thread
	Installs      int
}

func NewProcess(pageSize uint64) *Process {
	return &Process{Pages: cpu.NewPageTable(pageSize)}
}

func (p *Process) Mapper() models.PageMapper { return p }

func (p *Process) Install(va uint64, f *cpu.Frame, perm int) error {
	p.Installs++
	if p.FailInstallAt > 0 && p.Installs == p.FailInstallAt {
		return errors.WithStack(ErrInjected)
	}
	return p.Pages.Install(va, f, perm)
}

func (p *Process) Unmap(va uint64) (*cpu.Frame, error) {
	return p.Pages.Unmap(va)
}

func (p *Process) SpawnThread(pc, sp uint64) error {
	if p.SpawnErr != nil {
		return p.SpawnErr
	}
	p.Threads = append(p.Threads, Thread{PC: pc, SP: sp})
	return nil
}

// Allocator wraps another allocator, failing the FailAt'th Alloc (1-based)
// and every one after it, and tracking frames it has handed out.
type Allocator struct {
	models.FrameAllocator
	FailAt int
	Allocs int
	Live   map[*cpu.Frame]bool
}

func NewAllocator(inner models.FrameAllocator, failAt int) *Allocator {
	return &Allocator{FrameAllocator: inner, FailAt: failAt, Live: make(map[*cpu.Frame]bool)}
}

func (a *Allocator) Alloc() (*cpu.Frame, error) {
	a.Allocs++
	if a.FailAt > 0 && a.Allocs >= a.FailAt {
		return nil, errors.WithStack(cpu.ErrOutOfFrames)
	}
	f, err := a.FrameAllocator.Alloc()
	if err == nil {
		a.Live[f] = true
	}
	return f, err
}

func (a *Allocator) Free(f *cpu.Frame) error {
	if !a.Live[f] {
		return errors.Errorf("free of frame not allocated here: %v", f)
	}
	delete(a.Live, f)
	return a.FrameAllocator.Free(f)
}
