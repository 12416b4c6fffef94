// Package kernel holds the process object the loader builds an image into.
package kernel

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rvexec/go/models"
	"github.com/lunixbochs/rvexec/go/models/cpu"
)

var nextPid int32

type Thread struct {
	Tid    int
	PC, SP uint64
}

// Proc is a process under construction. It owns its page table; frames in
// it go back to Frames on Exit.
type Proc struct {
	Pid     int
	Name    string
	Pages   *cpu.PageTable
	Frames  models.FrameAllocator
	Threads []*Thread
}

func NewProc(name string, pageSize uint64, frames models.FrameAllocator) *Proc {
	return &Proc{
		Pid:    int(atomic.AddInt32(&nextPid, 1)),
		Name:   name,
		Pages:  cpu.NewPageTable(pageSize),
		Frames: frames,
	}
}

func (p *Proc) Mapper() models.PageMapper { return p.Pages }

func (p *Proc) SpawnThread(pc, sp uint64) error {
	if len(p.Threads) > 0 {
		return errors.Errorf("pid %d already has an initial thread", p.Pid)
	}
	p.Threads = append(p.Threads, &Thread{Tid: p.Pid, PC: pc, SP: sp})
	return nil
}

// Exit tears down the address space and returns every frame.
func (p *Proc) Exit() error {
	p.Threads = nil
	return p.Pages.Teardown(p.Frames.Free)
}
