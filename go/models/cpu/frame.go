package cpu

import (
	"sync"

	"github.com/pkg/errors"
)

var ErrOutOfFrames = errors.New("out of physical frames")
var ErrBadFree = errors.New("frame not owned by allocator")

// freed frames are filled with this so stale or unzeroed pages show up
const junkByte = 0x01

// Frame is one physical page. Data aliases the pool's arena.
type Frame struct {
	Num  uint64
	Phys uint64
	Data []byte

	free bool
}

func (f *Frame) Zero() {
	clear(f.Data)
}

// FramePool is a bounded physical page allocator. Callers from unrelated
// processes are serialized by mu.
type FramePool struct {
	PageSize uint64
	PhysBase uint64

	mu      sync.Mutex
	frames  []*Frame
	freeLst []*Frame
	arena   []byte
	release func() error
}

func NewFramePool(pageSize, physBase uint64, count int) (*FramePool, error) {
	if pageSize == 0 || pageSize&(pageSize-1) != 0 {
		return nil, errors.Errorf("page size %#x is not a power of two", pageSize)
	}
	if count <= 0 {
		return nil, errors.Errorf("invalid frame count: %d", count)
	}
	arena, release, err := newArena(int(pageSize) * count)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reserve frame arena")
	}
	p := &FramePool{
		PageSize: pageSize,
		PhysBase: physBase,
		frames:   make([]*Frame, count),
		freeLst:  make([]*Frame, 0, count),
		arena:    arena,
		release:  release,
	}
	// hand out low frames first
	for i := count - 1; i >= 0; i-- {
		off := uint64(i) * pageSize
		f := &Frame{
			Num:  uint64(i),
			Phys: physBase + off,
			Data: arena[off : off+pageSize : off+pageSize],
			free: true,
		}
		fill(f.Data, junkByte)
		p.frames[i] = f
		p.freeLst = append(p.freeLst, f)
	}
	return p, nil
}

// Alloc returns one uninitialized frame, or ErrOutOfFrames.
func (p *FramePool) Alloc() (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.freeLst)
	if n == 0 {
		return nil, errors.WithStack(ErrOutOfFrames)
	}
	f := p.freeLst[n-1]
	p.freeLst = p.freeLst[:n-1]
	f.free = false
	return f, nil
}

func (p *FramePool) Free(f *Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f == nil || f.Num >= uint64(len(p.frames)) || p.frames[f.Num] != f {
		return errors.WithStack(ErrBadFree)
	}
	if f.free {
		return errors.Errorf("double free of frame %d (phys %#x)", f.Num, f.Phys)
	}
	fill(f.Data, junkByte)
	f.free = true
	p.freeLst = append(p.freeLst, f)
	return nil
}

func (p *FramePool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.freeLst)
}

func (p *FramePool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames) - len(p.freeLst)
}

func (p *FramePool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames, p.freeLst, p.arena = nil, nil, nil
	if p.release == nil {
		return nil
	}
	release := p.release
	p.release = nil
	return release()
}

func fill(p []byte, b byte) {
	for i := range p {
		p[i] = b
	}
}
