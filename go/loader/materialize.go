package loader

import (
	"fmt"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/lunixbochs/rvexec/go/models"
	"github.com/lunixbochs/rvexec/go/models/cpu"
)

// planSegments resolves every PT_LOAD entry against the page size and
// returns the segments plus the high-water mark. All size checks happen here,
// before the first frame is allocated.
func planSegments(f *ElfFile, cfg *models.Config) ([]models.SegmentData, uint64, error) {
	var segs []models.SegmentData
	var high uint64
	for i := range f.Progs {
		p := &f.Progs[i]
		if p.Type != PT_LOAD {
			continue
		}
		if p.Filesz > p.Memsz {
			return nil, 0, errors.Wrapf(ErrMalformedSegment, "phdr %d: filesz %#x > memsz %#x", i, p.Filesz, p.Memsz)
		}
		if p.Vaddr+p.Memsz < p.Vaddr {
			return nil, 0, errors.Wrapf(ErrMalformedSegment, "phdr %d: vaddr %#x + memsz %#x overflows", i, p.Vaddr, p.Memsz)
		}
		if p.Off+p.Filesz < p.Off || int64(p.Off+p.Filesz) < 0 {
			return nil, 0, errors.Wrapf(ErrMalformedSegment, "phdr %d: off %#x + filesz %#x overflows", i, p.Off, p.Filesz)
		}
		end, ok := cfg.PageCeil(p.Vaddr + p.Memsz)
		if !ok {
			return nil, 0, errors.Wrapf(ErrMalformedSegment, "phdr %d: end of segment overflows", i)
		}
		start := cfg.PageFloor(p.Vaddr)
		if p.Memsz == 0 {
			start = end
		}
		segs = append(segs, models.SegmentData{
			Off:      p.Off,
			Addr:     p.Vaddr,
			FileSize: p.Filesz,
			MemSize:  p.Memsz,
			Perm:     p.Perm(),
			Segment:  models.Segment{Start: start, End: end},
		})
		if end > high {
			high = end
		}
	}
	if high+cfg.PageSize < high {
		return nil, 0, errors.Wrapf(ErrMalformedSegment, "no room for a stack above %#x", high)
	}
	if cfg.StrictOverlap {
		for i := range segs {
			for j := i + 1; j < len(segs); j++ {
				a, b := &segs[i], &segs[j]
				if a.Start != a.End && b.Start != b.End && a.Overlaps(&b.Segment) {
					return nil, 0, errors.Wrapf(ErrOverlappingSegments, "[%#x, %#x) and [%#x, %#x)", a.Start, a.End, b.Start, b.End)
				}
			}
		}
	}
	if cfg.StrictEntry {
		found := false
		for i := range segs {
			if segs[i].Perm&cpu.PTE_X != 0 && segs[i].ContainsVirt(f.Entry()) {
				found = true
				break
			}
		}
		if !found {
			return nil, 0, errors.Wrapf(ErrBadEntry, "entry %#x", f.Entry())
		}
	}
	return segs, high, nil
}

// loadTx tracks every frame a single load operation owns so a failure can
// put the address space back the way it found it.
type loadTx struct {
	cfg     *models.Config
	frames  models.FrameAllocator
	mapper  models.PageMapper
	logger  log.Logger
	metrics *models.LoaderMetrics

	// allocated but not installed
	held map[*cpu.Frame]struct{}
	// installed by this load, in install order
	mapped []uint64
}

func (l *Loader) newTx(mapper models.PageMapper) *loadTx {
	return &loadTx{
		cfg:     l.Config,
		frames:  l.Frames,
		mapper:  mapper,
		logger:  l.Logger,
		metrics: l.Metrics,
		held:    make(map[*cpu.Frame]struct{}),
	}
}

func (tx *loadTx) alloc() (*cpu.Frame, error) {
	f, err := tx.frames.Alloc()
	if err != nil {
		return nil, err
	}
	tx.held[f] = struct{}{}
	return f, nil
}

// install hands f to the page table. On failure the frame stays held.
func (tx *loadTx) install(va uint64, f *cpu.Frame, perm int) error {
	if err := tx.mapper.Install(va, f, perm); err != nil {
		return &MapError{Addr: va, Err: err}
	}
	delete(tx.held, f)
	tx.mapped = append(tx.mapped, va)
	tx.metrics.FramesMapped.Inc()
	return nil
}

// rollback unmaps what this load installed, newest first, and frees every
// frame it owns. Release failures are appended to cause.
func (tx *loadTx) rollback(cause error) error {
	var result *multierror.Error
	released := 0
	for i := len(tx.mapped) - 1; i >= 0; i-- {
		va := tx.mapped[i]
		f, err := tx.mapper.Unmap(va)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "rollback: unmap 0x%x", va))
			continue
		}
		if err := tx.frames.Free(f); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "rollback: free frame for 0x%x", va))
			continue
		}
		released++
	}
	for f := range tx.held {
		if err := tx.frames.Free(f); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "rollback: free held frame"))
			continue
		}
		released++
	}
	tx.mapped, tx.held = nil, map[*cpu.Frame]struct{}{}
	tx.metrics.FramesReleased.Add(float64(released))
	level.Warn(tx.logger).Log("msg", "load rolled back", "released", released, "err", cause)
	if result == nil {
		return cause
	}
	return multierror.Append(cause, result.Errors...)
}

type pageJob struct {
	va    uint64
	frame *cpu.Frame
}

// materialize allocates, fills and installs every page of segs in order.
// Pages go in batches of at most FillWorkers so work never scales with a
// segment's declared size, only with the frames actually obtained.
func (tx *loadTx) materialize(r io.ReaderAt, segs []models.SegmentData) error {
	ps := tx.cfg.PageSize
	batch := make([]pageJob, 0, tx.cfg.FillWorkers)
	for i := range segs {
		seg := &segs[i]
		level.Debug(tx.logger).Log("msg", "materializing segment", "seg", i,
			"vaddr", fmt.Sprintf("%#x", seg.Addr), "filesz", seg.FileSize, "memsz", seg.MemSize,
			"perm", cpu.PermString(seg.Perm), "pages", seg.Pages(ps))

		for va := seg.Start; va < seg.End; {
			batch = batch[:0]
			for ; va < seg.End && len(batch) < cap(batch); va += ps {
				f, err := tx.alloc()
				if err != nil {
					return errors.Wrapf(err, "segment %d: page 0x%x", i, va)
				}
				batch = append(batch, pageJob{va: va, frame: f})
			}
			if err := tx.fill(r, seg, batch); err != nil {
				return errors.Wrapf(err, "segment %d", i)
			}
			for _, job := range batch {
				if err := tx.install(job.va, job.frame, seg.Perm); err != nil {
					return errors.Wrapf(err, "segment %d", i)
				}
			}
		}
	}
	return nil
}

func (tx *loadTx) fill(r io.ReaderAt, seg *models.SegmentData, jobs []pageJob) error {
	if len(jobs) == 1 {
		return fillPage(r, seg, jobs[0].va, jobs[0].frame.Data)
	}
	var g errgroup.Group
	for _, job := range jobs {
		g.Go(func() error {
			return fillPage(r, seg, job.va, job.frame.Data)
		})
	}
	return g.Wait()
}

// fillPage writes the page at va: file bytes where the segment has them,
// zeros everywhere else.
func fillPage(r io.ReaderAt, seg *models.SegmentData, va uint64, page []byte) error {
	size := uint64(len(page))
	lo, hi := seg.Addr, seg.Addr+seg.FileSize
	if lo < va {
		lo = va
	}
	if hi > va+size {
		hi = va + size
	}
	if lo >= hi {
		clear(page)
		return nil
	}
	clear(page[:lo-va])
	clear(page[hi-va:])
	dst := page[lo-va : hi-va]
	off := seg.Off + (lo - seg.Addr)
	n, err := r.ReadAt(dst, int64(off))
	if n < len(dst) {
		if err == nil || err == io.EOF {
			err = ErrTruncatedSegment
		}
		return errors.Wrapf(err, "read %d of %d bytes at file offset %#x", n, len(dst), off)
	}
	return nil
}
