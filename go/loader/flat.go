package loader

import (
	"io"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rvexec/go/models"
	"github.com/lunixbochs/rvexec/go/models/cpu"
)

// loadFlat maps a header-less image verbatim at Config.FlatBase, user RWX,
// and starts the initial thread at the base. The image is not
// self-describing so nothing about it is validated: only trusted images
// (the built-in init program) may come through here.
func (l *Loader) loadFlat(r io.ReaderAt, proc models.Process) (*models.AddressSpaceResult, error) {
	cfg := l.Config
	size, err := readerSize(r)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, errors.WithStack(ErrEmptyImage)
	}
	base := cfg.FlatBase
	if base+size < base {
		return nil, errors.Wrapf(ErrMalformedSegment, "image of %#x bytes does not fit at %#x", size, base)
	}
	high, ok := cfg.PageCeil(base + size)
	if !ok || high+cfg.PageSize < high {
		return nil, errors.Wrapf(ErrMalformedSegment, "image of %#x bytes does not fit at %#x", size, base)
	}
	seg := models.SegmentData{
		Off:      0,
		Addr:     base,
		FileSize: size,
		MemSize:  size,
		Perm:     cpu.PTE_URWX,
		Segment:  models.Segment{Start: base, End: high},
	}
	tx := l.newTx(proc.Mapper())
	if err := tx.materialize(r, []models.SegmentData{seg}); err != nil {
		return nil, tx.rollback(err)
	}
	stack := high + cfg.PageSize
	if err := proc.SpawnThread(base, stack); err != nil {
		return nil, tx.rollback(errors.Wrap(err, "failed to create initial thread"))
	}
	return &models.AddressSpaceResult{
		HighWater: high,
		MaxPage:   high / cfg.PageSize,
		StackBase: stack,
		Pages:     len(tx.mapped),
	}, nil
}
