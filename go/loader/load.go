package loader

import (
	"fmt"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/lunixbochs/rvexec/go/models"
)

type Mode int

const (
	// structured ELF64 image
	ModeElf Mode = iota
	// raw image at Config.FlatBase, trusted images only
	ModeFlat
)

func (m Mode) String() string {
	switch m {
	case ModeElf:
		return "elf"
	case ModeFlat:
		return "flat"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "elf":
		return ModeElf, nil
	case "flat":
		return ModeFlat, nil
	}
	return 0, errors.Wrapf(ErrUnknownMode, "%q", s)
}

// Loader builds the initial address space of new processes. It shares one
// frame allocator across loads; the allocator serializes its own callers.
type Loader struct {
	Config  *models.Config
	Frames  models.FrameAllocator
	Logger  log.Logger
	Metrics *models.LoaderMetrics
}

func NewLoader(cfg *models.Config, frames models.FrameAllocator) *Loader {
	return &Loader{
		Config:  cfg,
		Frames:  frames,
		Logger:  log.NewNopLogger(),
		Metrics: models.NewLoaderMetrics(nil),
	}
}

// Load maps file into proc's address space. On error nothing this call
// installed is left mapped and proc must not be made runnable.
func (l *Loader) Load(file io.ReaderAt, proc models.Process, mode Mode) (*models.AddressSpaceResult, error) {
	if l.Logger == nil {
		l.Logger = log.NewNopLogger()
	}
	if l.Metrics == nil {
		l.Metrics = models.NewLoaderMetrics(nil)
	}
	if err := l.Config.Validate(); err != nil {
		return nil, err
	}
	var res *models.AddressSpaceResult
	var err error
	switch mode {
	case ModeElf:
		res, err = l.loadElf(file, proc)
	case ModeFlat:
		res, err = l.loadFlat(file, proc)
	default:
		err = errors.Wrapf(ErrUnknownMode, "%d", int(mode))
	}
	if err != nil {
		l.Metrics.Loads.WithLabelValues(mode.String(), "error").Inc()
		level.Debug(l.Logger).Log("msg", "load failed", "mode", mode, "err", err)
		return nil, err
	}
	l.Metrics.Loads.WithLabelValues(mode.String(), "ok").Inc()
	level.Debug(l.Logger).Log("msg", "image loaded", "mode", mode,
		"high", fmt.Sprintf("%#x", res.HighWater), "stack", fmt.Sprintf("%#x", res.StackBase),
		"entry", fmt.Sprintf("%#x", res.Entry), "pages", res.Pages)
	return res, nil
}

func (l *Loader) loadElf(r io.ReaderAt, proc models.Process) (*models.AddressSpaceResult, error) {
	f, err := ParseElf(r)
	if err != nil {
		return nil, err
	}
	segs, high, err := planSegments(f, l.Config)
	if err != nil {
		return nil, err
	}
	tx := l.newTx(proc.Mapper())
	if err := tx.materialize(r, segs); err != nil {
		return nil, tx.rollback(err)
	}
	return &models.AddressSpaceResult{
		HighWater: high,
		MaxPage:   high / l.Config.PageSize,
		StackBase: high + l.Config.PageSize,
		Entry:     f.Entry(),
		HasEntry:  true,
		Pages:     len(tx.mapped),
	}, nil
}

// LoadFile opens path and loads it with mode.
func (l *Loader) LoadFile(path string, proc models.Process, mode Mode) (*models.AddressSpaceResult, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer fd.Close()
	return l.Load(fd, proc, mode)
}
