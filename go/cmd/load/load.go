package load

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lunixbochs/rvexec/go/cmd"
	"github.com/lunixbochs/rvexec/go/kernel"
	"github.com/lunixbochs/rvexec/go/loader"
	"github.com/lunixbochs/rvexec/go/models"
	"github.com/lunixbochs/rvexec/go/models/cpu"
)

func Main(args []string) {
	c := cmd.NewCmd("<image>")
	c.ConfigFlags()
	fs := c.Flags
	config := c.Config
	flat := fs.Bool("flat", false, "load a raw image at -base instead of an ELF64 file")
	fs.Uint64Var(&config.FlatBase, "base", config.FlatBase, "flat image base address")
	fs.BoolVar(&config.StrictEntry, "strict-entry", config.StrictEntry, "reject an entry point outside every executable segment")
	fs.BoolVar(&config.StrictOverlap, "strict-overlap", config.StrictOverlap, "reject overlapping loadable segments before mapping")
	snapfile := fs.String("o", "", "write the loaded address space to a snapshot file")
	metrics := fs.Bool("metrics", false, "print loader counters after loading")
	rest := c.Parse(args, 1)
	os.Exit(run(c, rest[0], *flat, *snapfile, *metrics))
}

func run(c *cmd.Cmd, path string, flat bool, snapfile string, metrics bool) int {
	config := c.Config
	if c.ConfigPath != "" {
		level.Debug(c.Logger).Log("msg", "using config", "path", c.ConfigPath)
	}
	pool, err := cpu.NewFramePool(config.PageSize, config.PhysBase, config.Frames)
	if err != nil {
		c.PrintError(err)
		return 1
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	l := loader.NewLoader(config, pool)
	l.Logger = c.Logger
	l.Metrics = models.NewLoaderMetrics(reg)

	f, err := os.Open(path)
	if err != nil {
		c.PrintError(errors.WithStack(err))
		return 1
	}
	defer f.Close()

	mode := loader.ModeElf
	if flat {
		mode = loader.ModeFlat
		if loader.MatchElf(f) {
			level.Warn(c.Logger).Log("msg", "loading an ELF file as a flat image", "path", path)
		}
	}
	proc := kernel.NewProc(filepath.Base(path), config.PageSize, pool)
	res, err := l.Load(f, proc, mode)
	if metrics {
		defer printMetrics(c, reg)
	}
	if err != nil {
		c.PrintError(err)
		return cmd.ExitCode(err)
	}
	defer proc.Exit()

	pages := proc.Pages.Mappings()
	fmt.Fprintf(c.Out, "pid %d %s (%s)\n", proc.Pid, proc.Name, mode)
	models.PrintMappings(c.Out, pages, res, c.Color)
	if len(proc.Threads) > 0 {
		t := proc.Threads[0]
		fmt.Fprintf(c.Out, "thread %d pc=0x%x sp=0x%x\n", t.Tid, t.PC, t.SP)
	}

	if snapfile != "" {
		out, err := os.Create(snapfile)
		if err != nil {
			c.PrintError(errors.WithStack(err))
			return 1
		}
		defer out.Close()
		if err := models.SaveSnapshot(out, res, config.PageSize, pages); err != nil {
			c.PrintError(err)
			return 1
		}
		level.Info(c.Logger).Log("msg", "wrote snapshot", "path", snapfile, "pages", len(pages))
	}
	return 0
}

func printMetrics(c *cmd.Cmd, reg *prometheus.Registry) {
	mfs, err := reg.Gather()
	if err != nil {
		c.PrintError(err)
		return
	}
	var lines []string
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				name += fmt.Sprintf(" %s=%s", lp.GetName(), lp.GetValue())
			}
			lines = append(lines, fmt.Sprintf("%-48s %v", name, m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		fmt.Fprintln(c.Out, line)
	}
}

func init() { cmd.Register("load", "load an image into a fresh address space", Main) }
