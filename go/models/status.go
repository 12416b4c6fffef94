package models

import (
	"fmt"
	"io"
	"strings"

	"github.com/mgutz/ansi"

	"github.com/lunixbochs/rvexec/go/models/cpu"
)

var chExec = ansi.ColorCode("red+b")
var chWrite = ansi.ColorCode("yellow")
var chRead = ansi.ColorCode("green")
var chInfo = ansi.ColorCode("cyan")

func colorPad(s, color string, pad int) string {
	length := len(s)
	if color != "" {
		s = color + s + ansi.Reset
	}
	if length < pad {
		s = s + strings.Repeat(" ", pad-length)
	}
	return s
}

func permColor(perm int) string {
	switch {
	case perm&cpu.PTE_X != 0:
		return chExec
	case perm&cpu.PTE_W != 0:
		return chWrite
	default:
		return chRead
	}
}

// MappingRun is a span of adjacent pages with identical permissions.
type MappingRun struct {
	Start, End uint64
	Perm       int
	Pages      int
}

func Runs(pages cpu.Pages) []MappingRun {
	var runs []MappingRun
	for _, pg := range pages {
		if n := len(runs); n > 0 {
			last := &runs[n-1]
			if last.End == pg.Addr && last.Perm == pg.Perm {
				last.End += pg.Size
				last.Pages++
				continue
			}
		}
		runs = append(runs, MappingRun{Start: pg.Addr, End: pg.Addr + pg.Size, Perm: pg.Perm, Pages: 1})
	}
	return runs
}

// PrintMappings writes the address space as merged page runs, then the result.
func PrintMappings(w io.Writer, pages cpu.Pages, res *AddressSpaceResult, color bool) {
	for _, r := range Runs(pages) {
		span := fmt.Sprintf("0x%08x-0x%08x", r.Start, r.End)
		perm := cpu.PermString(r.Perm)
		if color {
			perm = colorPad(perm, permColor(r.Perm), 0)
		}
		fmt.Fprintf(w, "%s %s %6d page(s)\n", span, perm, r.Pages)
	}
	if res == nil {
		return
	}
	line := res.String()
	if color {
		line = colorPad(line, chInfo, 0)
	}
	fmt.Fprintf(w, "%s\n", line)
}
