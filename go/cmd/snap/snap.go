package snap

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rvexec/go/cmd"
	"github.com/lunixbochs/rvexec/go/models"
	"github.com/lunixbochs/rvexec/go/models/cpu"
)

// snapshot pages carry no frame, only the attributes needed to print runs
func snapPages(s *models.Snapshot) cpu.Pages {
	pages := make(cpu.Pages, len(s.Pages))
	for i, pg := range s.Pages {
		pages[i] = &cpu.Page{Addr: pg.Addr, Size: s.Header.PageSize, Perm: pg.Perm}
	}
	return pages
}

func dumpPage(w io.Writer, s *models.Snapshot, addr uint64) error {
	base := addr &^ (s.Header.PageSize - 1)
	for _, pg := range s.Pages {
		if pg.Addr == base {
			fmt.Fprintf(w, "page 0x%x %s\n%s", pg.Addr, cpu.PermString(pg.Perm), hex.Dump(pg.Data))
			return nil
		}
	}
	return errors.Errorf("no page at 0x%x in snapshot", addr)
}

func Main(args []string) {
	c := cmd.NewCmd("<snapshot>")
	dump := c.Flags.Uint64("x", 0, "hex dump the page containing this address")
	rest := c.Parse(args, 1)
	fd, err := os.Open(rest[0])
	if err != nil {
		c.PrintError(errors.WithStack(err))
		os.Exit(1)
	}
	defer fd.Close()
	s, err := models.ReadSnapshot(fd)
	if err != nil {
		c.PrintError(err)
		os.Exit(1)
	}
	models.PrintMappings(c.Out, snapPages(s), s.Result(), c.Color)
	if *dump != 0 {
		if err := dumpPage(c.Out, s, *dump); err != nil {
			c.PrintError(err)
			os.Exit(1)
		}
	}
}

func init() { cmd.Register("snap", "print the address space stored in a snapshot", Main) }
