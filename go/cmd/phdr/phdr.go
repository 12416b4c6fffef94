package phdr

import (
	"fmt"
	"io"
	"os"

	"github.com/mgutz/ansi"
	"github.com/pkg/errors"

	"github.com/lunixbochs/rvexec/go/cmd"
	"github.com/lunixbochs/rvexec/go/loader"
)

var loadColor = ansi.ColorCode("green+b")

func flagString(flags uint32) string {
	s := []byte("---")
	if flags&loader.PF_R != 0 {
		s[0] = 'r'
	}
	if flags&loader.PF_W != 0 {
		s[1] = 'w'
	}
	if flags&loader.PF_X != 0 {
		s[2] = 'x'
	}
	return string(s)
}

func printProgs(w io.Writer, f *loader.ElfFile, color bool) {
	fmt.Fprintf(w, "entry 0x%x, %d program headers at offset 0x%x\n\n", f.Entry(), len(f.Progs), f.Header.Phoff)
	fmt.Fprintf(w, "%-8s %-10s %-18s %-10s %-10s %s %s\n", "Type", "Offset", "VirtAddr", "FileSiz", "MemSiz", "Flg", "Align")
	for i := range f.Progs {
		p := &f.Progs[i]
		line := fmt.Sprintf("%-8s 0x%08x 0x%016x 0x%08x 0x%08x %s 0x%x",
			p.TypeName(), p.Off, p.Vaddr, p.Filesz, p.Memsz, flagString(p.Flags), p.Align)
		if color && p.Type == loader.PT_LOAD {
			line = loadColor + line + ansi.Reset
		}
		fmt.Fprintln(w, line)
	}
}

func Main(args []string) {
	c := cmd.NewCmd("<elf>")
	rest := c.Parse(args, 1)
	fd, err := os.Open(rest[0])
	if err != nil {
		c.PrintError(errors.WithStack(err))
		os.Exit(1)
	}
	defer fd.Close()
	f, err := loader.ParseElf(fd)
	if err != nil {
		c.PrintError(err)
		os.Exit(cmd.ExitCode(err))
	}
	printProgs(c.Out, f, c.Color)
}

func init() { cmd.Register("phdr", "print the program header table of an ELF64 file", Main) }
