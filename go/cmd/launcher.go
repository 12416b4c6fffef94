package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
)

type command struct {
	name, desc string
	main       func(args []string)
}

var commands map[string]*command
var order []string
var pad int

func init() { commands = make(map[string]*command) }

func Register(name, desc string, main func(args []string)) {
	if len(name) > pad {
		pad = len(name)
	}
	commands[name] = &command{name, desc, main}
	order = append(order, name)
}

// printUsage lists registered subcommands in registration order.
func printUsage(w io.Writer, prog string) {
	fmt.Fprintf(w, "Usage: %s <command> [options] <file>\n\nCommands:\n", prog)
	fstr := fmt.Sprintf("  %%-%ds  %%s\n", pad)
	for _, name := range order {
		cmd := commands[name]
		fmt.Fprintf(w, fstr, cmd.name, cmd.desc)
	}
	fmt.Fprintf(w, "\nRun '%s <command> -h' for the options of a command.\n", prog)
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  %s load -v -o init.snap bins/init.elf\n", prog)
	fmt.Fprintf(w, "  %s load -flat -base 0x1000 bins/initproc.bin\n", prog)
	fmt.Fprintf(w, "  %s snap -x 0x1000 init.snap\n\n", prog)
}

func Main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr, os.Args[0])
		os.Exit(1)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Command '%s' not found.\n\n", os.Args[1])
		printUsage(os.Stderr, os.Args[0])
		os.Exit(1)
	}
	args := append([]string{strings.Join(os.Args[:2], " ")}, os.Args[2:]...)
	cmd.main(args)
}
