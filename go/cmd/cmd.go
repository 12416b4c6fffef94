package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"github.com/lunixbochs/rvexec/go/loader"
	"github.com/lunixbochs/rvexec/go/models"
)

// Cmd is the shared setup for subcommands: the config file, the flags that
// override it, and colored output.
type Cmd struct {
	Config *models.Config
	// path of the config file in use, empty for defaults
	ConfigPath string
	Flags      *flag.FlagSet
	Logger     log.Logger

	Out   io.Writer
	Color bool

	// positional argument names for usage
	ArgsUsage string

	nocolor bool
	outfile string
}

func NewCmd(argsUsage string) *Cmd {
	return &Cmd{
		Flags:     flag.NewFlagSet("cli", flag.ExitOnError),
		ArgsUsage: argsUsage,
	}
}

// ConfigFlags loads the config file and registers flags that override it.
// It must run before the subcommand registers its own flags.
func (c *Cmd) ConfigFlags() {
	config, path, err := models.FindConfig()
	if err != nil {
		c.PrintError(err)
		os.Exit(1)
	}
	c.Config, c.ConfigPath = config, path

	fs := c.Flags
	fs.Uint64Var(&config.PageSize, "pagesize", config.PageSize, "page size in bytes")
	fs.Uint64Var(&config.PhysBase, "physbase", config.PhysBase, "physical address of the first frame")
	fs.IntVar(&config.Frames, "frames", config.Frames, "physical frames in the pool")
	fs.IntVar(&config.FillWorkers, "workers", config.FillWorkers, "frames of one segment filled in parallel")
	fs.BoolVar(&config.Verbose, "v", config.Verbose, "verbose output")
	fs.StringVar(&c.outfile, "log", "", "redirect log output to file (default stderr)")
}

// Parse parses argv and sets up output. It exits with usage if fewer than
// nargs positional arguments are given.
func (c *Cmd) Parse(argv []string, nargs int) []string {
	fs := c.Flags
	fs.BoolVar(&c.nocolor, "nocolor", false, "disable colored output")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] %s\n\nOptions:\n", argv[0], c.ArgsUsage)
		var flags []*flag.Flag
		fs.VisitAll(func(f *flag.Flag) { flags = append(flags, f) })
		PrintFlags(os.Stderr, flags)
	}
	fs.Parse(argv[1:])
	if fs.NArg() < nargs {
		fs.Usage()
		os.Exit(1)
	}

	c.Out = colorable.NewColorableStdout()
	fd := os.Stdout.Fd()
	c.Color = !c.nocolor && (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
	if c.Config != nil {
		c.Color = c.Color || (c.Config.Color && !c.nocolor)
		if c.outfile != "" {
			out, err := os.OpenFile(c.outfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				c.PrintError(errors.WithStack(err))
				os.Exit(1)
			}
			c.Config.Output = out
		}
		c.Logger = models.NewLogger(c.Config.Output, c.Config.Verbose)
	} else {
		c.Logger = models.NewLogger(os.Stderr, false)
	}
	return fs.Args()
}

// ExitCode maps a load failure onto a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case loader.IsMalformed(err):
		return 2
	case loader.IsResource(err):
		return 3
	case loader.IsConflict(err):
		return 4
	}
	return 1
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func (c *Cmd) PrintError(err error) {
	// print an error, and a stacktrace if available
	fmt.Fprintf(os.Stderr, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	var st stackTracer
	if errors.As(err, &st) {
		// parse full path and method name for each stack frame
		var frames [][]string
		for _, f := range st.StackTrace() {
			fullpath := ""
			fileline := fmt.Sprintf("%s:%d", f, f)
			method := fmt.Sprintf("%n", f)

			frame := fmt.Sprintf("%+s", f)
			tmp := strings.SplitN(frame, "\n", 3)
			if len(tmp) == 2 {
				pathsplit := strings.Split(tmp[0], "/")
				method = pathsplit[len(pathsplit)-1]
				fullpath = strings.TrimSpace(tmp[1])
			}
			frames = append(frames, []string{fullpath, fileline, method})
			if method == "main.main" {
				break
			}
		}
		// calculate column widths
		widths := make([]int, 3)
		for _, f := range frames {
			for i, s := range f {
				if len(s) > widths[i] {
					widths[i] = len(s)
				}
			}
		}
		// print pretty stacktrace
		for _, f := range frames {
			method := f[2]
			for i := 0; i < 2; i++ {
				if widths[i] > 0 {
					pad := strings.Repeat(" ", widths[i]-len(f[i]))
					fmt.Fprintf(os.Stderr, "%s%s | ", f[i], pad)
				}
			}
			fmt.Fprintf(os.Stderr, "%s()\n", method)
		}
	}
	fmt.Fprintf(os.Stderr, "%s\n", strings.Repeat("-", 40))
}
