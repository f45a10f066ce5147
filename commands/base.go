package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/josephlewis42/jobsh/core/config"
	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/mattn/go-isatty"
	getopt "github.com/pborman/getopt/v2"
)

type SimpleCommand struct {
	// Use holds a one line usage string
	Use string
	// Short holds a sone line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not.
	// If this is non-nil when Run() is called, then the default help flag isn't
	// added.
	ShowHelp *bool
	// NeverBail skips interacting with stdout/stderr on failure and
	// always runs the callback.
	NeverBail bool

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}

	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run the command, if flag parsing was succcessful call the callback.
func (s *SimpleCommand) Run(sh *Shell, args []string, callback func() int) int {
	opts := s.Flags()

	// Add help flag if not overridden.
	if s.ShowHelp == nil {
		s.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	err := opts.Getopt(args, nil)
	if err != nil {
		sh.events.Record(&logger.InvalidInvocation{
			Command: args,
			Error:   err.Error(),
		})
	}

	if err != nil && !s.NeverBail {
		fmt.Fprintf(sh.Stderr(), "error: %s\n\n", err)

		s.PrintHelp(sh.Stdout())
		return 1
	}

	if *s.ShowHelp {
		s.PrintHelp(sh.Stdout())
		return 0
	}

	return callback()
}

var (
	ColorBoldBlue  = color.New(color.FgBlue, color.Bold)
	ColorBoldGreen = color.New(color.FgGreen, color.Bold)
	ColorBoldRed   = color.New(color.FgRed, color.Bold)
)

// ColorPrinter decides whether output to a stream gets colored.
type ColorPrinter struct {
	// Mode is one of config.ColorAlways, config.ColorAuto or config.ColorNever.
	Mode string
	// Out is the stream checked for a terminal in auto mode.
	Out *os.File
}

func (c *ColorPrinter) ShouldColor() bool {
	if c == nil {
		return false
	}

	switch {
	case c.Mode == config.ColorNever:
		return false
	case c.Mode == config.ColorAlways:
		return true
	default:
		return c.Out != nil && isatty.IsTerminal(c.Out.Fd())
	}
}

func (c *ColorPrinter) Sprintf(col *color.Color, format string, a ...interface{}) string {
	if c.ShouldColor() {
		// Detection was already done, override the library's own check.
		forced := *col
		forced.EnableColor()
		return forced.Sprintf(format, a...)
	}
	return fmt.Sprintf(format, a...)
}
