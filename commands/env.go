package commands

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

func printEnviron(s *Shell) {
	env := os.Environ()
	sort.Strings(env)
	for _, envDef := range env {
		fmt.Fprintln(s.Stdout(), envDef)
	}
}

// Set prints the environment or replaces the positional parameters.
func Set(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "set [ARG] ...",
		Short: "Print the environment, or set $1-$9 to the given arguments.",
	}

	opts := cmd.Flags()
	return cmd.Run(s, args, func() int {
		if opts.NArgs() == 0 {
			printEnviron(s)
			return 0
		}

		s.Params.Set(opts.Args())
		return 0
	})
}

// Shift moves the positional parameters left.
func Shift(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "shift [n]",
		Short: "Shift $1-$9 left n times, once by default.",
	}

	opts := cmd.Flags()
	return cmd.Run(s, args, func() int {
		count := ""
		if opts.NArgs() > 0 {
			count = opts.Arg(0)
		}

		if err := s.Params.ShiftArg(count); err != nil {
			fmt.Fprintf(s.Stderr(), "shift: %v\n", err)
			return 1
		}
		return 0
	})
}

// Declare sets environment variables.
func Declare(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "declare [name=value] ...",
		Short: "Set environment variables, or print them all.",
	}

	opts := cmd.Flags()
	return cmd.Run(s, args, func() int {
		if opts.NArgs() == 0 {
			printEnviron(s)
			return 0
		}

		ret := 0
		for _, arg := range opts.Args() {
			name, value, ok := cutAssignment(arg)
			if !ok {
				fmt.Fprintf(s.Stderr(), "declare: error argument %q\n", arg)
				ret = 1
				continue
			}
			if err := os.Setenv(name, value); err != nil {
				fmt.Fprintf(s.Stderr(), "declare: %v\n", err)
				ret = 1
			}
		}
		return ret
	})
}

func cutAssignment(arg string) (name, value string, ok bool) {
	i := strings.Index(arg, "=")
	if i <= 0 {
		return "", "", false
	}
	return arg[:i], arg[i+1:], true
}

// Unset removes environment variables.
func Unset(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "unset name ...",
		Short: "Remove variables from the environment.",
	}

	opts := cmd.Flags()
	return cmd.Run(s, args, func() int {
		for _, name := range opts.Args() {
			os.Unsetenv(name)
		}
		return 0
	})
}

func init() {
	addResidentBuiltin("set", Set)
	addResidentBuiltin("shift", Shift)
	addResidentBuiltin("declare", Declare)
	addResidentBuiltin("unset", Unset)
}
