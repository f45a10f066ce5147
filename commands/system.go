package commands

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// EnvParent is set to the shell's path for programs the shell replaces
// itself with.
const EnvParent = "parent"

// Exit leaves the shell.
func Exit(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "exit [n]",
		Short: "Exit the shell with status n, 0 by default.",
	}

	opts := cmd.Flags()
	return cmd.Run(s, args, func() int {
		code := 0
		if opts.NArgs() > 0 {
			n, err := strconv.Atoi(opts.Arg(0))
			if err != nil {
				fmt.Fprintf(s.Stderr(), "exit: %s: numeric argument required\n", opts.Arg(0))
				return 2
			}
			code = n & 0xff
		}

		s.Quit = true
		s.exitCode = code
		return code
	})
}

// Exec replaces the shell with a program.
func Exec(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "exec program [ARG] ...",
		Short: "Replace the shell with the given program.",
	}

	opts := cmd.Flags()
	return cmd.Run(s, args, func() int {
		if opts.NArgs() == 0 {
			return 0
		}

		argv := opts.Args()
		path, err := exec.LookPath(argv[0])
		if err != nil {
			fmt.Fprintf(s.Stderr(), "exec: %s: command not found\n", argv[0])
			return 127
		}

		os.Setenv(EnvParent, s.Params.Get(0))
		err = unix.Exec(path, argv, os.Environ())

		// Only reached if the exec failed.
		fmt.Fprintf(s.Stderr(), "exec: %s: %v\n", argv[0], err)
		if errors.Is(err, unix.ENOENT) {
			return 127
		}
		return 126
	})
}

// Umask prints or sets the file mode creation mask.
func Umask(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "umask [mode]",
		Short: "Display or set the file mode creation mask, in octal.",
	}

	opts := cmd.Flags()
	return cmd.Run(s, args, func() int {
		if opts.NArgs() == 0 {
			current := unix.Umask(0)
			unix.Umask(current)
			fmt.Fprintf(s.Stdout(), "%04o\n", current)
			return 0
		}

		mask, err := strconv.ParseUint(opts.Arg(0), 8, 32)
		if err != nil || mask > 0777 {
			fmt.Fprintf(s.Stderr(), "umask: %s: octal number out of range\n", opts.Arg(0))
			return 1
		}
		unix.Umask(int(mask))
		return 0
	})
}

// Time prints the current date and time.
func Time(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "time",
		Short: "Display the current date and time.",
	}

	return cmd.Run(s, args, func() int {
		fmt.Fprintln(s.Stdout(), time.Now().Format(time.ANSIC))
		return 0
	})
}

// Help lists builtins or shows the help for one of them.
func Help(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "help [command]",
		Short: "Display information about builtin commands.",
	}

	opts := cmd.Flags()
	return cmd.Run(s, args, func() int {
		w := s.Stdout()
		if opts.NArgs() == 0 {
			fmt.Fprintln(w, "These shell commands are defined internally.")
			fmt.Fprintln(w, "Type `help name' to find out more about the command `name'.")
			fmt.Fprintln(w)
			for _, name := range ListBuiltins() {
				fmt.Fprintln(w, name)
			}
			return 0
		}

		name := opts.Arg(0)
		builtin, ok := AllBuiltins[name]
		if !ok {
			fmt.Fprintf(s.Stderr(), "help: error command %q\n", name)
			return 1
		}
		return builtin.Main(s, []string{name, "--help"})
	})
}

// History prints the lines entered in this session.
func History(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "history [-c]",
		Short: "Display the command history.",
	}

	opts := cmd.Flags()
	clearAll := opts.Bool('c', "clear the history")

	return cmd.Run(s, args, func() int {
		if *clearAll {
			s.history = nil
			if rl, ok := s.input.(*readlineSource); ok {
				rl.ResetHistory()
			}
			return 0
		}

		for i, line := range s.history {
			fmt.Fprintf(s.Stdout(), "% 5d  %s\n", i+1, line)
		}
		return 0
	})
}

func init() {
	addResidentBuiltin("exit", Exit)
	addResidentBuiltin("exec", Exec)
	addResidentBuiltin("umask", Umask)
	addResidentBuiltin("history", History)
	addBuiltin("time", Time)
	addBuiltin("help", Help)
}
