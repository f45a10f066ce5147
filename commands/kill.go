package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

var errUnknownSignal = errors.New("invalid signal specification")

// parseSignal accepts a signal number or a name with or without the SIG
// prefix, in any case.
func parseSignal(spec string) (unix.Signal, error) {
	if n, err := strconv.Atoi(spec); err == nil {
		if n <= 0 || n >= 65 {
			return 0, fmt.Errorf("%s: %w", spec, errUnknownSignal)
		}
		return unix.Signal(n), nil
	}

	name := strings.ToUpper(spec)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	if sig := unix.SignalNum(name); sig != 0 {
		return sig, nil
	}
	return 0, fmt.Errorf("%s: %w", spec, errUnknownSignal)
}

// Kill sends a signal to jobs or processes.
func Kill(s *Shell, args []string) int {
	// Rewrite the traditional "kill -SIG" form for the flag parser.
	if len(args) > 1 && strings.HasPrefix(args[1], "-") && len(args[1]) > 1 {
		switch args[1] {
		case "-s", "-l", "-h", "--help", "--":
		default:
			args = append([]string{args[0], "-s", args[1][1:]}, args[2:]...)
		}
	}

	cmd := &SimpleCommand{
		Use:   "kill [-s sigspec | -sigspec] %job | pid ... or kill -l",
		Short: "Send a signal to a job or process, SIGTERM by default.",
	}

	opts := cmd.Flags()
	sigSpec := opts.String('s', "TERM", "signal to send, by name or number")
	list := opts.Bool('l', "list signal names")

	return cmd.Run(s, args, func() int {
		w := s.Stdout()
		if *list {
			for sig := unix.Signal(1); sig < 32; sig++ {
				fmt.Fprintf(w, "%2d) %s\n", sig, unix.SignalName(sig))
			}
			return 0
		}

		sig, err := parseSignal(*sigSpec)
		if err != nil {
			fmt.Fprintf(s.Stderr(), "kill: %v\n", err)
			return 1
		}

		targets := opts.Args()
		if len(targets) == 0 {
			cmd.PrintHelp(s.Stderr())
			return 1
		}

		ret := 0
		for _, target := range targets {
			if err := s.killTarget(target, sig); err != nil {
				fmt.Fprintf(s.Stderr(), "kill: %v\n", err)
				ret = 1
			}
		}
		return ret
	})
}

func (s *Shell) killTarget(target string, sig unix.Signal) error {
	if strings.HasPrefix(target, "%") {
		_, err := s.Jobs.Kill(target, sig)
		return err
	}

	pid, err := strconv.Atoi(target)
	if err != nil {
		return fmt.Errorf("%s: arguments must be process or job IDs", target)
	}
	if _, tracked := s.Jobs.Table.ByPID(pid); tracked {
		// Every stage of the job gets the signal, not just the last one.
		_, err := s.Jobs.Kill(target, sig)
		return err
	}
	if err := unix.Kill(pid, sig); err != nil {
		return fmt.Errorf("(%d) - %w", pid, err)
	}
	return nil
}

func init() {
	addResidentBuiltin("kill", Kill)
}
