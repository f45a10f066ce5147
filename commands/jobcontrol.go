package commands

import (
	"fmt"
)

func targetArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// Fg resumes a job in the foreground and waits for it.
func Fg(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "fg [%job | pid]",
		Short: "Move a job to the foreground, continuing it if it was suspended.",
	}

	opts := cmd.Flags()
	return cmd.Run(s, args, func() int {
		job, err := s.Jobs.Fg(s.Context(), targetArg(opts.Args()))
		if err != nil {
			fmt.Fprintf(s.Stderr(), "fg: %v\n", err)
			return 1
		}
		return jobStatus(job, nil)
	})
}

// Bg continues a suspended job in the background.
func Bg(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "bg [%job | pid]",
		Short: "Continue a suspended job in the background.",
	}

	opts := cmd.Flags()
	return cmd.Run(s, args, func() int {
		if _, err := s.Jobs.Bg(targetArg(opts.Args())); err != nil {
			fmt.Fprintf(s.Stderr(), "bg: %v\n", err)
			return 1
		}
		return 0
	})
}

// Jobs lists the tracked jobs.
func Jobs(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "jobs",
		Short: "Display the status of jobs.",
	}

	return cmd.Run(s, args, func() int {
		if err := s.Jobs.Jobs(s.Stdout()); err != nil {
			fmt.Fprintf(s.Stderr(), "jobs: %v\n", err)
			return 1
		}
		return 0
	})
}

func init() {
	addResidentBuiltin("fg", Fg)
	addResidentBuiltin("bg", Bg)
	addResidentBuiltin("jobs", Jobs)
}
