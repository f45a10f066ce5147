// Package redirect strips redirection operators out of an argument list and
// opens the files they name.
package redirect

import (
	"errors"
	"fmt"
	"os"
)

const (
	// In reads standard input from a file that must exist.
	In = "<"
	// Out truncates or creates a file for standard output.
	Out = ">"
	// Append appends to or creates a file for standard output.
	Append = ">>"

	// FileMode is the permission used when an output file is created,
	// owner and group read/write, world read.
	FileMode os.FileMode = 0664
)

// ErrMissingTarget is returned when an operator is the last token.
var ErrMissingTarget = errors.New("syntax error: missing redirection target")

// IsOperator reports whether the token is one of the redirection operators.
func IsOperator(token string) bool {
	return token == In || token == Out || token == Append
}

// Plan is the outcome of resolving one command segment. It owns the files it
// opened until Close is called; a launched child holds its own duplicates.
type Plan struct {
	// Args is the argument list with every operator and target removed.
	Args []string
	// Stdin replaces standard input when non-nil.
	Stdin *os.File
	// Stdout replaces standard output when non-nil.
	Stdout *os.File
}

// Close releases every file the plan opened. It is safe to call more than once.
func (p *Plan) Close() error {
	var lastErr error
	for _, f := range []**os.File{&p.Stdin, &p.Stdout} {
		if *f == nil {
			continue
		}
		if err := (*f).Close(); err != nil {
			lastErr = err
		}
		*f = nil
	}
	return lastErr
}

// Empty is true if the plan redirects nothing.
func (p *Plan) Empty() bool {
	return p.Stdin == nil && p.Stdout == nil
}

func open(op, name string) (*os.File, error) {
	switch op {
	case In:
		return os.Open(name)
	case Out:
		return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, FileMode)
	default:
		return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, FileMode)
	}
}

// Redirection is one operator together with the file it names.
type Redirection struct {
	Op     string
	Target string
}

// Command is one pipeline stage with its redirections separated from its
// arguments. Words that only look like operators, because they were quoted,
// stay in Args.
type Command struct {
	Args         []string
	Redirections []Redirection
}

// Split separates redirections from a plain argument list. Every token
// spelling an operator is taken as one, callers that know which words were
// quoted build the Command themselves.
func Split(args []string) (Command, error) {
	var cmd Command

	for i := 0; i < len(args); i++ {
		tok := args[i]
		if !IsOperator(tok) {
			cmd.Args = append(cmd.Args, tok)
			continue
		}

		if i+1 >= len(args) || IsOperator(args[i+1]) {
			return Command{}, fmt.Errorf("%s: %w", tok, ErrMissingTarget)
		}
		i++
		cmd.Redirections = append(cmd.Redirections, Redirection{Op: tok, Target: args[i]})
	}

	return cmd, nil
}

// Open opens each redirection target in turn. A later redirection of the
// same stream replaces (and closes) an earlier one. On error every file
// opened so far is closed and the plan is discarded.
func (c Command) Open() (*Plan, error) {
	plan := &Plan{Args: c.Args}

	for _, r := range c.Redirections {
		if r.Target == "" {
			plan.Close()
			return nil, fmt.Errorf("%s: %w", r.Op, ErrMissingTarget)
		}

		fd, err := open(r.Op, r.Target)
		if err != nil {
			plan.Close()
			return nil, err
		}

		target := &plan.Stdout
		if r.Op == In {
			target = &plan.Stdin
		}
		if *target != nil {
			(*target).Close()
		}
		*target = fd
	}

	return plan, nil
}

// Resolve splits args and opens their redirections.
func Resolve(args []string) (*Plan, error) {
	cmd, err := Split(args)
	if err != nil {
		return nil, err
	}
	return cmd.Open()
}
