package commands

import "sort"

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]ShellBuiltin)

// residentBuiltins change the shell's own state. They always run inside the
// shell, even when backgrounded or at the head of a pipeline.
var residentBuiltins = make(map[string]bool)

type ShellBuiltin interface {
	Main(s *Shell, args []string) int
}

type ShellBuiltinFunc func(s *Shell, args []string) int

func (f ShellBuiltinFunc) Main(s *Shell, args []string) int {
	return f(s, args)
}

var _ ShellBuiltin = (ShellBuiltinFunc)(nil)

// addBuiltin registers a builtin that may be replaced by a program of the
// same name in pipelines and background jobs.
func addBuiltin(name string, f ShellBuiltinFunc) {
	AllBuiltins[name] = f
}

// addResidentBuiltin registers a builtin that always runs in the shell.
func addResidentBuiltin(name string, f ShellBuiltinFunc) {
	AllBuiltins[name] = f
	residentBuiltins[name] = true
}

// IsResident reports whether name is a builtin that must run in the shell.
func IsResident(name string) bool {
	return residentBuiltins[name]
}

// ListBuiltins returns the names of every builtin in order.
func ListBuiltins() []string {
	var out []string
	for name := range AllBuiltins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
