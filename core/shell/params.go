package shell

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
)

// PositionalCount is the number of positional parameters, $0 through $9.
const PositionalCount = 10

// ErrUndefined is wrapped by errors for variables that aren't set.
var ErrUndefined = errors.New("undefined variable")

// ErrBadShiftCount is returned when shift is given a count that isn't a
// positive integer.
var ErrBadShiftCount = errors.New("bad shift count")

// UndefinedError names the variable that could not be expanded.
type UndefinedError struct {
	Name string
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("error environ variable \"$%s\"", e.Name)
}

func (e *UndefinedError) Unwrap() error {
	return ErrUndefined
}

// Params holds the positional parameters and resolves variables against them
// and the environment.
type Params struct {
	mu   sync.RWMutex
	args [PositionalCount]string

	// LookupEnv reads environment variables, os.LookupEnv if nil.
	LookupEnv func(key string) (string, bool)
}

// NewParams creates parameters with $0 set to zero and $1 onwards taken
// from args; arguments past $9 are dropped.
func NewParams(zero string, args []string) *Params {
	p := &Params{}
	p.args[0] = zero
	p.Set(args)
	return p
}

// Get returns positional parameter n, or the empty string if it is unset or
// out of range.
func (p *Params) Get(n int) string {
	if n < 0 || n >= PositionalCount {
		return ""
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.args[n]
}

// Set replaces $1 through $9 with args. Parameters without a matching
// argument are cleared.
func (p *Params) Set(args []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 1; i < PositionalCount; i++ {
		p.args[i] = ""
		if i-1 < len(args) {
			p.args[i] = args[i-1]
		}
	}
}

// Shift moves $2 through $9 down by one position, n times. $9 is cleared on
// every shift.
func (p *Params) Shift(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: %d", ErrBadShiftCount, n)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for ; n > 0; n-- {
		copy(p.args[1:], p.args[2:])
		p.args[PositionalCount-1] = ""
	}
	return nil
}

// ShiftArg shifts by the count given as text, one if it is empty.
func (p *Params) ShiftArg(count string) error {
	if count == "" {
		return p.Shift(1)
	}
	n, err := strconv.Atoi(count)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadShiftCount, count)
	}
	return p.Shift(n)
}

// Positional returns $1 through $9.
func (p *Params) Positional() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, PositionalCount-1)
	copy(out, p.args[1:])
	return out
}

// Var resolves a variable name: a single digit names a positional parameter,
// anything else is looked up in the environment.
func (p *Params) Var(name string) (string, error) {
	if len(name) == 1 && isDigit(name[0]) {
		return p.Get(int(name[0] - '0')), nil
	}

	lookup := p.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if val, ok := lookup(name); ok {
		return val, nil
	}
	return "", &UndefinedError{Name: name}
}
