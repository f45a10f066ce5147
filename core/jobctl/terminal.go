package jobctl

import (
	"errors"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
)

// Terminal hands the controlling terminal back and forth between the shell's
// process group and the foreground job. A nil Terminal does nothing, which is
// what a shell reading from a pipe or file wants.
type Terminal struct {
	fd        int
	shellPgid int
}

// NewTerminal returns a Terminal for f, or nil if f is not a terminal.
func NewTerminal(f *os.File) *Terminal {
	if f == nil || !isatty.IsTerminal(f.Fd()) {
		return nil
	}
	return &Terminal{fd: int(f.Fd())}
}

// Fd is the descriptor of the controlling terminal.
func (t *Terminal) Fd() int {
	return t.fd
}

// Init puts the shell in its own process group and makes that group the
// terminal's foreground group.
func (t *Terminal) Init() error {
	if t == nil {
		return nil
	}

	// A session leader can't change its group, it already owns one.
	if err := unix.Setpgid(0, 0); err != nil && !errors.Is(err, unix.EPERM) {
		return err
	}
	t.shellPgid = unix.Getpgrp()
	return t.setForeground(t.shellPgid)
}

// Give makes pgid the terminal's foreground process group.
func (t *Terminal) Give(pgid int) error {
	if t == nil {
		return nil
	}
	return t.setForeground(pgid)
}

// Reclaim returns the terminal to the shell.
func (t *Terminal) Reclaim() error {
	if t == nil {
		return nil
	}
	return t.setForeground(t.shellPgid)
}

func (t *Terminal) setForeground(pgid int) error {
	// tcsetpgrp from a background group raises SIGTTOU. It is only ignored
	// for the duration of the call so children never inherit the ignore.
	signal.Ignore(unix.SIGTTOU)
	defer signal.Reset(unix.SIGTTOU)

	return unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, pgid)
}
