// Package launcher starts the processes of a pipeline.
package launcher

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/josephlewis42/jobsh/core/pipeline"
	"github.com/josephlewis42/jobsh/core/redirect"
	"golang.org/x/sys/unix"
)

var (
	// ErrNotFound is the error resulting if a path search failed to find an
	// executable file.
	ErrNotFound = exec.ErrNotFound

	// ErrEmptyCommand is returned for a stage with no program name.
	ErrEmptyCommand = errors.New("empty command")
	// ErrNothingStarted is returned when no stage of a pipeline could start.
	ErrNothingStarted = errors.New("no process started")
	// ErrAborted is returned when the last stage failed to start and the
	// stages already running were terminated.
	ErrAborted = errors.New("pipeline aborted")
)

// StageError describes a stage that could not be started.
type StageError struct {
	Args []string
	Err  error
}

func (e *StageError) Error() string {
	name := ""
	if len(e.Args) > 0 {
		name = e.Args[0]
	}
	if errors.Is(e.Err, ErrNotFound) {
		return fmt.Sprintf("Command %q not found", name)
	}
	if name == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", name, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Group is a started pipeline.
type Group struct {
	// PGID is the process group shared by every started stage.
	PGID int
	// PIDs of the started stages in pipeline order.
	PIDs []int
	// Last is the pid of the final stage, the job's representative process.
	Last int
	// Skipped holds one error per stage that was not started.
	Skipped []error
}

// Launcher creates child processes with the shell's standard streams as
// defaults.
type Launcher struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// Environ returns the environment for new processes, os.Environ if nil.
	Environ func() []string
	// LookPath resolves program names, exec.LookPath if nil.
	LookPath func(file string) (string, error)
	// Kill delivers signals, unix.Kill if nil.
	Kill func(pid int, sig unix.Signal) error

	// Foreground makes the group the foreground process group of the
	// terminal open as Ctty. The group leader does it itself before exec,
	// so no stage can read the terminal while still in the background.
	Foreground bool
	Ctty       int
}

// New creates a launcher bound to the current process's standard streams.
func New() *Launcher {
	return &Launcher{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

func (l *Launcher) environ() []string {
	if l.Environ != nil {
		return l.Environ()
	}
	return os.Environ()
}

func (l *Launcher) lookPath(file string) (string, error) {
	if l.LookPath != nil {
		return l.LookPath(file)
	}
	return exec.LookPath(file)
}

func (l *Launcher) kill(pid int, sig unix.Signal) error {
	if l.Kill != nil {
		return l.Kill(pid, sig)
	}
	return unix.Kill(pid, sig)
}

// Start creates one process running argv with the given standard streams.
// The process joins group pgid, or leads a new group when pgid is 0. The
// caller owns the returned pid and must reap it with wait4.
func (l *Launcher) Start(argv []string, stdin, stdout *os.File, pgid int) (int, error) {
	if len(argv) == 0 {
		return 0, &StageError{Err: ErrEmptyCommand}
	}

	path, err := l.lookPath(argv[0])
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = ErrNotFound
		}
		return 0, &StageError{Args: argv, Err: err}
	}

	if stdin == nil {
		stdin = l.Stdin
	}
	if stdout == nil {
		stdout = l.Stdout
	}

	// Only the three standard streams are handed to the child, every other
	// descriptor the shell holds is close-on-exec. Signal handlers installed
	// with os/signal revert to their defaults across exec.
	proc, err := os.StartProcess(path, argv, &os.ProcAttr{
		Env:   l.environ(),
		Files: []*os.File{stdin, stdout, l.Stderr},
		Sys:   l.sysProcAttr(pgid),
	})
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			err = pathErr.Err
		}
		return 0, &StageError{Args: argv, Err: err}
	}

	pid := proc.Pid
	// The shell reaps children itself with wait4, drop the runtime handle.
	proc.Release()

	return pid, nil
}

// sysProcAttr places a new process in group pgid, a new group led by the
// process when pgid is 0.
func (l *Launcher) sysProcAttr(pgid int) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    pgid,
	}
	if l.Foreground && pgid == 0 {
		attr.Foreground = true
		attr.Ctty = l.Ctty
	}
	return attr
}

// Launch starts one process per segment, connecting adjacent segments with
// pipes and applying each segment's redirections on top of that wiring.
//
// A segment whose redirection or program cannot be resolved is skipped and
// recorded in Group.Skipped, its neighbours see end-of-stream. If the last
// segment cannot start, any stages already running are sent SIGTERM and
// ErrAborted is returned. Every descriptor the shell opened is closed before
// Launch returns.
func (l *Launcher) Launch(segments []redirect.Command) (*Group, error) {
	plan, err := pipeline.Build(len(segments))
	if err != nil {
		return nil, err
	}
	defer plan.Close()

	group := &Group{}
	lastStarted := false

	for i, segment := range segments {
		pid, err := l.startSegment(segment, plan.Stages[i], group.PGID)
		plan.Release(i)
		if err != nil {
			group.Skipped = append(group.Skipped, err)
			continue
		}

		if group.PGID == 0 {
			group.PGID = pid
		}
		group.PIDs = append(group.PIDs, pid)
		if i == len(segments)-1 {
			group.Last = pid
			lastStarted = true
		}
	}

	switch {
	case len(group.PIDs) == 0:
		return group, ErrNothingStarted
	case !lastStarted:
		if err := l.kill(-group.PGID, unix.SIGTERM); err != nil {
			group.Skipped = append(group.Skipped, fmt.Errorf("terminate group %d: %w", group.PGID, err))
		}
		return group, ErrAborted
	}

	return group, nil
}

func (l *Launcher) startSegment(segment redirect.Command, wiring pipeline.Wiring, pgid int) (int, error) {
	redir, err := segment.Open()
	if err != nil {
		return 0, &StageError{Args: segment.Args, Err: err}
	}
	defer redir.Close()

	// Pipe wiring first, then the redirection plan, so an explicit file
	// redirect overrides the pipe on the same stream.
	stdin, stdout := wiring.Stdin, wiring.Stdout
	if redir.Stdin != nil {
		stdin = redir.Stdin
	}
	if redir.Stdout != nil {
		stdout = redir.Stdout
	}

	return l.Start(redir.Args, stdin, stdout, pgid)
}
