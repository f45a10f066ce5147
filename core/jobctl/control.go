// Package jobctl launches jobs, hands them the terminal and keeps the job
// table in sync with what the operating system reports about them.
package jobctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/josephlewis42/jobsh/core/launcher"
	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/josephlewis42/jobsh/core/redirect"
	"golang.org/x/sys/unix"
)

const notificationBacklog = 128

// Recorder stores events, a *logger.SessionLogger satisfies it.
type Recorder interface {
	Record(event logger.LogType) error
}

// Controller coordinates the job table, the launcher and the terminal.
type Controller struct {
	Table    *jobs.Table
	Launcher *launcher.Launcher
	Terminal *Terminal
	Events   Recorder

	// Stdout receives job lines, Stderr receives launch errors.
	Stdout io.Writer
	Stderr io.Writer

	// spawnMu serializes launching with reaping so a child that exits
	// immediately is never reaped before its job is registered.
	spawnMu sync.Mutex
	wait    WaitFunc
	notes   chan Notification

	shownMu sync.Mutex
	shown   map[int]jobs.State
}

// NewController creates a controller around an existing table and launcher.
// A nil terminal disables terminal handoff.
func NewController(table *jobs.Table, l *launcher.Launcher, term *Terminal, stdout, stderr io.Writer) *Controller {
	return &Controller{
		Table:    table,
		Launcher: l,
		Terminal: term,
		Stdout:   stdout,
		Stderr:   stderr,
		wait:     waitAny,
		notes:    make(chan Notification, notificationBacklog),
		shown:    make(map[int]jobs.State),
	}
}

// SetWaitFunc replaces the function used to collect child statuses.
func (c *Controller) SetWaitFunc(w WaitFunc) {
	c.wait = w
}

func (c *Controller) record(event logger.LogType) {
	if c.Events != nil {
		c.Events.Record(event)
	}
}

// announce prints the job line unless that exact state was already shown.
// A final state is printed once and then forgotten.
func (c *Controller) announce(j jobs.Job) {
	c.shownMu.Lock()
	prev, seen := c.shown[j.ID]
	already := seen && prev == j.State
	if j.State.Final() {
		delete(c.shown, j.ID)
	} else {
		c.shown[j.ID] = j.State
	}
	c.shownMu.Unlock()

	if !already {
		c.Table.Display(c.Stdout, j)
	}
}

// pruneShown forgets jobs that left the table without their final state
// being announced.
func (c *Controller) pruneShown() {
	c.shownMu.Lock()
	defer c.shownMu.Unlock()
	for id, state := range c.shown {
		if state.Final() {
			continue
		}
		if _, ok := c.Table.ByID(id); !ok {
			delete(c.shown, id)
		}
	}
}

// markShown records a state the user saw some other way, such as a
// foreground job finishing, so the notification for it stays quiet.
func (c *Controller) markShown(j jobs.Job) {
	c.shownMu.Lock()
	defer c.shownMu.Unlock()
	c.shown[j.ID] = j.State
}

// Run starts the pipeline described by segments and tracks it as one job.
// A foreground job is given the terminal and waited for until it finishes
// or is suspended. Stages that fail to start are reported on Stderr and the
// rest of the pipeline still runs.
func (c *Controller) Run(ctx context.Context, segments []redirect.Command, command string, background bool) (jobs.Job, error) {
	l := *c.Launcher
	return c.run(ctx, &l, segments, command, background)
}

// RunWithInput is Run with the first stage reading from input instead of the
// shell's standard input. The caller keeps ownership of input.
func (c *Controller) RunWithInput(ctx context.Context, input *os.File, segments []redirect.Command, command string, background bool) (jobs.Job, error) {
	l := *c.Launcher
	l.Stdin = input
	return c.run(ctx, &l, segments, command, background)
}

func (c *Controller) run(ctx context.Context, l *launcher.Launcher, segments []redirect.Command, command string, background bool) (jobs.Job, error) {
	if !background && c.Terminal != nil {
		l.Foreground = true
		l.Ctty = c.Terminal.Fd()
	}

	c.spawnMu.Lock()
	group, err := l.Launch(segments)
	if group != nil {
		for _, skipped := range group.Skipped {
			fmt.Fprintln(c.Stderr, skipped)
			c.recordSkipped(skipped)
		}
	}
	if err != nil {
		c.spawnMu.Unlock()
		return jobs.Job{}, err
	}

	job, err := c.Table.Register(group.Last, group.PGID, command, !background)
	c.spawnMu.Unlock()

	if err != nil {
		// The processes run on untracked, the reaper drops their statuses.
		fmt.Fprintln(c.Stderr, err)
		c.record(&logger.JobUntracked{Pid: group.Last, Command: command, Error: err.Error()})
		return jobs.Job{}, err
	}

	c.record(&logger.JobStarted{
		JobId:      job.ID,
		Pid:        job.PID,
		Pgid:       job.PGID,
		Stages:     len(group.PIDs),
		Foreground: job.Foreground,
		Command:    command,
	})

	if background {
		c.announce(job)
		return job, nil
	}
	return c.waitForeground(ctx, job)
}

func (c *Controller) recordSkipped(err error) {
	var stageErr *launcher.StageError
	if errors.As(err, &stageErr) && errors.Is(err, launcher.ErrNotFound) {
		c.record(&logger.CommandNotFound{Command: stageErr.Args, Error: err.Error()})
		return
	}
	var cmd []string
	if stageErr != nil {
		cmd = stageErr.Args
	}
	c.record(&logger.InvalidInvocation{Command: cmd, Error: err.Error()})
}

// waitForeground hands the terminal to the job and blocks until it
// finishes or is suspended.
func (c *Controller) waitForeground(ctx context.Context, job jobs.Job) (jobs.Job, error) {
	if err := c.Terminal.Give(job.PGID); err != nil {
		fmt.Fprintf(c.Stderr, "terminal: %v\n", err)
	}
	defer func() {
		if err := c.Terminal.Reclaim(); err != nil {
			fmt.Fprintf(c.Stderr, "terminal: %v\n", err)
		}
	}()

	done, err := c.Table.Await(ctx, job.ID)
	if err != nil {
		return job, err
	}
	done.Command = job.Command
	done.PID, done.PGID = job.PID, job.PGID

	if done.State == jobs.Suspended {
		c.announce(done)
	} else {
		c.markShown(done)
	}
	return done, nil
}

// targetError is returned when fg, bg or kill can't find their target.
type targetError struct {
	msg string
}

func (e *targetError) Error() string { return e.msg }
func (e *targetError) Unwrap() error { return jobs.ErrNoSuchJob }

// Resolve finds the job a builtin argument names. "%N" is a job id, a bare
// number is the pid of the job's representative process and an empty target
// is the most recently started job.
func (c *Controller) Resolve(target string) (jobs.Job, error) {
	switch {
	case target == "":
		list := c.Table.List()
		if len(list) == 0 {
			return jobs.Job{}, &targetError{"no current job"}
		}
		return list[len(list)-1], nil

	case strings.HasPrefix(target, "%"):
		id, err := strconv.Atoi(target[1:])
		if err != nil {
			return jobs.Job{}, &targetError{fmt.Sprintf("error job number: %s", target[1:])}
		}
		job, ok := c.Table.ByID(id)
		if !ok {
			return jobs.Job{}, &targetError{fmt.Sprintf("error job number: %s", target[1:])}
		}
		return job, nil

	default:
		pid, err := strconv.Atoi(target)
		if err != nil || pid <= 0 {
			return jobs.Job{}, &targetError{fmt.Sprintf("error pid: %s", target)}
		}
		job, ok := c.Table.ByPID(pid)
		if !ok {
			return jobs.Job{}, &targetError{fmt.Sprintf("process didn't exist, pid: %s", target)}
		}
		return job, nil
	}
}

// Fg moves a job into the foreground, continuing it if it was suspended, and
// waits for it like a freshly started foreground job.
func (c *Controller) Fg(ctx context.Context, target string) (jobs.Job, error) {
	job, err := c.Resolve(target)
	if err != nil {
		return jobs.Job{}, err
	}

	if err := c.Terminal.Give(job.PGID); err != nil {
		fmt.Fprintf(c.Stderr, "terminal: %v\n", err)
	}

	wasSuspended := job.State == jobs.Suspended
	if wasSuspended {
		if err := job.Signal(unix.SIGCONT); err != nil {
			c.Terminal.Reclaim()
			return job, fmt.Errorf("send SIGCONT error: %w", err)
		}
	}

	job, err = c.Table.Resume(job.ID, true)
	if err != nil {
		c.Terminal.Reclaim()
		return job, err
	}
	c.announce(job)

	return c.waitForeground(ctx, job)
}

// Bg continues a job without giving it the terminal.
func (c *Controller) Bg(target string) (jobs.Job, error) {
	job, err := c.Resolve(target)
	if err != nil {
		return jobs.Job{}, err
	}

	if err := job.Signal(unix.SIGCONT); err != nil {
		return job, fmt.Errorf("send SIGCONT error: %w", err)
	}

	job, err = c.Table.Resume(job.ID, false)
	if err != nil {
		return job, err
	}
	c.announce(job)
	return job, nil
}

// Kill delivers sig to the process group of the job named by target.
func (c *Controller) Kill(target string, sig unix.Signal) (jobs.Job, error) {
	job, err := c.Resolve(target)
	if err != nil {
		return jobs.Job{}, err
	}
	return job, job.Signal(sig)
}

// Jobs writes one line per tracked job to w.
func (c *Controller) Jobs(w io.Writer) error {
	for _, j := range c.Table.List() {
		if err := c.Table.Display(w, j); err != nil {
			return err
		}
		c.markShown(j)
	}
	return nil
}

// DrainNotifications logs every queued transition and announces the ones
// the user hasn't seen yet: suspensions and the end of background jobs.
func (c *Controller) DrainNotifications() {
	for _, n := range c.Notifications() {
		c.record(&logger.JobStateChange{
			JobId:   n.Job.ID,
			Pid:     n.Job.PID,
			Status:  n.Status.String(),
			State:   n.Job.State.String(),
			Command: n.Job.Command,
		})

		switch {
		case n.Job.State == jobs.Suspended, n.Job.State.Final():
			c.announce(n.Job)
		}
	}
	c.pruneShown()
}
