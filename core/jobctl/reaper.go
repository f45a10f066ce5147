package jobctl

import (
	"context"
	"os"
	"os/signal"

	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/josephlewis42/jobsh/core/logger"
	"golang.org/x/sys/unix"
)

// WaitFunc reports one pending child status change without blocking. It
// returns a pid of 0 when no child has anything to report.
type WaitFunc func(status *unix.WaitStatus) (pid int, err error)

func waitAny(status *unix.WaitStatus) (int, error) {
	return unix.Wait4(-1, status, unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED, nil)
}

// Notification is a job transition observed off the prompt loop, queued for
// the prompt loop to announce.
type Notification struct {
	Job    jobs.Job
	Status jobs.Status
}

// classify maps a raw wait status onto a job status.
func classify(ws unix.WaitStatus) (jobs.Status, bool) {
	switch {
	case ws.Stopped():
		return jobs.StatusStopped, true
	case ws.Continued():
		return jobs.StatusContinued, true
	case ws.Exited():
		return jobs.StatusExited, true
	case ws.Signaled():
		return jobs.StatusSignaled, true
	default:
		return 0, false
	}
}

// Reap collects every child status change currently pending and applies it
// to the job table. Several children may change state between two SIGCHLD
// deliveries, so it loops until nothing is left. It returns the number of
// statuses collected.
func (c *Controller) Reap() int {
	c.spawnMu.Lock()
	defer c.spawnMu.Unlock()

	reaped := 0
	for {
		var ws unix.WaitStatus
		pid, err := c.wait(&ws)
		if err == unix.EINTR {
			continue
		}
		if err != nil || pid <= 0 {
			// ECHILD: nothing left to wait for.
			return reaped
		}
		reaped++

		status, ok := classify(ws)
		if !ok {
			continue
		}

		// Statuses for processes the shell never tracked (untracked jobs,
		// non-final pipeline stages) are dropped here.
		job, tracked := c.Table.Apply(pid, status)
		if !tracked {
			continue
		}
		c.enqueue(Notification{Job: job, Status: status})
	}
}

func (c *Controller) enqueue(n Notification) {
	select {
	case c.notes <- n:
	default:
		// The prompt loop is behind, the table already holds the truth.
	}
}

// Relay forwards a terminal control signal the shell received to the
// foreground job's process group. SIGINT terminates the job and SIGTSTP
// suspends it; either way the job gives up the foreground.
func (c *Controller) Relay(sig os.Signal) {
	var state jobs.State
	switch sig {
	case unix.SIGINT:
		state = jobs.Terminated
	case unix.SIGTSTP:
		state = jobs.Suspended
	default:
		return
	}

	job, ok := c.Table.Interrupt(state)
	if !ok {
		return
	}

	sysSig := sig.(unix.Signal)
	event := &logger.SignalRelayed{
		JobId:  job.ID,
		Pgid:   job.PGID,
		Signal: sysSig.String(),
	}
	if err := job.Signal(sysSig); err != nil {
		event.Error = err.Error()
	}
	c.record(event)
}

// HandleSignal dispatches one signal delivered to the shell.
func (c *Controller) HandleSignal(sig os.Signal) {
	switch sig {
	case unix.SIGCHLD:
		c.Reap()
	case unix.SIGINT, unix.SIGTSTP:
		c.Relay(sig)
	default:
		// SIGQUIT is swallowed so it can't kill the shell.
	}
}

// Listen installs the shell's signal handlers and processes signals on a
// single goroutine until ctx is done. It returns once the handlers are
// installed; any child status already pending is collected first.
func (c *Controller) Listen(ctx context.Context) {
	sigs := make(chan os.Signal, 16)
	signal.Notify(sigs, unix.SIGCHLD, unix.SIGINT, unix.SIGTSTP, unix.SIGQUIT)

	c.Reap()

	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigs:
				c.HandleSignal(sig)
			}
		}
	}()
}

// Notifications returns every queued transition without blocking.
func (c *Controller) Notifications() []Notification {
	var out []Notification
	for {
		select {
		case n := <-c.notes:
			out = append(out, n)
		default:
			return out
		}
	}
}
