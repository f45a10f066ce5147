// Package jobs holds the job table shared by the prompt loop and the
// signal listener.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"golang.org/x/sys/unix"
)

const (
	// DefaultCapacity is the number of jobs tracked when no limit is configured.
	DefaultCapacity = 20
)

var (
	// ErrTableFull is returned when every slot in the table is occupied.
	ErrTableFull = errors.New("too many jobs")
	// ErrNoSuchJob is returned when a lookup matches no tracked job.
	ErrNoSuchJob = errors.New("no such job")
	// ErrDuplicatePID is returned when registering a pid that is already tracked.
	ErrDuplicatePID = errors.New("process already tracked")
)

// Signaler delivers a signal to a pid, negative pids address a process group.
type Signaler func(pid int, sig unix.Signal) error

// Job is a snapshot of one tracked unit of work.
type Job struct {
	// ID is unique for the lifetime of the table and never reused.
	ID int
	// PID is the representative process, the last stage of the pipeline.
	PID int
	// PGID is the process group every stage of the pipeline belongs to.
	PGID int
	// State is the lifecycle state at the time of the snapshot.
	State State
	// Foreground is set on at most one job at a time.
	Foreground bool
	// Command is the text the user typed, kept for display.
	Command string

	signal Signaler
}

// Signal delivers sig to every process in the job's process group.
func (j Job) Signal(sig unix.Signal) error {
	if j.signal == nil {
		return fmt.Errorf("job %d: no signaler", j.ID)
	}
	pgid := j.PGID
	if pgid <= 0 {
		pgid = j.PID
	}
	if err := j.signal(-pgid, sig); err != nil {
		return fmt.Errorf("signal %v to group %d: %w", sig, pgid, err)
	}
	return nil
}

// DisplayLine formats the job the way the jobs listing shows it.
func DisplayLine(j Job) string {
	return fmt.Sprintf("[%d]\t%s\t\t%s", j.ID, j.State, j.Command)
}

// Table is a fixed capacity registry of jobs.
//
// Slots are only freed by Apply when it observes an exit; the prompt loop
// registers, reads and flips flags but never retires a job itself.
type Table struct {
	mu      sync.Mutex
	slots   []*Job
	nextID  int
	signal  Signaler
	changed chan struct{}
	// final remembers how awaited jobs ended so a waiter that wakes after
	// the slot was freed still learns the outcome. awaited survives the
	// foreground flag, which Interrupt clears before the exit is reported.
	final   map[int]State
	awaited map[int]bool
}

// NewTable creates a table with room for capacity jobs. A nil signaler
// delivers real signals with kill(2).
func NewTable(capacity int, signal Signaler) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if signal == nil {
		signal = unix.Kill
	}
	return &Table{
		slots:   make([]*Job, capacity),
		nextID:  1,
		signal:  signal,
		changed: make(chan struct{}),
		final:   make(map[int]State),
		awaited: make(map[int]bool),
	}
}

// Capacity returns the maximum number of concurrently tracked jobs.
func (t *Table) Capacity() int {
	return len(t.slots)
}

// notifyLocked wakes every waiter, the caller must hold t.mu.
func (t *Table) notifyLocked() {
	close(t.changed)
	t.changed = make(chan struct{})
}

func (t *Table) snapshot(j *Job) Job {
	out := *j
	out.signal = t.signal
	return out
}

func (t *Table) findLocked(match func(*Job) bool) (int, *Job) {
	for i, j := range t.slots {
		if j != nil && match(j) {
			return i, j
		}
	}
	return -1, nil
}

func (t *Table) byIDLocked(id int) *Job {
	_, j := t.findLocked(func(j *Job) bool { return j.ID == id })
	return j
}

// Register tracks a newly spawned job in the Running state. Registering a
// foreground job takes the foreground away from any other job.
func (t *Table) Register(pid, pgid int, command string, foreground bool) (Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, dup := t.findLocked(func(j *Job) bool { return j.PID == pid }); dup != nil {
		return Job{}, fmt.Errorf("pid %d: %w", pid, ErrDuplicatePID)
	}

	free := -1
	for i, j := range t.slots {
		if j == nil {
			free = i
			break
		}
	}
	if free < 0 {
		return Job{}, ErrTableFull
	}

	if foreground {
		t.clearForegroundLocked()
	}

	j := &Job{
		ID:         t.nextID,
		PID:        pid,
		PGID:       pgid,
		State:      Running,
		Foreground: foreground,
		Command:    command,
	}
	t.nextID++
	t.slots[free] = j
	if foreground {
		t.awaited[j.ID] = true
	}
	t.notifyLocked()

	return t.snapshot(j), nil
}

func (t *Table) clearForegroundLocked() {
	for _, j := range t.slots {
		if j != nil {
			j.Foreground = false
		}
	}
}

// ByID looks up a tracked job by its job id.
func (t *Table) ByID(id int) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if j := t.byIDLocked(id); j != nil {
		return t.snapshot(j), true
	}
	return Job{}, false
}

// ByPID looks up a tracked job by its representative process id.
func (t *Table) ByPID(pid int) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, j := t.findLocked(func(j *Job) bool { return j.PID == pid }); j != nil {
		return t.snapshot(j), true
	}
	return Job{}, false
}

// Foreground returns the job currently holding the foreground, if any.
func (t *Table) Foreground() (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, j := t.findLocked(func(j *Job) bool { return j.Foreground }); j != nil {
		return t.snapshot(j), true
	}
	return Job{}, false
}

// List returns every tracked job ordered by job id.
func (t *Table) List() []Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Job
	for _, j := range t.slots {
		if j != nil {
			out = append(out, t.snapshot(j))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// Len returns the number of occupied slots.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, j := range t.slots {
		if j != nil {
			n++
		}
	}
	return n
}

// Display writes the job line to w. Continued is only ever shown once, after
// that the job reads as Running again.
func (t *Table) Display(w io.Writer, j Job) error {
	if _, err := fmt.Fprintln(w, DisplayLine(j)); err != nil {
		return err
	}

	if j.State == Continued {
		t.mu.Lock()
		defer t.mu.Unlock()
		if live := t.byIDLocked(j.ID); live != nil && live.State == Continued {
			live.State = Running
			t.notifyLocked()
		}
	}
	return nil
}

// Resume records that a continue signal was delivered to the job and sets
// its foreground flag. Only a suspended job changes state when resumed into
// the foreground; resuming into the background always marks it Continued.
func (t *Table) Resume(id int, foreground bool) (Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j := t.byIDLocked(id)
	if j == nil {
		return Job{}, fmt.Errorf("%%%d: %w", id, ErrNoSuchJob)
	}

	if !foreground || j.State == Suspended {
		j.State = Continued
	}
	if foreground {
		t.clearForegroundLocked()
		t.awaited[id] = true
	} else {
		delete(t.awaited, id)
	}
	j.Foreground = foreground
	t.notifyLocked()

	return t.snapshot(j), nil
}

// Interrupt moves the foreground job to state and releases the foreground.
// It returns the job so the caller can relay the matching signal.
func (t *Table) Interrupt(state State) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, j := t.findLocked(func(j *Job) bool { return j.Foreground })
	if j == nil {
		return Job{}, false
	}
	j.State = state
	j.Foreground = false
	t.notifyLocked()

	return t.snapshot(j), true
}

// Apply records a status change the operating system reported for pid and
// returns the job as it was left. Exits and signaled terminations free the
// slot. Unknown pids are ignored.
func (t *Table) Apply(pid int, status Status) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot, j := t.findLocked(func(j *Job) bool { return j.PID == pid })
	if j == nil {
		return Job{}, false
	}

	switch status {
	case StatusStopped:
		j.State = Suspended
		j.Foreground = false
	case StatusContinued:
		j.State = Continued
	case StatusExited, StatusSignaled:
		if status == StatusExited && j.State != Terminated {
			j.State = Done
		} else {
			j.State = Terminated
		}
		if j.Foreground || t.awaited[j.ID] {
			t.final[j.ID] = j.State
		}
		delete(t.awaited, j.ID)
		t.slots[slot] = nil
	}
	t.notifyLocked()

	return t.snapshot(j), true
}

// Await blocks until the job is suspended or finishes, or ctx is done.
func (t *Table) Await(ctx context.Context, id int) (Job, error) {
	t.mu.Lock()
	if t.byIDLocked(id) != nil {
		t.awaited[id] = true
	}
	t.mu.Unlock()

	for {
		t.mu.Lock()
		if j := t.byIDLocked(id); j != nil {
			if j.State.stopsWait() {
				delete(t.awaited, id)
				out := t.snapshot(j)
				t.mu.Unlock()
				return out, nil
			}
		} else {
			state, ok := t.final[id]
			delete(t.final, id)
			t.mu.Unlock()
			if !ok {
				state = Done
			}
			return Job{ID: id, State: state}, nil
		}
		changed := t.changed
		t.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			t.mu.Lock()
			delete(t.awaited, id)
			t.mu.Unlock()
			return Job{}, ctx.Err()
		}
	}
}
