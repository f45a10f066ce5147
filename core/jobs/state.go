package jobs

// State is the lifecycle state of a job.
type State int

const (
	Running State = iota
	Done
	Suspended
	Continued
	Terminated
)

var stateNames = map[State]string{
	Running:    "RUNNING",
	Done:       "DONE",
	Suspended:  "SUSPENDED",
	Continued:  "CONTINUED",
	Terminated: "TERMINATED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Final is true for the absorbing states, a job in one of them no longer
// occupies a slot.
func (s State) Final() bool {
	return s == Done || s == Terminated
}

// stopsWait is true for states that release a foreground waiter.
func (s State) stopsWait() bool {
	return s.Final() || s == Suspended
}

// Status is a child process status change reported by the operating system.
type Status int

const (
	StatusStopped Status = iota
	StatusContinued
	StatusExited
	StatusSignaled
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusContinued:
		return "continued"
	case StatusExited:
		return "exited"
	case StatusSignaled:
		return "signaled"
	default:
		return "unknown"
	}
}
