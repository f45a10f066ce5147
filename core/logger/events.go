package logger

// LogType is implemented by every event that can be recorded.
type LogType interface {
	setOn(le *LogEntry)
}

// LogEntry is one line of the event log. Exactly one event field is set.
type LogEntry struct {
	TimestampMicros int64  `json:"timestamp_micros"`
	SessionId       string `json:"session_id,omitempty"`

	JobStarted        *JobStarted        `json:"job_started,omitempty"`
	JobStateChange    *JobStateChange    `json:"job_state_change,omitempty"`
	JobUntracked      *JobUntracked      `json:"job_untracked,omitempty"`
	CommandNotFound   *CommandNotFound   `json:"command_not_found,omitempty"`
	BuiltinInvocation *BuiltinInvocation `json:"builtin_invocation,omitempty"`
	InvalidInvocation *InvalidInvocation `json:"invalid_invocation,omitempty"`
	SignalRelayed     *SignalRelayed     `json:"signal_relayed,omitempty"`
}

// GetLogType returns the event held by the entry, nil if there is none.
func (le *LogEntry) GetLogType() LogType {
	switch {
	case le.JobStarted != nil:
		return le.JobStarted
	case le.JobStateChange != nil:
		return le.JobStateChange
	case le.JobUntracked != nil:
		return le.JobUntracked
	case le.CommandNotFound != nil:
		return le.CommandNotFound
	case le.BuiltinInvocation != nil:
		return le.BuiltinInvocation
	case le.InvalidInvocation != nil:
		return le.InvalidInvocation
	case le.SignalRelayed != nil:
		return le.SignalRelayed
	default:
		return nil
	}
}

// JobStarted is logged when a pipeline's processes were created and tracked.
type JobStarted struct {
	JobId      int    `json:"job_id"`
	Pid        int    `json:"pid"`
	Pgid       int    `json:"pgid"`
	Stages     int    `json:"stages"`
	Foreground bool   `json:"foreground"`
	Command    string `json:"command"`
}

func (e *JobStarted) setOn(le *LogEntry) { le.JobStarted = e }

// JobStateChange is logged for every transition the signal listener applies.
type JobStateChange struct {
	JobId   int    `json:"job_id"`
	Pid     int    `json:"pid"`
	Status  string `json:"status"`
	State   string `json:"state"`
	Command string `json:"command"`
}

func (e *JobStateChange) setOn(le *LogEntry) { le.JobStateChange = e }

// JobUntracked is logged when processes run but could not be tracked.
type JobUntracked struct {
	Pid     int    `json:"pid"`
	Command string `json:"command"`
	Error   string `json:"error"`
}

func (e *JobUntracked) setOn(le *LogEntry) { le.JobUntracked = e }

// CommandNotFound is logged when a pipeline stage couldn't be started.
type CommandNotFound struct {
	Command []string `json:"command"`
	Error   string   `json:"error"`
}

func (e *CommandNotFound) setOn(le *LogEntry) { le.CommandNotFound = e }

// BuiltinInvocation is logged when a shell builtin runs.
type BuiltinInvocation struct {
	Command  []string `json:"command"`
	ExitCode int      `json:"exit_code"`
}

func (e *BuiltinInvocation) setOn(le *LogEntry) { le.BuiltinInvocation = e }

// InvalidInvocation is logged when a builtin was called with bad arguments.
type InvalidInvocation struct {
	Command []string `json:"command"`
	Error   string   `json:"error"`
}

func (e *InvalidInvocation) setOn(le *LogEntry) { le.InvalidInvocation = e }

// SignalRelayed is logged when a terminal signal delivered to the shell was
// forwarded to the foreground job.
type SignalRelayed struct {
	JobId  int    `json:"job_id"`
	Pgid   int    `json:"pgid"`
	Signal string `json:"signal"`
	Error  string `json:"error,omitempty"`
}

func (e *SignalRelayed) setOn(le *LogEntry) { le.SignalRelayed = e }
