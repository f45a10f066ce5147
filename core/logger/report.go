package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var logEntry LogEntry
		if err := decoder.Decode(&logEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	Sessions       StrCounter `json:"sessions"`
	InvalidEntries int        `json:"unknown_log_entries,omitempty"`

	JobStarted        JobStartedReport        `json:"job_started_report"`
	JobStateChange    JobStateChangeReport    `json:"job_state_change_report"`
	JobUntracked      JobUntrackedReport      `json:"job_untracked_report"`
	CommandNotFound   CommandNotFoundReport   `json:"command_not_found_report"`
	Builtins          BuiltinReport           `json:"builtin_report"`
	InvalidInvocation InvalidInvocationReport `json:"invalid_invocation_report"`
	SignalRelayed     SignalRelayedReport     `json:"signal_relayed_report"`
}

// Update folds one entry into the report.
func (r *Report) Update(le *LogEntry) {
	r.LogEntries++
	r.Sessions.Increment(le.SessionId)

	switch event := le.GetLogType().(type) {
	case *JobStarted:
		r.JobStarted.update(event)
	case *JobStateChange:
		r.JobStateChange.update(event)
	case *JobUntracked:
		r.JobUntracked.update(event)
	case *CommandNotFound:
		r.CommandNotFound.update(event)
	case *BuiltinInvocation:
		r.Builtins.update(event)
	case *InvalidInvocation:
		r.InvalidInvocation.update(event)
	case *SignalRelayed:
		r.SignalRelayed.update(event)
	default:
		r.InvalidEntries++
	}
}

type JobStartedReport struct {
	Count      int        `json:"count"`
	Background int        `json:"background"`
	Programs   StrCounter `json:"programs"`
	Stages     StrCounter `json:"stages"`
}

func (r *JobStartedReport) update(e *JobStarted) {
	r.Count++
	if !e.Foreground {
		r.Background++
	}
	r.Programs.Increment(firstWord(e.Command))
	r.Stages.Increment(fmt.Sprintf("%d", e.Stages))
}

type JobStateChangeReport struct {
	States   StrCounter `json:"states"`
	Statuses StrCounter `json:"statuses"`
}

func (r *JobStateChangeReport) update(e *JobStateChange) {
	r.States.Increment(e.State)
	r.Statuses.Increment(e.Status)
}

type JobUntrackedReport struct {
	Errors StrCounter `json:"errors"`
}

func (r *JobUntrackedReport) update(e *JobUntracked) {
	r.Errors.Increment(e.Error)
}

type CommandNotFoundReport struct {
	CommandNames StrCounter `json:"command_names"`
}

func (r *CommandNotFoundReport) update(e *CommandNotFound) {
	if len(e.Command) > 0 {
		r.CommandNames.Increment(e.Command[0])
	}
}

type BuiltinReport struct {
	CommandNames StrCounter `json:"command_names"`
	Failures     int        `json:"failures"`
}

func (r *BuiltinReport) update(e *BuiltinInvocation) {
	if len(e.Command) > 0 {
		r.CommandNames.Increment(e.Command[0])
	}
	if e.ExitCode != 0 {
		r.Failures++
	}
}

type InvalidInvocationReport struct {
	Invocations *PathCounter `json:"invocations"`
}

func (r *InvalidInvocationReport) update(e *InvalidInvocation) {
	if r.Invocations == nil {
		r.Invocations = NewPathCounter("command", "error")
	}
	name := ""
	if len(e.Command) > 0 {
		name = e.Command[0]
	}
	r.Invocations.Increment(name, e.Error)
}

type SignalRelayedReport struct {
	Signals StrCounter `json:"signals"`
	Errors  int        `json:"errors"`
}

func (r *SignalRelayedReport) update(e *SignalRelayed) {
	r.Signals.Increment(e.Signal)
	if e.Error != "" {
		r.Errors++
	}
}

func firstWord(s string) string {
	for i, c := range s {
		if c == ' ' || c == '\t' {
			return s[:i]
		}
	}
	return s
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Get returns the count for key.
func (s *StrCounter) Get(key string) int {
	return s.internal[key]
}

// MarshalJSON implemnts custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	if s.internal == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts the number of tuples seen.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// MarshalJSON implemnts custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	out := []Count{}
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}
