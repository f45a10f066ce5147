package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJsonLinesRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	session := NewJsonLinesLogRecorder(buf).NewSession()

	require.NoError(t, session.Record(&JobStarted{JobId: 1, Pid: 10, Pgid: 9, Stages: 2, Command: "echo hi | cat"}))
	require.NoError(t, session.Record(&JobStateChange{JobId: 1, Pid: 10, Status: "exited", State: "DONE"}))
	require.NoError(t, session.Record(&CommandNotFound{Command: []string{"nope"}, Error: "not found"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var entries []*LogEntry
	require.NoError(t, ReadJSONLinesLog(buf, func(le *LogEntry) {
		entries = append(entries, le)
	}))
	require.Len(t, entries, 3)

	assert.NotEmpty(t, entries[0].SessionId)
	assert.Equal(t, entries[0].SessionId, entries[2].SessionId)
	assert.NotZero(t, entries[0].TimestampMicros)

	started, ok := entries[0].GetLogType().(*JobStarted)
	require.True(t, ok)
	assert.Equal(t, "echo hi | cat", started.Command)

	_, ok = entries[1].GetLogType().(*JobStateChange)
	assert.True(t, ok)
}

func TestSessionless(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, NewJsonLinesLogRecorder(buf).Sessionless().Record(&BuiltinInvocation{Command: []string{"jobs"}}))

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	_, hasSession := raw["session_id"]
	assert.False(t, hasSession)
	assert.Contains(t, raw, "builtin_invocation")
}

func TestReport(t *testing.T) {
	var report Report
	for _, event := range []LogType{
		&JobStarted{Command: "sleep 100", Stages: 1},
		&JobStarted{Command: "echo hi | cat", Stages: 2, Foreground: true},
		&JobStateChange{State: "DONE", Status: "exited"},
		&JobStateChange{State: "SUSPENDED", Status: "stopped"},
		&CommandNotFound{Command: []string{"nope"}},
		&BuiltinInvocation{Command: []string{"fg", "%9"}, ExitCode: 1},
		&InvalidInvocation{Command: []string{"shift"}, Error: "bad count"},
		&SignalRelayed{Signal: "interrupt"},
	} {
		le := &LogEntry{}
		event.setOn(le)
		report.Update(le)
	}
	report.Update(&LogEntry{})

	assert.Equal(t, 9, report.LogEntries)
	assert.Equal(t, 1, report.InvalidEntries)
	assert.Equal(t, 2, report.JobStarted.Count)
	assert.Equal(t, 1, report.JobStarted.Background)
	assert.Equal(t, 1, report.JobStarted.Programs.Get("sleep"))
	assert.Equal(t, 1, report.JobStateChange.States.Get("SUSPENDED"))
	assert.Equal(t, 1, report.CommandNotFound.CommandNames.Get("nope"))
	assert.Equal(t, 1, report.Builtins.Failures)

	out, err := json.Marshal(report.InvalidInvocation.Invocations)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"count":1,"event":{"command":"shift","error":"bad count"}}]`, string(out))
}
