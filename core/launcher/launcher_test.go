package launcher

import (
	"errors"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/josephlewis42/jobsh/core/redirect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func requirePrograms(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			t.Skipf("%s not available: %v", name, err)
		}
	}
}

// reap waits for every pid and returns their statuses in order.
func reap(t *testing.T, pids ...int) []unix.WaitStatus {
	t.Helper()
	var out []unix.WaitStatus
	for _, pid := range pids {
		var ws unix.WaitStatus
		_, err := unix.Wait4(pid, &ws, 0, nil)
		require.NoError(t, err)
		out = append(out, ws)
	}
	return out
}

func commands(t *testing.T, argvs [][]string) []redirect.Command {
	t.Helper()
	var out []redirect.Command
	for _, argv := range argvs {
		cmd, err := redirect.Split(argv)
		require.NoError(t, err)
		out = append(out, cmd)
	}
	return out
}

func newTestLauncher(t *testing.T) *Launcher {
	t.Helper()
	devNull, err := os.Open(os.DevNull)
	require.NoError(t, err)
	t.Cleanup(func() { devNull.Close() })

	l := New()
	l.Stdin = devNull
	return l
}

func openFDs(t *testing.T) int {
	t.Helper()
	entries, err := ioutil.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("no /proc filesystem")
	}
	return len(entries)
}

func TestLaunch_pipeToFile(t *testing.T) {
	requirePrograms(t, "echo", "cat")
	out := filepath.Join(t.TempDir(), "out.txt")
	l := newTestLauncher(t)

	group, err := l.Launch(commands(t, [][]string{
		{"echo", "hi"},
		{"cat", ">", out},
	}))
	require.NoError(t, err)
	require.Len(t, group.PIDs, 2)
	assert.Equal(t, group.PIDs[0], group.PGID, "first stage leads the group")
	assert.Equal(t, group.PIDs[1], group.Last)
	assert.Empty(t, group.Skipped)

	pgid, err := unix.Getpgid(group.Last)
	require.NoError(t, err)
	assert.Equal(t, group.PGID, pgid)

	for _, ws := range reap(t, group.PIDs...) {
		assert.True(t, ws.Exited())
		assert.Equal(t, 0, ws.ExitStatus())
	}

	got, err := ioutil.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(got))
}

func TestLaunch_chain(t *testing.T) {
	requirePrograms(t, "echo", "tr", "cat")
	out := filepath.Join(t.TempDir(), "out.txt")
	l := newTestLauncher(t)

	group, err := l.Launch(commands(t, [][]string{
		{"echo", "hello"},
		{"tr", "a-z", "A-Z"},
		{"cat"},
		{"cat", ">", out},
	}))
	require.NoError(t, err)
	require.Len(t, group.PIDs, 4)
	reap(t, group.PIDs...)

	got, err := ioutil.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "HELLO\n", string(got))
}

func TestLaunch_inputRedirect(t *testing.T) {
	requirePrograms(t, "cat")
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, ioutil.WriteFile(in, []byte("hello\n"), 0600))
	l := newTestLauncher(t)

	group, err := l.Launch(commands(t, [][]string{{"cat", "<", in, ">", out}}))
	require.NoError(t, err)
	reap(t, group.PIDs...)

	got, err := ioutil.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(got))
}

func TestLaunch_redirectOverridesPipe(t *testing.T) {
	requirePrograms(t, "echo", "cat")
	dir := t.TempDir()
	diverted := filepath.Join(dir, "diverted.txt")
	out := filepath.Join(dir, "out.txt")
	l := newTestLauncher(t)

	group, err := l.Launch(commands(t, [][]string{
		{"echo", "hi", ">", diverted},
		{"cat", ">", out},
	}))
	require.NoError(t, err)
	reap(t, group.PIDs...)

	got, err := ioutil.ReadFile(diverted)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(got))

	got, err = ioutil.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "", string(got), "downstream stage sees an empty stream")
}

func TestLaunch_noLeakedDescriptors(t *testing.T) {
	requirePrograms(t, "echo", "cat", "ls")
	out := filepath.Join(t.TempDir(), "fds.txt")
	l := newTestLauncher(t)

	// The runtime's poller opens its own descriptors on first use.
	r, w, err := os.Pipe()
	require.NoError(t, err)
	r.Close()
	w.Close()

	before := openFDs(t)
	group, err := l.Launch(commands(t, [][]string{
		{"echo", "x"},
		{"cat"},
		{"ls", "/proc/self/fd", ">", out},
	}))
	require.NoError(t, err)
	assert.Equal(t, before, openFDs(t), "shell keeps no pipe or redirect descriptors")
	reap(t, group.PIDs...)

	// The child has its three standard streams plus the directory ls opened.
	got, err := ioutil.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "0\n1\n2\n3\n", string(got))
}

func TestLaunch_missingProgram(t *testing.T) {
	requirePrograms(t, "cat")
	out := filepath.Join(t.TempDir(), "out.txt")
	l := newTestLauncher(t)

	group, err := l.Launch(commands(t, [][]string{
		{"jobsh-no-such-program"},
		{"cat", ">", out},
	}))
	require.NoError(t, err)
	require.Len(t, group.PIDs, 1)
	require.Len(t, group.Skipped, 1)
	assert.True(t, errors.Is(group.Skipped[0], ErrNotFound))
	assert.Equal(t, `Command "jobsh-no-such-program" not found`, group.Skipped[0].Error())

	ws := reap(t, group.PIDs...)
	assert.True(t, ws[0].Exited(), "cat sees end-of-stream and exits")
}

func TestLaunch_missingRedirect(t *testing.T) {
	l := newTestLauncher(t)

	group, err := l.Launch(commands(t, [][]string{{"cat", "<", filepath.Join(t.TempDir(), "missing")}}))
	assert.True(t, errors.Is(err, ErrNothingStarted))
	require.Len(t, group.Skipped, 1)
	assert.True(t, errors.Is(group.Skipped[0], os.ErrNotExist))
}

func TestLaunch_lastStageMissing(t *testing.T) {
	requirePrograms(t, "sleep")
	l := newTestLauncher(t)

	group, err := l.Launch(commands(t, [][]string{
		{"sleep", "30"},
		{"jobsh-no-such-program"},
	}))
	assert.True(t, errors.Is(err, ErrAborted))
	require.Len(t, group.PIDs, 1)

	ws := reap(t, group.PIDs...)
	assert.True(t, ws[0].Signaled())
	assert.Equal(t, unix.SIGTERM, ws[0].Signal())
}

func TestStart_empty(t *testing.T) {
	_, err := newTestLauncher(t).Start(nil, nil, nil, 0)
	assert.True(t, errors.Is(err, ErrEmptyCommand))
}

func TestSysProcAttr_foreground(t *testing.T) {
	l := &Launcher{Foreground: true, Ctty: 7}

	leader := l.sysProcAttr(0)
	assert.True(t, leader.Setpgid)
	assert.True(t, leader.Foreground, "the leader takes the terminal before exec")
	assert.Equal(t, 7, leader.Ctty)

	member := l.sysProcAttr(1234)
	assert.True(t, member.Setpgid)
	assert.Equal(t, 1234, member.Pgid)
	assert.False(t, member.Foreground)

	background := (&Launcher{Ctty: 7}).sysProcAttr(0)
	assert.False(t, background.Foreground)
}
