package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type sentSignal struct {
	pid int
	sig unix.Signal
}

type recordingSignaler struct {
	sent []sentSignal
	err  error
}

func (r *recordingSignaler) Kill(pid int, sig unix.Signal) error {
	r.sent = append(r.sent, sentSignal{pid, sig})
	return r.err
}

func ExampleDisplayLine() {
	fmt.Println(DisplayLine(Job{ID: 3, State: Running, Command: "sleep 100"}))
	fmt.Println(DisplayLine(Job{ID: 4, State: Suspended, Command: "vi notes"}))

	// Output: [3]	RUNNING		sleep 100
	// [4]	SUSPENDED		vi notes
}

func TestTable_Register(t *testing.T) {
	table := NewTable(2, nil)

	first, err := table.Register(100, 100, "sleep 100", false)
	require.NoError(t, err)
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, Running, first.State)

	second, err := table.Register(200, 200, "sleep 200", true)
	require.NoError(t, err)
	assert.Equal(t, 2, second.ID)

	_, err = table.Register(300, 300, "sleep 300", false)
	assert.True(t, errors.Is(err, ErrTableFull))

	_, err = table.Register(100, 100, "again", false)
	assert.True(t, errors.Is(err, ErrDuplicatePID))

	assert.Equal(t, 2, table.Len())
}

func TestTable_IDsNeverReused(t *testing.T) {
	table := NewTable(1, nil)

	var seen []int
	for pid := 10; pid < 15; pid++ {
		j, err := table.Register(pid, pid, "true", false)
		require.NoError(t, err)
		seen = append(seen, j.ID)

		_, ok := table.Apply(pid, StatusExited)
		require.True(t, ok)
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5}, seen)
	assert.Equal(t, 0, table.Len())
}

func TestTable_SingleForeground(t *testing.T) {
	table := NewTable(4, nil)

	a, _ := table.Register(1, 1, "a", true)
	b, _ := table.Register(2, 2, "b", true)

	fg, ok := table.Foreground()
	require.True(t, ok)
	assert.Equal(t, b.ID, fg.ID)

	_, err := table.Resume(a.ID, true)
	require.NoError(t, err)

	count := 0
	for _, j := range table.List() {
		if j.Foreground {
			count++
			assert.Equal(t, a.ID, j.ID)
		}
	}
	assert.Equal(t, 1, count)
}

func TestTable_Apply(t *testing.T) {
	cases := map[string]struct {
		status    Status
		wantState State
		wantFreed bool
	}{
		"stopped":   {StatusStopped, Suspended, false},
		"continued": {StatusContinued, Continued, false},
		"exited":    {StatusExited, Done, true},
		"signaled":  {StatusSignaled, Terminated, true},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			table := NewTable(4, nil)
			registered, err := table.Register(42, 40, "cat | sort", true)
			require.NoError(t, err)

			got, ok := table.Apply(42, tc.status)
			require.True(t, ok)
			assert.Equal(t, tc.wantState, got.State)

			_, tracked := table.ByID(registered.ID)
			assert.Equal(t, !tc.wantFreed, tracked)

			if tc.status == StatusStopped {
				assert.False(t, got.Foreground, "suspended jobs lose the foreground")
			}
		})
	}
}

func TestTable_ApplyUnknownPID(t *testing.T) {
	table := NewTable(4, nil)
	table.Register(1, 1, "a", false)

	_, ok := table.Apply(999, StatusExited)
	assert.False(t, ok)
	assert.Equal(t, 1, table.Len())
}

func TestTable_InterruptedJobStaysTerminated(t *testing.T) {
	table := NewTable(4, nil)
	j, _ := table.Register(5, 5, "yes", true)

	got, ok := table.Interrupt(Terminated)
	require.True(t, ok)
	assert.Equal(t, Terminated, got.State)
	assert.False(t, got.Foreground)

	// The slot is only reclaimed once the exit is observed.
	_, tracked := table.ByID(j.ID)
	assert.True(t, tracked)

	done, _ := table.Apply(5, StatusExited)
	assert.Equal(t, Terminated, done.State)

	_, ok = table.Interrupt(Terminated)
	assert.False(t, ok, "no foreground job left")
}

func TestTable_Resume(t *testing.T) {
	table := NewTable(4, nil)
	j, _ := table.Register(5, 5, "vi", true)
	table.Apply(5, StatusStopped)

	bg, err := table.Resume(j.ID, false)
	require.NoError(t, err)
	assert.Equal(t, Continued, bg.State)
	assert.False(t, bg.Foreground)

	table.Apply(5, StatusStopped)
	fg, err := table.Resume(j.ID, true)
	require.NoError(t, err)
	assert.Equal(t, Continued, fg.State)
	assert.True(t, fg.Foreground)

	_, err = table.Resume(99, true)
	assert.True(t, errors.Is(err, ErrNoSuchJob))
}

func TestTable_DisplayContinuedOnce(t *testing.T) {
	table := NewTable(4, nil)
	j, _ := table.Register(5, 5, "make", false)
	table.Apply(5, StatusStopped)
	j, _ = table.Resume(j.ID, false)

	buf := &bytes.Buffer{}
	require.NoError(t, table.Display(buf, j))
	assert.Equal(t, "[1]\tCONTINUED\t\tmake\n", buf.String())

	again, _ := table.ByID(j.ID)
	buf.Reset()
	require.NoError(t, table.Display(buf, again))
	assert.Equal(t, "[1]\tRUNNING\t\tmake\n", buf.String())
}

func TestJob_Signal(t *testing.T) {
	rec := &recordingSignaler{}
	table := NewTable(4, rec.Kill)
	j, _ := table.Register(12, 10, "a | b", false)

	require.NoError(t, j.Signal(unix.SIGCONT))
	assert.Equal(t, []sentSignal{{-10, unix.SIGCONT}}, rec.sent)

	rec.err = unix.ESRCH
	err := j.Signal(unix.SIGTERM)
	assert.True(t, errors.Is(err, unix.ESRCH))
}

func TestTable_Await(t *testing.T) {
	t.Run("exit", func(t *testing.T) {
		table := NewTable(4, nil)
		j, _ := table.Register(7, 7, "sleep 1", true)

		go func() {
			time.Sleep(10 * time.Millisecond)
			table.Apply(7, StatusSignaled)
		}()

		got, err := table.Await(context.Background(), j.ID)
		require.NoError(t, err)
		assert.Equal(t, Terminated, got.State)
	})

	t.Run("suspend", func(t *testing.T) {
		table := NewTable(4, nil)
		j, _ := table.Register(7, 7, "vi", true)

		go func() {
			time.Sleep(10 * time.Millisecond)
			table.Apply(7, StatusContinued)
			table.Apply(7, StatusStopped)
		}()

		got, err := table.Await(context.Background(), j.ID)
		require.NoError(t, err)
		assert.Equal(t, Suspended, got.State)

		_, tracked := table.ByID(j.ID)
		assert.True(t, tracked, "suspended jobs stay listed")
	})

	t.Run("interrupted-before-wait", func(t *testing.T) {
		table := NewTable(4, nil)
		j, _ := table.Register(7, 7, "yes", true)
		table.Interrupt(Terminated)
		table.Apply(7, StatusSignaled)

		got, err := table.Await(context.Background(), j.ID)
		require.NoError(t, err)
		assert.Equal(t, Terminated, got.State)
	})

	t.Run("resumed-into-foreground", func(t *testing.T) {
		table := NewTable(4, nil)
		j, _ := table.Register(7, 7, "vi", false)
		table.Apply(7, StatusStopped)
		_, err := table.Resume(j.ID, true)
		require.NoError(t, err)
		table.Interrupt(Terminated)
		table.Apply(7, StatusExited)

		got, err := table.Await(context.Background(), j.ID)
		require.NoError(t, err)
		assert.Equal(t, Terminated, got.State)
	})

	t.Run("already-gone", func(t *testing.T) {
		table := NewTable(4, nil)
		got, err := table.Await(context.Background(), 12)
		require.NoError(t, err)
		assert.Equal(t, Done, got.State)
	})

	t.Run("canceled", func(t *testing.T) {
		table := NewTable(4, nil)
		j, _ := table.Register(7, 7, "sleep 100", true)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := table.Await(ctx, j.ID)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}
