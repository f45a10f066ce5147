package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/josephlewis42/jobsh/core/config"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestShell creates a shell whose builtins write to buffers and whose
// programs inherit /dev/null.
func newTestShell(t *testing.T) (sh *Shell, stdout, stderr *bytes.Buffer) {
	t.Helper()

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	require.NoError(t, err)
	t.Cleanup(func() { devNull.Close() })

	sh = NewShell(Options{
		Stdin:  devNull,
		Stdout: devNull,
		Stderr: devNull,
		Args:   []string{"jobsh", "a", "b"},
	})

	stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
	sh.stdout, sh.stderr = stdout, stderr
	sh.Jobs.Stdout, sh.Jobs.Stderr = stdout, stderr
	return sh, stdout, stderr
}

func TestAllBuiltins(t *testing.T) {
	for _, name := range ListBuiltins() {
		t.Run(name, func(t *testing.T) {
			if AllBuiltins[name] == nil {
				t.Fatal("nil builtin", name)
			}

			sh, stdout, _ := newTestShell(t)
			assert.Equal(t, 0, AllBuiltins[name].Main(sh, []string{name, "--help"}))
			assert.Contains(t, stdout.String(), "usage: "+name)
		})
	}
}

func TestIsResident(t *testing.T) {
	for _, name := range []string{"fg", "bg", "jobs", "kill", "cd", "exit", "set", "shift", "exec"} {
		assert.True(t, IsResident(name), name)
	}
	for _, name := range []string{"echo", "pwd", "dir", "time", "help", "clr", "no-such-builtin"} {
		assert.False(t, IsResident(name), name)
	}
}

type goldenTestSuite map[string]goldenTest

type goldenTest struct {
	Line string
}

func (gts goldenTestSuite) Run(t *testing.T) {
	t.Helper()

	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)

	for tn, tc := range gts {
		tc := tc
		t.Run(tn, func(t *testing.T) {
			sh, stdout, stderr := newTestShell(t)
			sh.RunCommand(tc.Line)

			g.Assert(t, tn, append(stdout.Bytes(), stderr.Bytes()...))
			assert.FileExists(t, filepath.Join("testdata", "golden", t.Name()+".golden"))
		})
	}
}

func TestBuiltinOutput(t *testing.T) {
	cases := goldenTestSuite{
		"help-list":       {`help`},
		"help-unknown":    {`help nope`},
		"echo-escapes":    {`echo -e 'a\tb\x41'`},
		"echo-no-newline": {`echo -n hi`},
		"kill-list":       {`kill -l`},
		"clr":             {`clr`},
	}

	cases.Run(t)
}

func TestColorPrinter(t *testing.T) {
	cases := map[string]struct {
		printer  *ColorPrinter
		expected string
	}{
		"nil":            {nil, "x"},
		"never":          {&ColorPrinter{Mode: config.ColorNever}, "x"},
		"always":         {&ColorPrinter{Mode: config.ColorAlways}, "\x1b[31;1mx\x1b[0m"},
		"auto-no-stream": {&ColorPrinter{Mode: config.ColorAuto}, "x"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.printer.Sprintf(ColorBoldRed, "%s", "x"))
		})
	}
}
