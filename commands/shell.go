package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"os/user"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/josephlewis42/jobsh/core/config"
	"github.com/josephlewis42/jobsh/core/jobctl"
	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/josephlewis42/jobsh/core/launcher"
	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/josephlewis42/jobsh/core/redirect"
	"github.com/josephlewis42/jobsh/core/shell"
	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
)

const (
	EnvHome = "HOME"
	EnvPWD  = "PWD"
	EnvPath = "PATH"
	EnvUser = "USER"
)

// Options configure a new Shell.
type Options struct {
	Config *config.Configuration
	// Events receives the session's job lifecycle events, nil drops them.
	Events *logger.SessionLogger

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// Args holds $0 followed by the positional parameters.
	Args []string
}

type Shell struct {
	Config *config.Configuration
	Params *shell.Params
	Jobs   *jobctl.Controller
	Color  *ColorPrinter

	// Fs is used by builtins that inspect the filesystem.
	Fs afero.Fs

	stdinFile *os.File
	stdout    io.Writer
	stderr    io.Writer
	events    *logger.SessionLogger
	input     lineSource
	ctx       context.Context

	lastRet int
	history []string

	// Set to true to quit the shell
	Quit     bool
	exitCode int
}

// NewShell creates a shell reading from opts.Stdin.
func NewShell(opts Options) *Shell {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	events := opts.Events
	if events == nil {
		events = logger.NewNopLogger().Sessionless()
	}
	args := opts.Args
	if len(args) == 0 {
		args = []string{"jobsh"}
	}

	l := launcher.New()
	l.Stdin, l.Stdout, l.Stderr = opts.Stdin, opts.Stdout, opts.Stderr

	var term *jobctl.Terminal
	if isatty.IsTerminal(opts.Stdin.Fd()) {
		term = jobctl.NewTerminal(opts.Stdin)
	}

	ctl := jobctl.NewController(jobs.NewTable(cfg.MaxJobs, nil), l, term, opts.Stdout, opts.Stderr)
	ctl.Events = events

	if os.Getenv(EnvPath) == "" {
		os.Setenv(EnvPath, cfg.DefaultPath)
	}

	return &Shell{
		Config:    cfg,
		Params:    shell.NewParams(args[0], args[1:]),
		Jobs:      ctl,
		Color:     &ColorPrinter{Mode: cfg.Color, Out: opts.Stdout},
		Fs:        afero.NewOsFs(),
		stdinFile: opts.Stdin,
		stdout:    opts.Stdout,
		stderr:    opts.Stderr,
		events:    events,
		ctx:       context.Background(),
	}
}

// Stdout is where builtins write their output.
func (s *Shell) Stdout() io.Writer {
	return s.stdout
}

// Stderr is where builtins write their errors.
func (s *Shell) Stderr() io.Writer {
	return s.stderr
}

// Context is canceled when the shell shuts down.
func (s *Shell) Context() context.Context {
	return s.ctx
}

// LastStatus returns the exit status of the last command.
func (s *Shell) LastStatus() int {
	return s.lastRet
}

// History returns the lines entered in this session.
func (s *Shell) History() []string {
	return s.history
}

func (s *Shell) errorf(format string, a ...interface{}) {
	fmt.Fprintln(s.stderr, s.Color.Sprintf(ColorBoldRed, format, a...))
}

// Start installs signal handling and takes the terminal. It must be called
// before any command runs; the returned function undoes it.
func (s *Shell) Start(ctx context.Context) (stop func(), err error) {
	ctx, cancel := context.WithCancel(ctx)
	s.ctx = ctx

	if err := s.Jobs.Terminal.Init(); err != nil {
		cancel()
		return nil, fmt.Errorf("taking terminal: %w", err)
	}
	s.Jobs.Listen(ctx)

	return cancel, nil
}

// Run reads and executes lines until end of input or exit. It returns the
// shell's exit status.
func (s *Shell) Run(ctx context.Context) int {
	stop, err := s.Start(ctx)
	if err != nil {
		s.errorf("jobsh: %v", err)
		return 1
	}
	defer stop()

	interactive := s.Jobs.Terminal != nil
	if interactive {
		src, err := newReadlineSource(s.stdinFile, s.stdout, s.stderr, s.Config.HistoryPath(), s.Config.HistorySize)
		if err != nil {
			log.Printf("line editor unavailable: %v", err)
			s.input = newPlainSource(s.stdinFile)
		} else {
			s.input = src
		}
	} else {
		s.input = newPlainSource(s.stdinFile)
	}
	defer s.input.Close()

	for !s.Quit {
		s.Jobs.DrainNotifications()

		prompt := ""
		if interactive {
			prompt = s.Prompt()
		}
		line, err := s.input.ReadLine(prompt)

		switch {
		case err == io.EOF:
			return 0 // Input closed, quit.

		case err == readline.ErrInterrupt:
			// Interrupt clears line.
			continue

		case err != nil:
			log.Printf("Error readline: %v", err)
			return 1

		case strings.TrimSpace(line) == "":
			continue // empty line

		default:
			s.history = append(s.history, line)
			s.RunCommand(line)
		}
	}

	return s.exitCode
}

// Prompt expands the configured prompt.
func (s *Shell) Prompt() string {
	prompt := s.Config.Prompt

	username := os.Getenv(EnvUser)
	if username == "" {
		if u, err := user.Current(); err == nil {
			username = u.Username
		}
	}
	prompt = strings.ReplaceAll(prompt, `\u`, s.Color.Sprintf(ColorBoldGreen, "%s", username))

	pwd, _ := os.Getwd()
	home := os.Getenv(EnvHome)
	if home != "" && strings.HasPrefix(pwd, home) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}
	prompt = strings.ReplaceAll(prompt, `\w`, s.Color.Sprintf(ColorBoldBlue, "%s", pwd))

	return prompt
}

// RunCommand parses and executes one line, returning its exit status.
func (s *Shell) RunCommand(line string) int {
	parsed, err := shell.Parse(line, s.Params.Var)
	if err != nil {
		s.events.Record(&logger.InvalidInvocation{Command: []string{line}, Error: err.Error()})
		s.errorf("%v", err)
		s.lastRet = 2
		return s.lastRet
	}
	if parsed.Empty() {
		return s.lastRet
	}

	for _, segment := range parsed.Segments[1:] {
		if len(segment.Args) > 0 && IsResident(segment.Args[0]) {
			s.errorf("%s: can only run as the first command of a pipeline", segment.Args[0])
			s.lastRet = 2
			return s.lastRet
		}
	}

	name := parsed.Name()
	builtin, isBuiltin := AllBuiltins[name]

	// A builtin that isn't resident only runs in the shell when it is the
	// whole foreground line, otherwise the program of the same name runs.
	alone := len(parsed.Segments) == 1 && !parsed.Background

	switch {
	case isBuiltin && IsResident(name) && len(parsed.Segments) > 1:
		s.lastRet = s.runBuiltinPipeline(builtin, parsed)
	case isBuiltin && (IsResident(name) || alone):
		s.lastRet = s.runBuiltin(builtin, parsed.Segments[0], nil)
	default:
		job, err := s.Jobs.Run(s.ctx, parsed.Segments, parsed.Text, parsed.Background)
		s.lastRet = jobStatus(job, err)
	}

	return s.lastRet
}

// runBuiltin runs a builtin inside the shell, honouring its redirections.
// Output goes to out when it isn't redirected to a file.
func (s *Shell) runBuiltin(builtin ShellBuiltin, cmd redirect.Command, out io.Writer) int {
	plan, err := cmd.Open()
	if err != nil {
		s.events.Record(&logger.InvalidInvocation{Command: cmd.Args, Error: err.Error()})
		s.errorf("%s: %v", cmd.Args[0], err)
		return 1
	}
	defer plan.Close()

	if len(plan.Args) == 0 {
		return 0
	}

	savedOut := s.stdout
	defer func() { s.stdout = savedOut }()
	switch {
	case plan.Stdout != nil:
		s.stdout = plan.Stdout
	case out != nil:
		s.stdout = out
	}

	code := builtin.Main(s, plan.Args)
	s.events.Record(&logger.BuiltinInvocation{Command: plan.Args, ExitCode: code})
	return code
}

// runBuiltinPipeline runs the resident builtin heading a pipeline in the
// shell and feeds its output to the remaining stages.
func (s *Shell) runBuiltinPipeline(builtin ShellBuiltin, parsed *shell.Line) int {
	buf := &bytes.Buffer{}
	code := s.runBuiltin(builtin, parsed.Segments[0], buf)

	// A spooled file rather than a pipe, so the shell never blocks writing
	// to a stage that stopped reading.
	spool, err := ioutil.TempFile("", "jobsh-pipe-")
	if err != nil {
		s.errorf("pipe error: %v", err)
		return 1
	}
	os.Remove(spool.Name())
	defer spool.Close()

	if _, err := spool.Write(buf.Bytes()); err != nil {
		s.errorf("pipe error: %v", err)
		return 1
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		s.errorf("pipe error: %v", err)
		return 1
	}

	job, err := s.Jobs.RunWithInput(s.ctx, spool, parsed.Segments[1:], parsed.Text, parsed.Background)
	if err != nil && code != 0 {
		return code
	}
	return jobStatus(job, err)
}

// jobStatus converts how a job ended into an exit status.
func jobStatus(job jobs.Job, err error) int {
	switch {
	case errors.Is(err, launcher.ErrNothingStarted), errors.Is(err, launcher.ErrNotFound):
		return 127
	case err != nil:
		return 1
	}

	switch job.State {
	case jobs.Terminated:
		return 130
	case jobs.Suspended:
		return 148
	default:
		return 0
	}
}
