package commands

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/abiosoft/readline"
)

// lineSource reads one input line at a time.
type lineSource interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// promptGate lets reads through to the terminal only while the shell is
// prompting. The line editor keeps reading in the background, without the
// gate it would swallow keystrokes meant for a foreground job.
type promptGate struct {
	r io.Reader

	mu   sync.Mutex
	cond *sync.Cond
	open bool
}

func newPromptGate(r io.Reader) *promptGate {
	g := &promptGate{r: r}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *promptGate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = true
	g.cond.Broadcast()
}

// Read blocks until the gate is open. The gate shuts itself once a line
// terminator has been read.
func (g *promptGate) Read(p []byte) (int, error) {
	g.mu.Lock()
	for !g.open {
		g.cond.Wait()
	}
	g.mu.Unlock()

	n, err := g.r.Read(p)
	if n > 0 && bytes.ContainsAny(p[:n], "\r\n") {
		g.mu.Lock()
		g.open = false
		g.mu.Unlock()
	}
	return n, err
}

// readlineSource is the interactive line editor.
type readlineSource struct {
	gate *promptGate
	rl   *readline.Instance
}

func newReadlineSource(stdin *os.File, stdout, stderr io.Writer, historyFile string, historyLimit int) (*readlineSource, error) {
	gate := newPromptGate(stdin)

	cfg := &readline.Config{
		Stdin:        readline.NewCancelableStdin(gate),
		Stdout:       stdout,
		Stderr:       stderr,
		HistoryFile:  historyFile,
		HistoryLimit: historyLimit,
	}

	if err := cfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}

	return &readlineSource{gate: gate, rl: rl}, nil
}

func (r *readlineSource) ReadLine(prompt string) (string, error) {
	r.gate.Open()
	r.rl.SetPrompt(prompt)
	return r.rl.Readline()
}

func (r *readlineSource) ResetHistory() {
	r.rl.Operation.ResetHistory()
}

func (r *readlineSource) Close() error {
	return r.rl.Close()
}

// plainSource reads lines from a script or pipe without echoing a prompt.
type plainSource struct {
	r *bufio.Reader
}

func newPlainSource(r io.Reader) *plainSource {
	return &plainSource{r: bufio.NewReader(r)}
}

func (p *plainSource) ReadLine(string) (string, error) {
	line, err := p.r.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	return strings.TrimRight(line, "\r\n"), err
}

func (p *plainSource) Close() error {
	return nil
}
