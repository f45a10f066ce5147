// Package pipeline allocates the channels that connect adjacent stages of a
// pipeline and computes which channel end each stage uses.
package pipeline

import (
	"errors"
	"fmt"
	"os"
)

// ErrEmpty is returned when asked to build a pipeline with no stages.
var ErrEmpty = errors.New("empty pipeline")

// Pipe is one inter-process channel. Both ends are owned by the shell until
// Close; children receive duplicates when they are started.
type Pipe struct {
	R *os.File
	W *os.File
}

// Close releases both ends, ignoring ends that were already released.
func (p *Pipe) Close() error {
	var lastErr error
	for _, f := range []**os.File{&p.R, &p.W} {
		if *f == nil {
			continue
		}
		if err := (*f).Close(); err != nil {
			lastErr = err
		}
		*f = nil
	}
	return lastErr
}

// Wiring describes the channel ends a single stage uses. A nil end means the
// stage inherits the stream from the shell.
type Wiring struct {
	Stdin  *os.File
	Stdout *os.File
}

// Plan is the channel layout for a whole pipeline.
type Plan struct {
	Pipes  []*Pipe
	Stages []Wiring
}

// PipeFunc allocates one channel. It is os.Pipe outside of tests.
type PipeFunc func() (r *os.File, w *os.File, err error)

// Build allocates stages-1 channels: stage i reads the read end of channel
// i-1 and writes the write end of channel i. If any allocation fails every
// channel already made is closed and the error returned.
func Build(stages int) (*Plan, error) {
	return BuildWith(stages, os.Pipe)
}

// BuildWith is Build with a custom channel allocator.
func BuildWith(stages int, newPipe PipeFunc) (*Plan, error) {
	if stages <= 0 {
		return nil, ErrEmpty
	}

	plan := &Plan{
		Stages: make([]Wiring, stages),
	}

	for i := 0; i < stages-1; i++ {
		r, w, err := newPipe()
		if err != nil {
			plan.Close()
			return nil, fmt.Errorf("pipe error: %w", err)
		}
		plan.Pipes = append(plan.Pipes, &Pipe{R: r, W: w})
	}

	for i := range plan.Stages {
		if i > 0 {
			plan.Stages[i].Stdin = plan.Pipes[i-1].R
		}
		if i < stages-1 {
			plan.Stages[i].Stdout = plan.Pipes[i].W
		}
	}

	return plan, nil
}

// Release closes the shell's copies of the ends stage i used. Called once the
// stage has been started (or skipped) so that end-of-stream propagates: the
// reader downstream sees EOF once every writer is gone.
func (p *Plan) Release(i int) {
	if i > 0 {
		p.closeEnd(&p.Pipes[i-1].R)
	}
	if i < len(p.Pipes) {
		p.closeEnd(&p.Pipes[i].W)
	}
}

func (p *Plan) closeEnd(f **os.File) {
	if *f != nil {
		(*f).Close()
		*f = nil
	}
}

// Close releases every channel end still held by the shell.
func (p *Plan) Close() error {
	var lastErr error
	for _, pipe := range p.Pipes {
		if err := pipe.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Open counts channel ends still held by the shell.
func (p *Plan) Open() int {
	n := 0
	for _, pipe := range p.Pipes {
		if pipe.R != nil {
			n++
		}
		if pipe.W != nil {
			n++
		}
	}
	return n
}
