package ui

import (
	"fmt"
	"io"
	"os"
	"time"
)

// RunnerConfig describes a command run through a Runner
type RunnerConfig struct {
	Title           string   // e.g., "Probe"
	Command         string   // e.g., "argo probe --contract urn:example:printer"
	Params          []Param  // shown in the header
	Steps           []string // step names, in order
	Troubleshooting []string // shown on failure
	Verbose         bool     // show payload boxes
	Output          io.Writer
}

// Operation is the work a Runner reports on. The details it returns are
// added to the success box.
type Operation func(onStep StepCallback) ([]Param, error)

// Runner prints header, step progress and the final result for a
// one-shot command.
type Runner struct {
	config   RunnerConfig
	progress *Progress
	out      io.Writer
	width    int
	payloads []*PayloadBox
}

// NewRunner creates a runner writing to config.Output, or stdout
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	width := GetTerminalWidth()
	return &Runner{
		config:   config,
		progress: NewProgress(config.Steps...).SetWidth(width),
		out:      config.Output,
		width:    width,
	}
}

// SetWidth overrides the detected terminal width
func (r *Runner) SetWidth(width int) *Runner {
	r.width = width
	r.progress.SetWidth(width)
	return r
}

// AddPayload records a raw body shown after the result in verbose mode.
func (r *Runner) AddPayload(title string, body []byte) {
	r.payloads = append(r.payloads, NewPayloadBox(title, body).SetWidth(r.width))
}

// Run prints the header, runs op and prints the result box.
func (r *Runner) Run(op Operation) error {
	start := time.Now()

	header := NewHeader(r.config.Title, r.config.Command, r.config.Params...).SetWidth(r.width)
	r.println(header.Render())
	r.println("")

	details, err := op(r.onStep)
	elapsed := time.Since(start).Round(time.Millisecond)

	r.println("")
	var result *Result
	if err != nil {
		result = NewFailureResult(r.config.Title+" failed", err, r.config.Troubleshooting)
	} else {
		result = NewSuccessResult(r.config.Title+" complete", details...)
		result.AddDetail("Duration", elapsed.String())
	}
	r.println(result.SetWidth(r.width).Render())

	if r.config.Verbose {
		for _, p := range r.payloads {
			r.println("")
			r.println(p.Render())
		}
	}
	return err
}

func (r *Runner) onStep(n int, status StepStatus, message string) {
	r.progress.UpdateStep(n, status, message)
	if n < 1 || n > r.progress.Total() {
		return
	}
	line := r.progress.RenderStep(r.progress.Steps[n-1])
	if status == StepRunning {
		// overwritten when the step finishes
		_, _ = fmt.Fprint(r.out, line+"\r")
		return
	}
	r.println(line)
}

func (r *Runner) println(s string) {
	_, _ = fmt.Fprintln(r.out, s)
}
