package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/charmbracelet/log"
)

// InvokeOptions carries the per-invocation knobs handed to the external
// runner
type InvokeOptions struct {
	SuiteFilter string // spec path relative to the runner dir; empty runs all enabled suites
	ReportPath  string // absolute path the runner writes its JSON report to
	Parallel    bool
	Verbose     bool
}

// InvokeResult is the observable outcome of one subprocess run. Stdout is
// deliberately absent: success is decided from the results artifact on disk,
// never from buffered output. Only stderr is captured, for diagnostics.
type InvokeResult struct {
	ExitCode int
	Stderr   string
	TimedOut bool
}

// Adapter spawns the external runner. Orchestration logic is written against
// this interface so it can be exercised with a fake that never forks.
type Adapter interface {
	Invoke(ctx context.Context, opts InvokeOptions) (*InvokeResult, error)
}

// playwrightAdapter shells out to the real runner via npx
type playwrightAdapter struct {
	runnerDir string
	log       *log.Logger
}

var _ Adapter = (*playwrightAdapter)(nil)

// NewPlaywrightAdapter creates the production adapter rooted at the runner's
// directory tree
func NewPlaywrightAdapter(runnerDir string, logger *log.Logger) Adapter {
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	return &playwrightAdapter{runnerDir: runnerDir, log: logger}
}

func (a *playwrightAdapter) Invoke(ctx context.Context, opts InvokeOptions) (*InvokeResult, error) {
	args := []string{"playwright", "test", "--reporter=json"}
	if opts.SuiteFilter != "" {
		args = append(args, opts.SuiteFilter)
	}
	if !opts.Parallel {
		args = append(args, "--workers=1")
	}

	cmd := exec.CommandContext(ctx, "npx", args...)
	cmd.Dir = a.runnerDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("PLAYWRIGHT_JSON_OUTPUT_NAME=%s", opts.ReportPath),
		fmt.Sprintf("SMOKE_PARALLEL=%t", opts.Parallel),
		fmt.Sprintf("SMOKE_VERBOSE=%t", opts.Verbose),
	)

	// The report can be arbitrarily large; it is read back from disk, so
	// stdout is discarded rather than buffered.
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	a.log.Debug("Invoking runner", "dir", a.runnerDir, "command", cmd.String())

	err := cmd.Run()
	res := &InvokeResult{
		Stderr:   stderr.String(),
		TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			// Spawn failure: surface it through stderr so classification
			// still applies, with a conventional exit code.
			res.ExitCode = 127
			if res.Stderr == "" {
				res.Stderr = err.Error()
			}
		}
	}
	return res, nil
}
