package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"
)

const remediationTimeout = 5 * time.Minute

// Remediator repairs an environment the classifier flagged as not ready.
// The orchestrator invokes it at most once per Run.
type Remediator interface {
	Remediate(ctx context.Context) error
}

// playwrightRemediator installs the runner's Node and browser dependencies
type playwrightRemediator struct {
	runnerDir string
	log       *log.Logger
}

var _ Remediator = (*playwrightRemediator)(nil)

// NewPlaywrightRemediator creates the production remediator
func NewPlaywrightRemediator(runnerDir string, logger *log.Logger) Remediator {
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	return &playwrightRemediator{runnerDir: runnerDir, log: logger}
}

func (r *playwrightRemediator) Remediate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, remediationTimeout)
	defer cancel()

	steps := [][]string{
		{"npm", "install"},
		{"npx", "playwright", "install", "--with-deps"},
	}
	for _, step := range steps {
		cmd := exec.CommandContext(ctx, step[0], step[1:]...)
		cmd.Dir = r.runnerDir
		var combined bytes.Buffer
		cmd.Stdout = &combined
		cmd.Stderr = &combined

		r.log.Info("Remediating environment", "command", cmd.String())
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("remediation step %q: %w\noutput: %s", step[0], err, combined.String())
		}
	}
	return nil
}
