package smoke

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"

	"github.com/DanePete/smoke-sub000/flags"
)

// Config holds the application configuration
type Config struct {
	RunnerDir      string        // Playwright runner directory (package.json + suite tree)
	CapsFile       string        // Site capability snapshot file
	DeclaredDir    string        // Directory of declared suite descriptors
	BaseSpecDir    string        // Fallback spec directory outside the runner tree
	StateDir       string        // Where run results and timestamps persist
	SecretsFile    string        // Local test credential file
	Suite          string        // Single-suite filter, empty runs everything enabled
	TargetURL      string        // Remote site to check, empty means local mode
	RemoteUser     string        // Credentials for the auth suite in remote mode
	RemotePassword string        //
	RunInterval    time.Duration // Interval between check runs
	RunOnce        bool          // Indicates if the service should exit after one run
	Timeout        time.Duration // Ceiling for one runner invocation
	NodeBinary     string        // Node binary for the environment check
	Parallel       bool          // Let the runner use its own worker pool
	Verbose        bool          // Forward verbose output to the runner
	JUnitOutput    string        // Optional JUnit XML export path
	Log            *log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, logger *log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	runnerDir := ctx.String(flags.RunnerDir.Name)
	if runnerDir == "" {
		return nil, errors.New("runner directory is required")
	}
	capsFile := ctx.String(flags.CapsFile.Name)
	if capsFile == "" {
		return nil, errors.New("capability snapshot file is required")
	}

	// Remote credentials only make sense against a remote target
	targetURL := ctx.String(flags.TargetURL.Name)
	remoteUser := ctx.String(flags.RemoteUser.Name)
	remotePassword := ctx.String(flags.RemotePassword.Name)
	if targetURL == "" && (remoteUser != "" || remotePassword != "") {
		return nil, errors.New("remote credentials require a target URL")
	}

	absRunnerDir, err := filepath.Abs(runnerDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for runner directory '%s': %w", runnerDir, err)
	}
	absCapsFile, err := filepath.Abs(capsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for capability file '%s': %w", capsFile, err)
	}

	stateDir := ctx.String(flags.StateDir.Name)
	if stateDir == "" {
		stateDir = "state"
	}
	stateDir, err = filepath.Abs(stateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for state directory '%s': %w", stateDir, err)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	return &Config{
		RunnerDir:      absRunnerDir,
		CapsFile:       absCapsFile,
		DeclaredDir:    ctx.String(flags.DeclaredDir.Name),
		BaseSpecDir:    ctx.String(flags.BaseSpecDir.Name),
		StateDir:       stateDir,
		SecretsFile:    ctx.String(flags.SecretsFile.Name),
		Suite:          ctx.String(flags.Suite.Name),
		TargetURL:      targetURL,
		RemoteUser:     remoteUser,
		RemotePassword: remotePassword,
		RunInterval:    runInterval,
		RunOnce:        runOnce,
		Timeout:        ctx.Duration(flags.Timeout.Name),
		NodeBinary:     ctx.String(flags.NodeBinary.Name),
		Parallel:       ctx.Bool(flags.Parallel.Name),
		Verbose:        ctx.Bool(flags.Verbose.Name),
		JUnitOutput:    ctx.String(flags.JUnitOutput.Name),
		Log:            logger,
	}, nil
}
