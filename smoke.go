// Package smoke wires the suite registry, bridge writer and orchestrator into
// a long-lived service that checks a CMS site end to end.
package smoke

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"

	"github.com/DanePete/smoke-sub000/bridge"
	"github.com/DanePete/smoke-sub000/exitcodes"
	"github.com/DanePete/smoke-sub000/registry"
	"github.com/DanePete/smoke-sub000/reporting"
	"github.com/DanePete/smoke-sub000/runner"
	"github.com/DanePete/smoke-sub000/secrets"
	"github.com/DanePete/smoke-sub000/sitecaps"
	"github.com/DanePete/smoke-sub000/state"
	"github.com/DanePete/smoke-sub000/types"
)

// Smoke runs site checks once or on an interval.
type Smoke struct {
	ctx          context.Context
	config       *Config
	version      string
	registry     *registry.Registry
	orchestrator *runner.Orchestrator
	exporter     *reporting.JUnitExporter
	result       *types.RunResult

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*Smoke, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating smoke service with config",
		"runnerDir", config.RunnerDir,
		"capsFile", config.CapsFile,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce,
		"suite", config.Suite)

	caps, err := sitecaps.Load(config.CapsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load site capabilities: %w", err)
	}

	reg, err := registry.NewRegistry(registry.Config{
		Log:         config.Log,
		Caps:        caps,
		SuitesDir:   filepath.Join(config.RunnerDir, runner.SuitesDirName),
		DeclaredDir: config.DeclaredDir,
		BaseSpecDir: config.BaseSpecDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	var secretStore secrets.Store
	if config.SecretsFile != "" {
		secretStore = secrets.NewFileStore(config.SecretsFile)
	}

	bridgeWriter, err := bridge.NewWriter(bridge.Config{
		Log:       config.Log,
		Registry:  reg,
		Caps:      caps,
		Secrets:   secretStore,
		RunnerDir: config.RunnerDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bridge writer: %w", err)
	}

	stateStore, err := state.NewFileStore(config.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create state store: %w", err)
	}

	orchestrator, err := runner.NewOrchestrator(runner.Config{
		Log:        config.Log,
		Registry:   reg,
		Bridge:     bridgeWriter,
		State:      stateStore,
		RunnerDir:  config.RunnerDir,
		NodeBinary: config.NodeBinary,
		Timeout:    config.Timeout,
		Parallel:   config.Parallel,
		Verbose:    config.Verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	config.Log.Info("smoke.New: created registry and orchestrator")

	return &Smoke{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		orchestrator:     orchestrator,
		exporter:         reporting.NewJUnitExporter(config.Log),
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the checks periodically at the configured interval.
func (s *Smoke) Start(ctx context.Context) error {
	// Panics are runtime errors, not check failures
	defer func() {
		if r := recover(); r != nil {
			s.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	s.ctx = ctx
	s.done = make(chan struct{})
	s.running.Store(true)

	if s.config.RunOnce {
		s.config.Log.Info("Starting smoke in run-once mode")
	} else {
		s.config.Log.Info("Starting smoke in continuous mode", "interval", s.config.RunInterval)
	}

	// Run checks immediately on startup
	err := s.runChecks()
	if err != nil {
		s.config.Log.Error("Runtime error running checks", "error", err)
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}

	// If in run-once mode, trigger shutdown and return
	if s.config.RunOnce {
		s.config.Log.Info("Checks completed, exiting (run-once mode)")

		if s.result != nil && s.result.Error != nil {
			s.config.Log.Error("Run-once check run could not execute",
				"code", s.result.Error.Code, "message", s.result.Error.Message)
			return NewRuntimeError(s.result.Error)
		}
		if s.result != nil && s.result.Status() == types.TestStatusFail {
			s.config.Log.Warn("Run-once check run completed with failures, returning exit code 1")
			return NewCheckFailureError(fmt.Sprintf("%d of %d checks failed",
				s.result.Summary.Failed, s.result.Summary.Total))
		}

		go func() {
			s.shutdownCallback(nil)
		}()
		return nil // Success (exit code 0)
	}

	// Start a goroutine for periodic check execution
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.config.Log.Debug("Starting periodic check goroutine", "interval", s.config.RunInterval)

		for {
			select {
			case <-time.After(s.config.RunInterval):
				if !s.running.Load() {
					s.config.Log.Debug("Service stopped, exiting periodic check goroutine")
					return
				}

				s.config.Log.Info("Running periodic checks")
				if err := s.runChecks(); err != nil {
					s.config.Log.Error("Error running periodic checks", "error", err)
				}

			case <-s.done:
				s.config.Log.Debug("Done signal received, stopping periodic check goroutine")
				return

			case <-ctx.Done():
				s.config.Log.Debug("Context canceled, stopping periodic check goroutine")
				s.running.Store(false)
				return
			}
		}
	}()
	s.config.Log.Debug("smoke started successfully")
	return nil
}

// runChecks runs one orchestrator invocation and processes the results
func (s *Smoke) runChecks() error {
	opts := runner.RunOptions{
		SuiteID:   s.config.Suite,
		TargetURL: s.config.TargetURL,
	}
	if s.config.RemoteUser != "" || s.config.RemotePassword != "" {
		opts.RemoteCredentials = &secrets.Credential{
			Username: s.config.RemoteUser,
			Password: s.config.RemotePassword,
		}
	}

	result, err := s.orchestrator.Run(s.ctx, opts)
	if err != nil {
		// This is a runtime error, not a check failure
		s.config.Log.Error("Runtime error running checks", "error", err)
		return NewRuntimeError(err)
	}
	s.result = result

	s.printResultsTable(result)
	if s.config.JUnitOutput != "" {
		if ok := s.exporter.WriteToFile(result, s.config.JUnitOutput); !ok {
			s.config.Log.Warn("JUnit export failed, continuing", "path", s.config.JUnitOutput)
		}
	}
	s.config.Log.Info("Check run completed", "run_id", result.RunID, "status", result.Status())
	return nil
}

// Stop stops the smoke service.
func (s *Smoke) Stop(ctx context.Context) error {
	s.config.Log.Info("Stopping smoke")

	if !s.running.Load() {
		s.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	// Update running state first to prevent new check runs
	s.running.Store(false)
	s.config.Log.Debug("Sending done signal to goroutines")
	close(s.done)

	s.config.Log.Info("smoke stopped successfully")
	return nil
}

// Stopped returns true if the smoke service is stopped.
func (s *Smoke) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until all goroutines have terminated.
// This is useful in tests to ensure complete cleanup before moving to the next test.
func (s *Smoke) WaitForShutdown(ctx context.Context) error {
	s.config.Log.Debug("Waiting for all goroutines to terminate")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.config.Log.Debug("All goroutines terminated successfully")
		return nil
	case <-ctx.Done():
		s.config.Log.Warn("Timed out waiting for goroutines to terminate", "error", ctx.Err())
		return ctx.Err()
	}
}

// printResultsTable prints the results of the check run to the console.
func (s *Smoke) printResultsTable(result *types.RunResult) {
	s.config.Log.Info("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Site Check Results (%s)", formatDuration(result.Summary.Duration)))

	t.AppendHeader(table.Row{
		"Type", "ID", "Duration", "Tests", "Passed", "Failed", "Skipped", "Status", "Error",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	ids := make([]string, 0, len(result.Suites))
	for id := range result.Suites {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		suite := result.Suites[id]
		t.AppendRow(table.Row{
			"Suite",
			id,
			formatDuration(suite.Duration),
			"-", // Don't count the suite as a check
			suite.Passed,
			suite.Failed,
			suite.Skipped,
			getResultString(suite.Status),
			"",
		})

		for i, test := range suite.Tests {
			prefix := "├──"
			if i == len(suite.Tests)-1 {
				prefix = "└──"
			}
			t.AppendRow(table.Row{
				"Test",
				fmt.Sprintf("%s %s", prefix, test.Title),
				formatDuration(test.Duration),
				"1", // Count actual check
				boolToInt(test.Status == types.TestStatusPass),
				boolToInt(test.Status == types.TestStatusFail),
				boolToInt(test.Status == types.TestStatusSkip),
				getResultString(test.Status),
				firstLine(test.Error),
			})
		}
		t.AppendSeparator()
	}

	status := result.Status()
	if status == types.TestStatusPass {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else if status == types.TestStatusSkip {
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(result.Summary.Duration),
		result.Summary.Total,
		result.Summary.Passed,
		result.Summary.Failed,
		result.Summary.Skipped,
		getResultString(status),
		"",
	})

	t.Render()

	if result.Error != nil {
		fmt.Printf("Run error [%s]: %s\n", result.Error.Code, result.Error.Message)
		if result.Error.Hint != "" {
			fmt.Printf("Hint: %s\n", result.Error.Hint)
		}
	}
}
