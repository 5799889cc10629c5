package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/DanePete/smoke-sub000/bridge"
	"github.com/DanePete/smoke-sub000/classify"
	"github.com/DanePete/smoke-sub000/metrics"
	"github.com/DanePete/smoke-sub000/registry"
	"github.com/DanePete/smoke-sub000/secrets"
	"github.com/DanePete/smoke-sub000/state"
	"github.com/DanePete/smoke-sub000/types"
)

const (
	// StateKeyLastResults and StateKeyLastRun are the persisted-state keys;
	// the state write is the run's only externally visible side effect.
	StateKeyLastResults = "last_results"
	StateKeyLastRun     = "last_run"

	// ResultsArtifactName is the runner's report location inside its own
	// tree, destructively overwritten each run
	ResultsArtifactName = "smoke-results.json"

	// SuitesDirName is the suite tree inside the runner dir; StagingDirName
	// is where out-of-tree specs are copied for one invocation
	SuitesDirName  = "tests"
	StagingDirName = ".staged"

	// DefaultRunTimeout caps one subprocess invocation
	DefaultRunTimeout = 10 * time.Minute

	// CodeSuiteNotAvailable marks a requested suite that is unknown or not
	// detected on the target site
	CodeSuiteNotAvailable = "SUITE_NOT_AVAILABLE"
)

// RunOptions selects what one invocation runs
type RunOptions struct {
	SuiteID           string // empty runs every enabled suite
	TargetURL         string // non-empty switches to remote mode
	RemoteCredentials *secrets.Credential
}

// Orchestrator drives the external runner: environment preconditions, bridge
// handoff, subprocess execution with a bounded one-shot remediation retry,
// result parsing and persistence.
//
// Invocations must be serialized by the caller. The bridge file, the results
// artifact and the persisted-state key are all singular well-known locations;
// overlapping runs are last-writer-wins and can silently drop a concurrent
// suite's result.
type Orchestrator struct {
	config Config
	tracer trace.Tracer
}

// Config holds configuration for creating an orchestrator
type Config struct {
	Log        *log.Logger
	Registry   *registry.Registry
	Bridge     *bridge.Writer
	State      state.Store
	Adapter    Adapter            // nil selects the real subprocess adapter
	Remediator Remediator         // nil selects the playwright remediator
	Env        EnvironmentChecker // nil selects the Node environment checker
	RunnerDir  string
	NodeBinary string
	Timeout    time.Duration // subprocess ceiling; zero means DefaultRunTimeout
	Parallel   bool          // forwarded to the runner's own workers, opaque here
	Verbose    bool
}

// NewOrchestrator creates a new orchestrator instance
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Bridge == nil {
		return nil, fmt.Errorf("bridge writer is required")
	}
	if cfg.State == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if cfg.RunnerDir == "" {
		return nil, fmt.Errorf("runner directory is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New(os.Stderr)
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultRunTimeout
	}
	if cfg.Adapter == nil {
		cfg.Adapter = NewPlaywrightAdapter(cfg.RunnerDir, cfg.Log)
	}
	if cfg.Remediator == nil {
		cfg.Remediator = NewPlaywrightRemediator(cfg.RunnerDir, cfg.Log)
	}
	if cfg.Env == nil {
		cfg.Env = NewNodeEnvironment(cfg.RunnerDir, cfg.NodeBinary)
	}
	return &Orchestrator{
		config: cfg,
		tracer: otel.Tracer("smoke orchestrator"),
	}, nil
}

// IsSetup reports whether the environment preconditions currently hold
func (o *Orchestrator) IsSetup(ctx context.Context) bool {
	return o.config.Env.Check(ctx) == nil
}

// Run executes one invocation end to end and returns the resulting
// aggregate. Test failures are ordinary data on the result; Run only returns
// an error for genuinely unexpected conditions such as filesystem failures
// writing the bridge file.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*types.RunResult, error) {
	ctx, span := o.tracer.Start(ctx, "smoke run")
	defer span.End()

	start := time.Now()

	// Environment failures never spawn a subprocess and never retry.
	if serr := o.config.Env.Check(ctx); serr != nil {
		o.config.Log.Error("Environment not ready", "code", serr.Code, "message", serr.Message)
		metrics.RecordEnvironmentFailure(serr.Code)
		result := types.NewRunResult()
		result.RanAt = time.Now()
		result.Error = serr
		return result, nil
	}

	var enabled []string
	if opts.SuiteID != "" {
		def, ok := o.config.Registry.Detect()[opts.SuiteID]
		if !ok || !def.Detected {
			result := types.NewRunResult()
			result.RanAt = time.Now()
			result.Error = &types.StructuredError{
				Code:    CodeSuiteNotAvailable,
				Message: fmt.Sprintf("Suite %q is not available on this site", opts.SuiteID),
				Hint:    "Run the detect command to list the suites available here",
			}
			return result, nil
		}
		enabled = []string{opts.SuiteID}
	}

	cb, err := o.config.Bridge.Generate(opts.TargetURL, opts.RemoteCredentials, enabled)
	if err != nil {
		return nil, fmt.Errorf("generating bridge config: %w", err)
	}

	// Bounded retry: at most one remediation, then one full re-invocation.
	var result *types.RunResult
	remediated := false
	for {
		var retryable bool
		result, retryable, err = o.attempt(ctx, opts, cb)
		if err != nil {
			return nil, err
		}
		if !retryable || remediated {
			break
		}
		remediated = true
		o.config.Log.Warn("Environment problem detected, remediating once and retrying")
		if rerr := o.config.Remediator.Remediate(ctx); rerr != nil {
			o.config.Log.Error("Remediation failed", "err", rerr)
			break
		}
		metrics.RecordRemediation()
	}

	result.RunID = uuid.New().String()
	result.RanAt = time.Now()

	if opts.SuiteID != "" {
		o.backMapRequestedSuite(result, opts.SuiteID)
		if err := o.mergeIntoPersisted(result, opts.SuiteID); err != nil {
			return nil, err
		}
	}

	if err := o.persist(result); err != nil {
		return nil, err
	}

	metrics.RecordRun(result.RunID, string(result.Status()),
		result.Summary.Total, result.Summary.Passed, result.Summary.Failed, result.Summary.Skipped,
		time.Since(start))

	o.config.Log.Info("Run completed",
		"run_id", result.RunID,
		"status", result.Status(),
		"suites", len(result.Suites),
		"total", result.Summary.Total,
		"failed", result.Summary.Failed)

	return result, nil
}

// attempt performs one full invocation cycle. The retryable flag marks
// environment failures eligible for the one-shot remediation.
func (o *Orchestrator) attempt(ctx context.Context, opts RunOptions, cb *bridge.ConfigBridge) (*types.RunResult, bool, error) {
	ctx, span := o.tracer.Start(ctx, "runner attempt")
	defer span.End()

	// The bridge file is rewritten, never appended, before every invocation.
	if err := o.config.Bridge.WriteConfig(cb); err != nil {
		return nil, false, err
	}

	// A stale artifact from a crashed prior run must not be misread as this
	// run's report.
	artifact := o.artifactPath()
	if err := os.Remove(artifact); err != nil && !os.IsNotExist(err) {
		return nil, false, fmt.Errorf("removing stale results artifact: %w", err)
	}

	filter, cleanupStaged, err := o.stageSpec(opts.SuiteID)
	if err != nil {
		return nil, false, err
	}
	defer cleanupStaged()

	runCtx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	inv, err := o.config.Adapter.Invoke(runCtx, InvokeOptions{
		SuiteFilter: filter,
		ReportPath:  artifact,
		Parallel:    o.config.Parallel,
		Verbose:     o.config.Verbose,
	})
	if err != nil {
		return nil, false, fmt.Errorf("invoking runner: %w", err)
	}

	data, readErr := os.ReadFile(artifact)
	empty := readErr != nil || len(bytes.TrimSpace(data)) == 0

	if empty {
		result := types.NewRunResult()
		result.ExitCode = inv.ExitCode

		if inv.TimedOut {
			// A timeout without any artifact is handled like a launch
			// failure; with an artifact, whatever partial results exist are
			// parsed below instead.
			result.Error = &types.StructuredError{
				Code:    classify.CodeTimeout,
				Message: fmt.Sprintf("Runner exceeded the %s ceiling without writing results", o.config.Timeout),
				Hint:    "Increase the timeout or check the target site's responsiveness",
				Raw:     truncate(inv.Stderr, classify.RawLimit),
			}
			return result, true, nil
		}

		if inv.ExitCode == 0 {
			result.Error = parseError("runner exited cleanly without writing a results artifact", nil)
			return result, false, nil
		}

		serr := classify.Analyze(inv.Stderr, inv.ExitCode)
		result.Error = serr
		o.config.Log.Debug("Classified runner failure", "code", serr.Code, "exit", inv.ExitCode)
		return result, classify.IsSetupError(serr.Code), nil
	}

	// A non-empty artifact is always parsed; a nonzero exit with failing
	// assertions is the common case, not an error path.
	result := ParseResults(data)
	result.ExitCode = inv.ExitCode

	// Second detection path: launch failures sometimes surface as per-test
	// errors in an otherwise well-formed report.
	if result.Error == nil && hasLaunchFailure(result) {
		return result, true, nil
	}
	return result, false, nil
}

// backMapRequestedSuite handles custom multi-file suites whose describe
// titles don't map back to the requested id: every parsed suite collapses
// into one synthetic suite under that id.
func (o *Orchestrator) backMapRequestedSuite(result *types.RunResult, suiteID string) {
	if len(result.Suites) == 0 {
		return
	}
	if _, ok := result.Suites[suiteID]; ok {
		// Drop stray suites the runner may have included beyond the request.
		for id := range result.Suites {
			if id != suiteID {
				delete(result.Suites, id)
			}
		}
		result.RecomputeSummary()
		return
	}

	label := suiteID
	if def, ok := o.config.Registry.Detect()[suiteID]; ok {
		label = def.Label
	}
	o.config.Log.Debug("No parsed suite matches requested id, collapsing", "suite", suiteID)
	collapseSuites(result, suiteID, label)
}

// mergeIntoPersisted folds the previously persisted suites into a
// single-suite result so one run never erases another suite's outcome. The
// requested suite's own entry is replaced, everything else is carried over,
// and the summary is recomputed from the full set.
func (o *Orchestrator) mergeIntoPersisted(result *types.RunResult, suiteID string) error {
	prior := types.NewRunResult()
	if _, err := o.config.State.Get(StateKeyLastResults, prior); err != nil {
		return fmt.Errorf("loading prior results: %w", err)
	}
	for id, suite := range prior.Suites {
		if id == suiteID {
			continue
		}
		if _, exists := result.Suites[id]; !exists {
			result.Suites[id] = suite
		}
	}
	result.RecomputeSummary()
	return nil
}

func (o *Orchestrator) persist(result *types.RunResult) error {
	if err := o.config.State.Set(StateKeyLastResults, result); err != nil {
		return fmt.Errorf("persisting run results: %w", err)
	}
	if err := o.config.State.Set(StateKeyLastRun, result.RanAt); err != nil {
		return fmt.Errorf("persisting run timestamp: %w", err)
	}
	return nil
}

// GetLastResults returns the persisted aggregate from the most recent run
func (o *Orchestrator) GetLastResults() (*types.RunResult, bool, error) {
	result := types.NewRunResult()
	ok, err := o.config.State.Get(StateKeyLastResults, result)
	if err != nil || !ok {
		return nil, false, err
	}
	return result, true, nil
}

// GetLastRunTime returns when the most recent run finished
func (o *Orchestrator) GetLastRunTime() (time.Time, bool, error) {
	var t time.Time
	ok, err := o.config.State.Get(StateKeyLastRun, &t)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func (o *Orchestrator) artifactPath() string {
	return filepath.Join(o.config.RunnerDir, ResultsArtifactName)
}

// hasLaunchFailure scans individual test errors for the browser-launch
// signature
func hasLaunchFailure(result *types.RunResult) bool {
	for _, suite := range result.Suites {
		for _, test := range suite.Tests {
			if test.Error != "" && classify.IsLaunchFailure(test.Error) {
				return true
			}
		}
	}
	return false
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
