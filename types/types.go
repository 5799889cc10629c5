package types

import "time"

// TestStatus represents the possible outcomes of a single check
type TestStatus string

const (
	TestStatusPass TestStatus = "passed"
	TestStatusFail TestStatus = "failed"
	TestStatusSkip TestStatus = "skipped"
)

// TestResult captures the outcome of a single check within a suite
type TestResult struct {
	Title    string        `json:"title"`
	Status   TestStatus    `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// SuiteResult aggregates the checks of one suite. Status is derived:
// a suite fails if any of its tests failed.
type SuiteResult struct {
	Title    string        `json:"title"`
	Tests    []TestResult  `json:"tests"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
	Status   TestStatus    `json:"status"`
}

// Summary holds the aggregate counts across all suites of a run
type Summary struct {
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// RunResult is the suite-keyed aggregate for one orchestrator invocation.
// Suites from earlier invocations survive a single-suite run: the new
// SuiteResult is merged in under its id and the summary recomputed.
type RunResult struct {
	RunID    string                  `json:"runId,omitempty"`
	Suites   map[string]*SuiteResult `json:"suites"`
	Summary  Summary                 `json:"summary"`
	RanAt    time.Time               `json:"ranAt"`
	ExitCode int                     `json:"exitCode"`
	Error    *StructuredError        `json:"error,omitempty"`
}

// NewRunResult returns an empty result ready for suite merging
func NewRunResult() *RunResult {
	return &RunResult{
		Suites: make(map[string]*SuiteResult),
	}
}

// RecomputeSummary retallies the summary from all suites currently present.
// Summary fields are always derived this way, never counted independently.
func (r *RunResult) RecomputeSummary() {
	var s Summary
	for _, suite := range r.Suites {
		s.Total += len(suite.Tests)
		s.Passed += suite.Passed
		s.Failed += suite.Failed
		s.Skipped += suite.Skipped
		s.Duration += suite.Duration
	}
	r.Summary = s
}

// Status returns the overall run status derived from the suites
func (r *RunResult) Status() TestStatus {
	if r.Summary.Failed > 0 || r.Error != nil {
		return TestStatusFail
	}
	if r.Summary.Total == r.Summary.Skipped && r.Summary.Total > 0 {
		return TestStatusSkip
	}
	return TestStatusPass
}

// DeriveSuiteStatus tallies a suite's counters from its tests and sets the
// derived status. Call after the test list is final.
func (s *SuiteResult) DeriveSuiteStatus() {
	s.Passed, s.Failed, s.Skipped, s.Duration = 0, 0, 0, 0
	for _, t := range s.Tests {
		s.Duration += t.Duration
		switch t.Status {
		case TestStatusPass:
			s.Passed++
		case TestStatusFail:
			s.Failed++
		case TestStatusSkip:
			s.Skipped++
		}
	}
	switch {
	case s.Failed > 0:
		s.Status = TestStatusFail
	case s.Skipped == len(s.Tests) && len(s.Tests) > 0:
		s.Status = TestStatusSkip
	default:
		s.Status = TestStatusPass
	}
}

// WorstStatus returns the more severe of two statuses,
// with precedence failed > skipped > passed.
func WorstStatus(a, b TestStatus) TestStatus {
	rank := func(s TestStatus) int {
		switch s {
		case TestStatusFail:
			return 2
		case TestStatusSkip:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
