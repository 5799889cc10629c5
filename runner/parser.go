package runner

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/DanePete/smoke-sub000/registry"
	"github.com/DanePete/smoke-sub000/types"
)

// RawExcerptLimit bounds the raw excerpt attached to a parse error
const RawExcerptLimit = 512

// CodeParseFailed marks a results artifact that could not be decoded
const CodeParseFailed = "PARSE_FAILED"

// The results artifact is the external runner's native report. Its schema is
// owned by the runner, not by this engine; only the fields below are read.
type reportAttempt struct {
	Status   string       `json:"status"`
	Duration float64      `json:"duration"` // milliseconds
	Error    *reportError `json:"error,omitempty"`
}

type reportError struct {
	Message string `json:"message"`
}

type reportTest struct {
	Results []reportAttempt `json:"results"`
}

type reportSpec struct {
	Title string       `json:"title"`
	Tests []reportTest `json:"tests"`
}

type reportSuite struct {
	Title  string        `json:"title"`
	Specs  []reportSpec  `json:"specs"`
	Suites []reportSuite `json:"suites,omitempty"`
}

type report struct {
	Suites []reportSuite `json:"suites"`
}

// ParseResults converts the runner's nested report into a flat, suite-keyed
// RunResult. Malformed or empty input degrades to an empty result carrying a
// parse error with a bounded raw excerpt; it never panics. Sub-suite nesting
// is flattened: only top-level grouping survives.
func ParseResults(data []byte) *types.RunResult {
	result := types.NewRunResult()

	if len(strings.TrimSpace(string(data))) == 0 {
		result.Error = parseError("results artifact is empty", data)
		return result
	}

	var rep report
	if err := json.Unmarshal(data, &rep); err != nil {
		result.Error = parseError(fmt.Sprintf("cannot decode results artifact: %v", err), data)
		return result
	}

	for _, rs := range rep.Suites {
		id := registry.TitleToID(rs.Title)
		suite, exists := result.Suites[id]
		if !exists {
			suite = &types.SuiteResult{Title: strings.TrimSpace(rs.Title)}
			result.Suites[id] = suite
		}
		collectTests(rs, suite)
		suite.DeriveSuiteStatus()
	}

	result.RecomputeSummary()
	return result
}

// collectTests flattens a suite and all of its nested sub-suites into the
// target's test list, preserving document order
func collectTests(rs reportSuite, target *types.SuiteResult) {
	for _, spec := range rs.Specs {
		target.Tests = append(target.Tests, foldSpec(spec))
	}
	for _, sub := range rs.Suites {
		collectTests(sub, target)
	}
}

// foldSpec reduces a spec's attempts to one TestResult. Durations sum across
// all attempts; status takes the most severe outcome, failed > skipped >
// passed. Runner statuses outside the canonical three count as failed.
func foldSpec(spec reportSpec) types.TestResult {
	tr := types.TestResult{
		Title:  spec.Title,
		Status: types.TestStatusPass,
	}
	seen := false
	for _, test := range spec.Tests {
		for _, attempt := range test.Results {
			seen = true
			tr.Duration += time.Duration(attempt.Duration * float64(time.Millisecond))
			status := mapStatus(attempt.Status)
			tr.Status = types.WorstStatus(tr.Status, status)
			if status == types.TestStatusFail && attempt.Error != nil && attempt.Error.Message != "" {
				tr.Error = attempt.Error.Message
			}
		}
	}
	if !seen {
		tr.Status = types.TestStatusSkip
	}
	return tr
}

func mapStatus(s string) types.TestStatus {
	switch s {
	case "passed":
		return types.TestStatusPass
	case "skipped":
		return types.TestStatusSkip
	default:
		// failed, timedOut, interrupted and anything future all fail
		return types.TestStatusFail
	}
}

// collapseSuites folds every parsed suite into one synthetic SuiteResult
// under the requested id, concatenating all tests. Used when a single-suite
// request parses to titles that don't map back to the requested id, which
// happens with custom multi-file suites.
func collapseSuites(result *types.RunResult, id string, label string) {
	ids := make([]string, 0, len(result.Suites))
	for sid := range result.Suites {
		ids = append(ids, sid)
	}
	sort.Strings(ids)

	merged := &types.SuiteResult{Title: label}
	for _, sid := range ids {
		merged.Tests = append(merged.Tests, result.Suites[sid].Tests...)
	}
	merged.DeriveSuiteStatus()

	result.Suites = map[string]*types.SuiteResult{id: merged}
	result.RecomputeSummary()
}

func parseError(message string, data []byte) *types.StructuredError {
	raw := string(data)
	if len(raw) > RawExcerptLimit {
		raw = raw[:RawExcerptLimit]
	}
	return &types.StructuredError{
		Code:    CodeParseFailed,
		Message: message,
		Hint:    "The runner may have crashed before writing its report; check stderr with --verbose",
		Raw:     raw,
	}
}
