// Package reporting renders run aggregates for CI consumption.
package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/DanePete/smoke-sub000/types"
)

// FailureAttrLimit bounds the failure message attribute; the full sanitized
// detail rides in the CDATA body for CI tools that ignore attributes.
const FailureAttrLimit = 256

type junitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      string          `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr"`
	Cases     []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name    string        `xml:"name,attr"`
	Time    string        `xml:"time,attr"`
	Failure *junitFailure `xml:"failure,omitempty"`
	Skipped *junitSkipped `xml:"skipped,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Body    string `xml:",cdata"`
}

type junitSkipped struct{}

// JUnitExporter renders a RunResult as JUnit XML. Counters are copied from
// the aggregate model, never recounted here.
type JUnitExporter struct {
	log *log.Logger
}

// NewJUnitExporter creates a JUnit exporter
func NewJUnitExporter(logger *log.Logger) *JUnitExporter {
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	return &JUnitExporter{log: logger}
}

// Render serializes the aggregate into JUnit XML bytes
func (e *JUnitExporter) Render(result *types.RunResult) ([]byte, error) {
	doc := junitTestSuites{
		Name:     "smoke",
		Tests:    result.Summary.Total,
		Failures: result.Summary.Failed,
		Skipped:  result.Summary.Skipped,
		Time:     formatSeconds(result.Summary.Duration),
	}

	ids := make([]string, 0, len(result.Suites))
	for id := range result.Suites {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		suite := result.Suites[id]
		js := junitTestSuite{
			Name:      id,
			Tests:     suite.Passed + suite.Failed + suite.Skipped,
			Failures:  suite.Failed,
			Skipped:   suite.Skipped,
			Time:      formatSeconds(suite.Duration),
			Timestamp: result.RanAt.UTC().Format(time.RFC3339),
		}
		for _, test := range suite.Tests {
			tc := junitTestCase{
				Name: test.Title,
				Time: formatSeconds(test.Duration),
			}
			switch test.Status {
			case types.TestStatusFail:
				detail := sanitizeXML(test.Error)
				tc.Failure = &junitFailure{
					Message: truncate(detail, FailureAttrLimit),
					Body:    detail,
				}
			case types.TestStatusSkip:
				tc.Skipped = &junitSkipped{}
			}
			js.Cases = append(js.Cases, tc)
		}
		doc.Suites = append(doc.Suites, js)
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding junit report: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// WriteToFile renders and writes the report, creating intermediate
// directories. It returns false instead of an error so callers can degrade
// gracefully when export fails.
func (e *JUnitExporter) WriteToFile(result *types.RunResult, path string) bool {
	data, err := e.Render(result)
	if err != nil {
		e.log.Error("Cannot render junit report", "err", err)
		return false
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		e.log.Error("Cannot create junit report directory", "path", path, "err", err)
		return false
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		e.log.Error("Cannot write junit report", "path", path, "err", err)
		return false
	}
	e.log.Debug("Wrote junit report", "path", path)
	return true
}

// formatSeconds converts a duration to seconds at fixed 3-decimal precision
func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

// sanitizeXML drops control characters XML 1.0 forbids and breaks any CDATA
// terminator embedded in the detail text
func sanitizeXML(s string) string {
	s = strings.ReplaceAll(s, "]]>", "]] >")
	return strings.Map(func(r rune) rune {
		if r == 0x9 || r == 0xA || r == 0xD || (r >= 0x20 && r != 0xFFFE && r != 0xFFFF) {
			return r
		}
		return -1
	}, s)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
