package reporting

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanePete/smoke-sub000/types"
)

func sampleResult() *types.RunResult {
	result := types.NewRunResult()
	result.RunID = "run-1"
	result.RanAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	result.Suites["core_pages"] = &types.SuiteResult{
		Title: "Core Pages",
		Tests: []types.TestResult{
			{Title: "front page loads", Status: types.TestStatusPass, Duration: 1234 * time.Millisecond},
			{Title: "custom url responds", Status: types.TestStatusFail, Duration: 800 * time.Millisecond, Error: "expected 200, got 500"},
			{Title: "flaky thing", Status: types.TestStatusSkip},
		},
	}
	result.Suites["core_pages"].DeriveSuiteStatus()
	result.RecomputeSummary()
	return result
}

func TestRenderStructure(t *testing.T) {
	e := NewJUnitExporter(nil)
	out, err := e.Render(sampleResult())
	require.NoError(t, err)

	var doc junitTestSuites
	require.NoError(t, xml.Unmarshal(out, &doc))

	assert.Equal(t, 3, doc.Tests)
	assert.Equal(t, 1, doc.Failures)
	assert.Equal(t, 1, doc.Skipped)

	require.Len(t, doc.Suites, 1)
	suite := doc.Suites[0]
	assert.Equal(t, "core_pages", suite.Name)
	assert.Equal(t, 3, suite.Tests)
	assert.Equal(t, 1, suite.Failures)
	require.Len(t, suite.Cases, 3)

	// Durations render as seconds with exactly three decimals
	assert.Equal(t, "1.234", suite.Cases[0].Time)
	assert.Equal(t, "0.800", suite.Cases[1].Time)

	require.NotNil(t, suite.Cases[1].Failure)
	assert.Equal(t, "expected 200, got 500", suite.Cases[1].Failure.Message)
	assert.Equal(t, "expected 200, got 500", suite.Cases[1].Failure.Body)

	assert.Nil(t, suite.Cases[0].Failure)
	require.NotNil(t, suite.Cases[2].Skipped)
}

func TestRenderSuitesSortedByID(t *testing.T) {
	result := types.NewRunResult()
	for _, id := range []string{"webform", "auth", "media"} {
		result.Suites[id] = &types.SuiteResult{
			Tests: []types.TestResult{{Title: "t", Status: types.TestStatusPass}},
		}
		result.Suites[id].DeriveSuiteStatus()
	}
	result.RecomputeSummary()

	e := NewJUnitExporter(nil)
	out, err := e.Render(result)
	require.NoError(t, err)

	var doc junitTestSuites
	require.NoError(t, xml.Unmarshal(out, &doc))
	require.Len(t, doc.Suites, 3)
	assert.Equal(t, "auth", doc.Suites[0].Name)
	assert.Equal(t, "media", doc.Suites[1].Name)
	assert.Equal(t, "webform", doc.Suites[2].Name)
}

func TestRenderSanitizesFailureDetail(t *testing.T) {
	result := types.NewRunResult()
	result.Suites["auth"] = &types.SuiteResult{
		Tests: []types.TestResult{
			{
				Title:  "login works",
				Status: types.TestStatusFail,
				Error:  "bad \x00 byte and a ]]> terminator\nsecond line",
			},
		},
	}
	result.Suites["auth"].DeriveSuiteStatus()
	result.RecomputeSummary()

	e := NewJUnitExporter(nil)
	out, err := e.Render(result)
	require.NoError(t, err)

	s := string(out)
	assert.NotContains(t, s, "\x00")
	assert.NotContains(t, s, "]]>]]>", "the embedded terminator must not close the CDATA section early")

	var doc junitTestSuites
	require.NoError(t, xml.Unmarshal(out, &doc))
	body := doc.Suites[0].Cases[0].Failure.Body
	assert.Contains(t, body, "]] >")
	assert.Contains(t, body, "second line")
}

func TestRenderTruncatesMessageAttribute(t *testing.T) {
	longError := strings.Repeat("e", FailureAttrLimit+200)
	result := types.NewRunResult()
	result.Suites["auth"] = &types.SuiteResult{
		Tests: []types.TestResult{{Title: "t", Status: types.TestStatusFail, Error: longError}},
	}
	result.Suites["auth"].DeriveSuiteStatus()
	result.RecomputeSummary()

	e := NewJUnitExporter(nil)
	out, err := e.Render(result)
	require.NoError(t, err)

	var doc junitTestSuites
	require.NoError(t, xml.Unmarshal(out, &doc))
	failure := doc.Suites[0].Cases[0].Failure
	assert.Len(t, failure.Message, FailureAttrLimit, "attribute is bounded")
	assert.Len(t, failure.Body, len(longError), "body keeps the full detail")
}

func TestWriteToFile(t *testing.T) {
	e := NewJUnitExporter(nil)

	t.Run("creates intermediate directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reports", "nested", "junit.xml")
		ok := e.WriteToFile(sampleResult(), path)
		require.True(t, ok)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), xml.Header))
	})

	t.Run("returns false instead of raising", func(t *testing.T) {
		blocked := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocked, nil, 0644))
		// Parent "directory" is a regular file, so the write cannot succeed
		ok := e.WriteToFile(sampleResult(), filepath.Join(blocked, "junit.xml"))
		assert.False(t, ok)
	})
}
