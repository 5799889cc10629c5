package smoke

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/DanePete/smoke-sub000/types"
)

func TestGetResultString(t *testing.T) {
	assert.Equal(t, "✓ pass", getResultString(types.TestStatusPass))
	assert.Equal(t, "- skip", getResultString(types.TestStatusSkip))
	assert.Equal(t, "✗ fail", getResultString(types.TestStatusFail))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "0.0s", formatDuration(0))
	assert.Equal(t, "90.0s", formatDuration(90*time.Second))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "first", firstLine("first\nsecond\nthird"))
	assert.Equal(t, "short", firstLine("short"))
	assert.Equal(t, "", firstLine(""))

	long := strings.Repeat("a", 120)
	got := firstLine(long)
	assert.Len(t, got, 73)
	assert.True(t, strings.HasSuffix(got, "..."))
}
