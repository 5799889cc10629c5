package smoke

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError(t *testing.T) {
	inner := errors.New("config file missing")
	err := NewRuntimeError(inner)

	assert.True(t, IsRuntimeError(err))
	assert.ErrorIs(t, err, inner, "unwraps to the inner error")
	assert.Contains(t, err.Error(), "runtime error")

	wrapped := fmt.Errorf("starting service: %w", err)
	assert.True(t, IsRuntimeError(wrapped), "detection sees through wrapping")

	assert.False(t, IsRuntimeError(nil))
	assert.False(t, IsRuntimeError(errors.New("plain")))
}

func TestCheckFailureError(t *testing.T) {
	err := NewCheckFailureError("2 of 5 checks failed")

	assert.True(t, IsCheckFailureError(err))
	assert.Contains(t, err.Error(), "2 of 5 checks failed")

	wrapped := fmt.Errorf("run finished: %w", err)
	assert.True(t, IsCheckFailureError(wrapped))

	assert.False(t, IsCheckFailureError(nil))
	assert.False(t, IsCheckFailureError(NewRuntimeError(errors.New("x"))))
	assert.False(t, IsRuntimeError(err))
}
