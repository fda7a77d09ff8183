package mlearn

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracePushRecordsTelemetry(t *testing.T) {
	var trace ErrorTrace
	err := trace.Errorf(StatusInvalidInput, "bad value %d", 7)
	require.Error(t, err)

	frames := trace.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, StatusInvalidInput, frames[0].Status)
	assert.Equal(t, SeverityError, frames[0].Severity)
	assert.Contains(t, frames[0].Message, "bad value 7")
	assert.NotEmpty(t, frames[0].File)
	assert.Greater(t, frames[0].Line, 0)
	assert.True(t, strings.Contains(err.Error(), "invalid input"))
}

func TestTraceOverflowSentinel(t *testing.T) {
	var trace ErrorTrace
	for i := 0; i < 15; i++ {
		trace.Push(StatusInvalidInput, SeverityWarning, "frame")
	}
	frames := trace.Frames()
	require.Len(t, frames, maxTraceFrames)
	last := frames[maxTraceFrames-1]
	assert.Contains(t, last.Message, "stack full")
}

func TestTraceResetOverwrites(t *testing.T) {
	var trace ErrorTrace
	trace.Push(StatusNoData, SeverityWarning, "first")
	trace.Reset()
	assert.Empty(t, trace.Frames())
	assert.Nil(t, trace.Last())
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusSuccess.OK())
	assert.True(t, StatusSuccessWithWarning.OK())
	assert.False(t, StatusNumericalDifficulties.OK())
	assert.Equal(t, "numerical difficulties", StatusNumericalDifficulties.Error())
}

func TestInfoJSONEncodesFields(t *testing.T) {
	s := InfoJSON(map[string]any{"n_trees": 5, "model": "forest"})
	assert.Contains(t, s, "\"n_trees\":5")
	assert.Contains(t, s, "\"model\":\"forest\"")
}
