package mlearn

import (
	"fmt"
	"runtime"
)

// Severity distinguishes frames whose result is still usable (warning) from
// frames that invalidate the result (error).
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

// maxTraceFrames bounds the per-estimator error stack. When a push would
// overflow, the last slot is replaced by a single stack-full sentinel.
const maxTraceFrames = 10

// TraceFrame is one recorded error with file/line telemetry.
type TraceFrame struct {
	Status   Status
	Severity Severity
	Message  string
	File     string
	Line     int
}

func (f TraceFrame) Error() string {
	return fmt.Sprintf("%s: %s (%s:%d)", f.Status, f.Message, f.File, f.Line)
}

// ErrorTrace is the bounded error stack owned by each estimator. Leaf
// functions push fresh errors; callers either stack higher-level context on
// top or Reset to overwrite. Pushed frames are also forwarded to the package
// error buffer so they can be drained with PopError.
type ErrorTrace struct {
	frames []TraceFrame
	full   bool
}

// Push records an error frame, capturing the caller's file and line.
// It returns the frame so entry points can hand it back as an error value.
func (t *ErrorTrace) Push(status Status, severity Severity, msg string) TraceFrame {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file, line = "unknown", 0
	}
	frame := TraceFrame{Status: status, Severity: severity, Message: msg, File: file, Line: line}
	switch {
	case len(t.frames) < maxTraceFrames:
		t.frames = append(t.frames, frame)
	case !t.full:
		t.frames[maxTraceFrames-1] = TraceFrame{
			Status:   StatusInternalError,
			Severity: SeverityWarning,
			Message:  "error stack full, further frames dropped",
			File:     file,
			Line:     line,
		}
		t.full = true
	}
	level := LogLevelWarning
	if severity == SeverityError {
		level = LogLevelFatal
	}
	pushError(level, frame.File, frame.Status.String(), msg)
	return frame
}

// Warnf pushes a warning frame: the result is degraded but usable.
func (t *ErrorTrace) Warnf(status Status, format string, args ...any) error {
	LogWarning(format, args...)
	frame := t.Push(status, SeverityWarning, fmt.Sprintf(format, args...))
	return frame
}

// Errorf pushes an error frame: the result is not usable.
func (t *ErrorTrace) Errorf(status Status, format string, args ...any) error {
	LogWarning(format, args...)
	frame := t.Push(status, SeverityError, fmt.Sprintf(format, args...))
	return frame
}

// Reset overwrites all recorded frames.
func (t *ErrorTrace) Reset() {
	t.frames = t.frames[:0]
	t.full = false
}

// Frames returns the recorded frames, oldest first.
func (t *ErrorTrace) Frames() []TraceFrame {
	out := make([]TraceFrame, len(t.frames))
	copy(out, t.frames)
	return out
}

// Last returns the most recent frame, or nil when the trace is empty.
func (t *ErrorTrace) Last() *TraceFrame {
	if len(t.frames) == 0 {
		return nil
	}
	f := t.frames[len(t.frames)-1]
	return &f
}
