package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LogLevelDebug},
		{"INFO", LogLevelInfo},
		{"warning", LogLevelWarn},
		{" error ", LogLevelError},
		{"bogus", LogLevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestCoreLogger_AttachesConversationAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf}).
		WithComponent("scheduler").
		WithConversation("ctx-1", "main")

	l.Info("scheduler.transition", "from", "awaiting_reasoning", "to", "finalizing")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "scheduler.transition", entry["msg"])
	assert.Equal(t, "scheduler", entry["component"])
	assert.Equal(t, "ctx-1", entry["context_id"])
	assert.Equal(t, "main", entry["active_agent"])
	assert.Equal(t, "finalizing", entry["to"])
}

func TestCoreLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Format: "text", Output: &buf})

	l.Debug("hidden")
	l.Info("hidden")
	assert.Empty(t, buf.String())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

type recordingLogger struct {
	NoOpLogger
	args [][]any
}

func (r *recordingLogger) Info(_ string, args ...any) { r.args = append(r.args, args) }

func TestWithConversation(t *testing.T) {
	var buf bytes.Buffer
	core := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	WithConversation(core, "ctx-2", "simple").Info("runner.turn")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ctx-2", entry["context_id"])
	assert.Equal(t, "simple", entry["active_agent"])

	rec := &recordingLogger{}
	WithConversation(rec, "ctx-3", "main").Info("x", "k", "v")
	require.Len(t, rec.args, 1)
	assert.Equal(t, []any{"context_id", "ctx-3", "active_agent", "main", "k", "v"}, rec.args[0])

	assert.IsType(t, NoOpLogger{}, WithConversation(nil, "a", "b"))
}

func TestLogToolCall(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "text", Output: &buf})

	LogToolCall(l, "search", "c1", 10*time.Millisecond, nil)
	LogToolCall(l, "search", "c2", 10*time.Millisecond, errors.New("boom"))

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "tool_name=search"))
	assert.Contains(t, out, "tool.call.completed")
	assert.Contains(t, out, "tool.call.failed")
	assert.Contains(t, out, "error=boom")
}

func TestLogReasoningCall(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "text", Output: &buf})

	LogReasoningCall(l, "gpt-4o", 120, 8, time.Second, nil)
	LogReasoningCall(l, "gpt-4o", 0, 0, time.Second, errors.New("rate limited"))

	out := buf.String()
	assert.Contains(t, out, "reasoning.call.completed")
	assert.Contains(t, out, "prompt_tokens=120")
	assert.Contains(t, out, "reasoning.call.failed")
}

func TestErrorWithStack(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	ErrorWithStack(l, errors.New("kaput"), "scheduler.panic")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kaput", entry["error"])
	assert.NotEmpty(t, entry["stack_trace"])
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, NoOpLogger{}, OrNoOp(nil))
	l := NewDefaultSlogLogger()
	assert.Same(t, l, OrNoOp(l))
}
