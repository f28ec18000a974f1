package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	color.NoColor = true
}

func TestStdLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLogger()
	l.SetOutput(&buf)
	l.SetLevel(LogLevelWarn)

	l.Debug("debug %d", 1)
	l.Info("info %d", 2)
	l.Warn("warn %d", 3)
	l.Error("error %d", 4)
	l.SQL("SELECT 1", time.Millisecond)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.NotContains(t, out, "SELECT 1")
	assert.Contains(t, out, "WARN: warn 3")
	assert.Contains(t, out, "ERROR: error 4")
	assert.True(t, strings.HasPrefix(out, "[TABULA] "))
}

func TestStdLoggerDebugAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLogger()
	l.SetOutput(&buf)
	l.SetLevel(LogLevelDebug)

	l.WithFields(map[string]any{"table": "orders", "entity": "Order"}).Debug("probe failed")
	assert.Contains(t, buf.String(), "DEBUG: probe failed entity=Order table=orders")

	buf.Reset()
	l.SQL("CREATE TABLE t (id INTEGER)", 2*time.Millisecond, 1, "a")
	assert.Contains(t, buf.String(), "SQL: [2ms] CREATE TABLE t (id INTEGER) | args: [1 a]")
}

func TestStdLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLogger()
	l.SetOutput(&buf)
	l.SetFormat(LogFormatJSON)

	l.WithFields(map[string]any{"op": "sync"}).SQL("DROP TABLE t", time.Second)

	var data map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Equal(t, "SQL", data["level"])
	assert.Equal(t, "DROP TABLE t", data["sql"])
	assert.Equal(t, "1s", data["duration"])
	assert.Equal(t, "sync", data["op"])
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LogLevelInfo, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		l := Nop()
		l.Error("nothing %s", "here")
		l.SQL("SELECT 1", 0)
	})
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLogger(zap.New(core))
	l.SetLevel(LogLevelInfo)

	l.Debug("hidden")
	l.WithFields(map[string]any{"table": "orders"}).Warn("column %s unknown", "X")
	l.SQL("SELECT 1", time.Millisecond, 7)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "column X unknown", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "orders", entries[0].ContextMap()["table"])
	assert.Equal(t, "sql", entries[1].Message)
	assert.Equal(t, "SELECT 1", entries[1].ContextMap()["sql"])
}

func TestZapLoggerSetOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewZapLogger(nil)
	l.SetFormat(LogFormatJSON)
	l.SetOutput(&buf)

	l.Info("hello %s", "world")
	var data map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Equal(t, "hello world", data["msg"])
	assert.Equal(t, "info", data["level"])
}

func TestSlowLogger(t *testing.T) {
	var buf bytes.Buffer
	inner := NewStdLogger()
	inner.SetOutput(&buf)
	inner.SetLevel(LogLevelWarn)

	l := NewSlowLogger(inner, 50*time.Millisecond).WithFields(map[string]any{"db": "main"})
	l.SQL("SELECT 1", time.Millisecond)
	assert.Empty(t, buf.String())

	l.SQL("SELECT 2", time.Second, 7)
	out := buf.String()
	assert.Contains(t, out, "WARN: slow sql: SELECT 2 | args: [7]")
	assert.Contains(t, out, "db=main")
	assert.Contains(t, out, "duration=1s")

	assert.Same(t, inner, NewSlowLogger(inner, 0))
}
