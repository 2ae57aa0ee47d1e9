package logs

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/bmizerany/assert"
)

func TestDefaultLogger_Level(t *testing.T) {
	ctx := context.Background()
	buf := &strings.Builder{}
	l := NewLogger(buf, Warn)
	l.Info(ctx, "hidden %d", 1)
	l.Warn(ctx, "shown %d", 2)
	l.Error(ctx, "shown %d", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, 2, len(lines))
	assert.T(t, strings.Contains(lines[0], "[WARN]"))
	assert.T(t, strings.HasSuffix(lines[0], "shown 2"))
	assert.T(t, strings.Contains(lines[1], "[ERROR]"))
	assert.T(t, strings.Contains(lines[1], "logger_test.go:"), lines[1])
}

func TestSlogLogger(t *testing.T) {
	ctx := context.Background()
	buf := &bytes.Buffer{}
	l := NewSlogLogger(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	l.Debug(ctx, "debug %v", "x")
	l.Info(ctx, "loaded table:%v rows:%d", "Store_Dim", 7)

	out := buf.String()
	assert.T(t, !strings.Contains(out, "debug x"))
	assert.T(t, strings.Contains(out, "loaded table:Store_Dim rows:7"), out)
}

func TestRunId(t *testing.T) {
	ctx := WithRunId(context.Background(), "3f2a")
	assert.Equal(t, "3f2a", RunId(ctx))
	assert.Equal(t, "", RunId(context.Background()))

	buf := &strings.Builder{}
	NewLogger(buf, Debug).Info(ctx, "batch loaded, rows:%v", 50)
	assert.T(t, strings.Contains(buf.String(), "[3f2a] batch loaded, rows:50"), buf.String())

	out := &bytes.Buffer{}
	NewSlogLogger(slog.New(slog.NewTextHandler(out, nil))).Warn(ctx, "slow batch")
	assert.T(t, strings.Contains(out.String(), "runId=3f2a"), out.String())
}
