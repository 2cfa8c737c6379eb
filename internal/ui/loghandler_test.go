package ui_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/arc7/internal/ui"
)

func decodeJSONLines(t *testing.T, b []byte) []map[string]any {
	t.Helper()
	var recs []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		recs = append(recs, rec)
	}
	return recs
}

// The CLI pairs a terse stderr handler with a verbose --log file.
func TestMultiHandler_TerminalAndLogFile(t *testing.T) {
	t.Parallel()

	var term, file bytes.Buffer
	logger := slog.New(ui.NewMultiHandler(
		slog.NewTextHandler(&term, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug}),
	))

	logger.Debug("Extracting file a.txt")
	logger.Warn("configured 7-Zip binary not usable", "error", "not found")

	assert.NotContains(t, term.String(), "Extracting file")
	assert.Contains(t, term.String(), `error="not found"`)

	recs := decodeJSONLines(t, file.Bytes())
	require.Len(t, recs, 2)
	assert.Equal(t, "DEBUG", recs[0]["level"])
	assert.Equal(t, "Extracting file a.txt", recs[0]["msg"])
	assert.Equal(t, "not found", recs[1]["error"])
}

func TestMultiHandler_Enabled(t *testing.T) {
	t.Parallel()

	m := ui.NewMultiHandler(
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	tests := []struct {
		level slog.Level
		want  bool
	}{
		{slog.LevelDebug, false},
		{slog.LevelInfo, false},
		{slog.LevelWarn, true},
		{slog.LevelError, true},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, m.Enabled(context.Background(), tt.level))
		})
	}
	assert.False(t, ui.NewMultiHandler().Enabled(context.Background(), slog.LevelError))
}

func TestMultiHandler_AttrsAndGroupsReachEveryHandler(t *testing.T) {
	t.Parallel()

	var a, b bytes.Buffer
	m := ui.NewMultiHandler(
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	)
	logger := slog.New(m).With("op", "extract").WithGroup("entry")
	logger.Info("skipped", "name", "../evil.txt")

	for _, buf := range []*bytes.Buffer{&a, &b} {
		recs := decodeJSONLines(t, buf.Bytes())
		require.Len(t, recs, 1)
		assert.Equal(t, "extract", recs[0]["op"])
		group, ok := recs[0]["entry"].(map[string]any)
		require.True(t, ok, "expected group 'entry' in %s", buf.String())
		assert.Equal(t, "../evil.txt", group["name"])
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return assert.AnError }

func TestMultiHandler_JoinsErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ok := slog.NewTextHandler(&buf, nil)
	bad := failingHandler{slog.NewTextHandler(&bytes.Buffer{}, nil)}

	h := ui.NewMultiHandler(bad, ok)
	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "still written", 0))
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, buf.String(), "still written")
}
