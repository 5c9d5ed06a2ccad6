package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/icodeforyou/pvsoiling/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entrySink struct {
	entries []database.LogEntryRow
}

func (s *entrySink) SaveLogEntry(_ context.Context, r database.LogEntryRow) error {
	s.entries = append(s.entries, r)
	return nil
}

func ptr(s string) *string { return &s }

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    *string
		expected slog.Level
	}{
		{nil, slog.LevelInfo},
		{ptr("debug"), slog.LevelDebug},
		{ptr("INFO"), slog.LevelInfo},
		{ptr("Warn"), slog.LevelWarn},
		{ptr("warning"), slog.LevelWarn},
		{ptr(" error "), slog.LevelError},
		{ptr("verbose"), slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, LevelFromString(tt.input))
	}
}

func TestSQLiteHandlerFiltersAndKeepsAttrs(t *testing.T) {
	sink := &entrySink{}
	logger := slog.New(NewSQLiteHandler(sink, slog.LevelInfo, LogAttrFormatJSON)).
		With(slog.String("module", "task"))

	logger.Debug("not stored")
	logger.Info("sync done", slog.Int("count", 2))

	require.Len(t, sink.entries, 1)
	e := sink.entries[0]
	assert.Equal(t, "sync done", e.Message)
	assert.Equal(t, int(slog.LevelInfo), e.Level)
	assert.JSONEq(t, `[{"module":"task"},{"count":"2"}]`, e.Attrs)
}

func TestSQLiteHandlerTextFormat(t *testing.T) {
	sink := &entrySink{}
	logger := slog.New(NewSQLiteHandler(sink, slog.LevelDebug, LogAttrFormatText)).WithGroup("req")

	logger.Warn("odd", slog.String("q", "a=b;c"))

	require.Len(t, sink.entries, 1)
	assert.Equal(t, `req.q=a\=b\;c`, sink.entries[0].Attrs)
}

func TestMultiHandlerRespectsEachLevel(t *testing.T) {
	debug, warn := &entrySink{}, &entrySink{}
	logger := slog.New(NewMultiHandler(
		NewSQLiteHandler(debug, slog.LevelDebug, LogAttrFormatJSON),
		NewSQLiteHandler(warn, slog.LevelWarn, LogAttrFormatJSON),
	))

	logger.Debug("one")
	logger.Warn("two")

	assert.Len(t, debug.entries, 2)
	require.Len(t, warn.entries, 1)
	assert.Equal(t, "two", warn.entries[0].Message)

	level := new(slog.LevelVar)
	level.Set(slog.LevelError)
	quiet := slog.New(NewMultiHandler(NewSQLiteHandler(&entrySink{}, level, LogAttrFormatJSON)))
	assert.False(t, quiet.Enabled(context.Background(), slog.LevelWarn))
	level.Set(slog.LevelDebug)
	assert.True(t, quiet.Enabled(context.Background(), slog.LevelWarn))
}
