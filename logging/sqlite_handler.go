package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/icodeforyou/pvsoiling/database"
)

type LogAttrFormat string

const (
	LogAttrFormatText LogAttrFormat = "TEXT"
	LogAttrFormatJSON LogAttrFormat = "JSON"
)

type EntryWriter interface {
	SaveLogEntry(ctx context.Context, r database.LogEntryRow) error
}

// SQLiteHandler persists records to the log table so they can be browsed from the API.
type SQLiteHandler struct {
	db       EntryWriter
	minLevel slog.Leveler
	format   LogAttrFormat
	attrs    []slog.Attr
	group    string
	now      func() time.Time
}

func NewSQLiteHandler(db EntryWriter, minLevel slog.Leveler, format LogAttrFormat) *SQLiteHandler {
	return &SQLiteHandler{db: db, minLevel: minLevel, format: format, now: time.Now}
}

func (h *SQLiteHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < h.minLevel.Level() {
		return nil
	}

	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.qualify(a))
		return true
	})

	return h.db.SaveLogEntry(ctx, database.LogEntryRow{
		Timestamp: h.now(),
		Level:     int(r.Level),
		Message:   r.Message,
		Attrs:     h.formatAttrs(attrs),
	})
}

func (h *SQLiteHandler) formatAttrs(attrs []slog.Attr) string {
	if len(attrs) == 0 {
		return ""
	}

	if strings.EqualFold(string(h.format), string(LogAttrFormatText)) {
		var b strings.Builder
		for _, a := range attrs {
			if b.Len() > 0 {
				b.WriteString("; ")
			}
			b.WriteString(a.Key)
			b.WriteString("=")
			b.WriteString(strings.ReplaceAll(strings.ReplaceAll(a.Value.String(), "=", "\\="), ";", "\\;"))
		}
		return b.String()
	}

	list := make([]map[string]string, 0, len(attrs))
	for _, a := range attrs {
		list = append(list, map[string]string{a.Key: a.Value.String()})
	}
	jsonBytes, err := json.Marshal(list)
	if err != nil {
		return fmt.Sprintf(`{"error": "%v"}`, err)
	}
	return string(jsonBytes)
}

func (h *SQLiteHandler) qualify(a slog.Attr) slog.Attr {
	if h.group != "" {
		a.Key = h.group + "." + a.Key
	}
	return a
}

func (h *SQLiteHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	h2.attrs = append(h2.attrs, h.attrs...)
	for _, a := range attrs {
		h2.attrs = append(h2.attrs, h.qualify(a))
	}
	return &h2
}

func (h *SQLiteHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	if h.group != "" {
		h2.group = h.group + "." + name
	} else {
		h2.group = name
	}
	return &h2
}

func (h *SQLiteHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel.Level()
}
