package www

import (
	"log/slog"
	"net/http"

	"github.com/icodeforyou/pvsoiling/database"
	"github.com/icodeforyou/pvsoiling/logging"
)

func NewLogHandler(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := max(intOrDefault(r.URL, "page", 1), 1)
		pageSize := intOrDefault(r.URL, "size", 25)
		if pageSize < 1 || pageSize > 500 {
			pageSize = 25
		}

		level := slog.LevelDebug
		if v := r.URL.Query().Get("level"); v != "" {
			level = logging.LevelFromString(&v)
		}

		entries, err := store.GetLogEntries(r.Context(), level, page, pageSize)
		if err != nil {
			logger.Error("handling log request", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, "failed to read log")
			return
		}
		if entries == nil {
			entries = []database.LogEntryRow{}
		}

		writeJSON(logger, w, http.StatusOK, struct {
			Page     int                    `json:"page"`
			PageSize int                    `json:"page_size"`
			Entries  []database.LogEntryRow `json:"entries"`
		}{
			Page:     page,
			PageSize: pageSize,
			Entries:  entries,
		})
	}
}
