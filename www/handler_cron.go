package www

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/icodeforyou/pvsoiling/task"
)

// NewCronSyncHandler lets an external scheduler trigger the inverter sync.
func NewCronSyncHandler(logger *slog.Logger, syncer task.SyncRunner, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			writeError(logger, w, http.StatusUnauthorized, "unauthorized")
			return
		}

		// The run outlives the request, the scheduler may hang up before it is done.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), task.SyncTimeout)
		defer cancel()

		summary, err := syncer.Run(ctx)
		if errors.Is(err, task.ErrSyncTooSoon) {
			writeError(logger, w, http.StatusTooManyRequests, err.Error())
			return
		}
		if err != nil {
			logger.Error("sync run failed", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, "sync failed")
			return
		}
		writeJSON(logger, w, http.StatusOK, summary)
	}
}
