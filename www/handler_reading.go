package www

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/icodeforyou/pvsoiling/days"
	"github.com/icodeforyou/pvsoiling/notify"
	"github.com/icodeforyou/pvsoiling/reading"
	"github.com/icodeforyou/pvsoiling/types"
)

const defaultReadingWindow = 30

type readingRequest struct {
	UserID        string                `json:"user_id"`
	Date          string                `json:"date"`
	KWhReal       *float64              `json:"kwh_real"`
	ReadingType   string                `json:"reading_type"`
	IsCleaningDay bool                  `json:"is_cleaning_day"`
	Irradiance    *types.IrradianceData `json:"irradiance"`
}

func NewCreateReadingHandler(logger *slog.Logger, store Store, pipeline ReadingPipeline, publisher notify.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req readingRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(logger, w, http.StatusBadRequest, err.Error())
			return
		}
		if req.KWhReal == nil {
			writeJSON(logger, w, http.StatusBadRequest, errorResponse{
				Error:  "invalid reading",
				Fields: reading.ValidationErrors{{Field: "kwh_real", Message: "is required"}},
			})
			return
		}

		plant, ok := loadPlant(logger, store, w, r)
		if !ok {
			return
		}

		userID := req.UserID
		if userID == "" {
			userID = plant.UserID
		}

		res, err := pipeline.Process(r.Context(), reading.Input{
			Plant:         plant,
			UserID:        userID,
			Date:          req.Date,
			KWhReal:       *req.KWhReal,
			Type:          req.ReadingType,
			IsCleaningDay: req.IsCleaningDay,
			Irradiance:    req.Irradiance,
		})
		if err != nil {
			writeReadingError(logger, w, err)
			return
		}

		if err := publisher.Publish(r.Context(), notify.Event{
			Kind:    notify.ReadingCreated,
			PlantID: plant.ID,
			Date:    res.Reading.Date,
			At:      res.Reading.CreatedAt,
			Payload: res,
		}); err != nil {
			logger.Warn("failed to publish reading event", slog.Any("error", err))
		}

		writeJSON(logger, w, http.StatusCreated, res)
	}
}

func writeReadingError(logger *slog.Logger, w http.ResponseWriter, err error) {
	var verrs reading.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeJSON(logger, w, http.StatusBadRequest, errorResponse{Error: "invalid reading", Fields: verrs})
	case errors.Is(err, reading.ErrReadingExists):
		writeError(logger, w, http.StatusConflict, "reading already exists")
	case errors.Is(err, types.ErrNotFound):
		writeError(logger, w, http.StatusNotFound, "reading not found")
	case errors.Is(err, reading.ErrIrradianceUnavailable):
		logger.Warn("weather provider failed", slog.Any("error", err))
		writeError(logger, w, http.StatusBadGateway, "weather data is unavailable, try again later")
	default:
		logger.Error("processing reading", slog.Any("error", err))
		writeError(logger, w, http.StatusInternalServerError, "failed to process reading")
	}
}

func NewListReadingsHandler(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		to := days.Today()
		if v := r.URL.Query().Get("to"); v != "" {
			d, err := days.Parse(v)
			if err != nil {
				writeError(logger, w, http.StatusBadRequest, err.Error())
				return
			}
			to = d
		}
		from := to.AddDays(-defaultReadingWindow)
		if v := r.URL.Query().Get("from"); v != "" {
			d, err := days.Parse(v)
			if err != nil {
				writeError(logger, w, http.StatusBadRequest, err.Error())
				return
			}
			from = d
		}
		if from.After(to) {
			writeError(logger, w, http.StatusBadRequest, "from must not be after to")
			return
		}

		plant, ok := loadPlant(logger, store, w, r)
		if !ok {
			return
		}

		readings, err := store.GetReadings(r.Context(), plant.ID, from, to)
		if err != nil {
			logger.Error("listing readings", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, "failed to list readings")
			return
		}
		if readings == nil {
			readings = []types.ProductionReading{}
		}
		writeJSON(logger, w, http.StatusOK, readings)
	}
}

func NewDeleteReadingHandler(logger *slog.Logger, pipeline ReadingPipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := pipeline.Delete(r.Context(), r.PathValue("id"), r.PathValue("date")); err != nil {
			writeReadingError(logger, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
