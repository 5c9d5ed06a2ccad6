package www

import (
	"log/slog"
	"net/http"

	"github.com/icodeforyou/pvsoiling/days"
)

func NewIrradianceHandler(logger *slog.Logger, irradiance IrradianceSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lat, err := floatParam(r.URL, "lat")
		if err == nil && (lat < -90 || lat > 90) {
			err = errOutOfRange("lat")
		}
		if err != nil {
			writeError(logger, w, http.StatusBadRequest, err.Error())
			return
		}

		lon, err := floatParam(r.URL, "lon")
		if err == nil && (lon < -180 || lon > 180) {
			err = errOutOfRange("lon")
		}
		if err != nil {
			writeError(logger, w, http.StatusBadRequest, err.Error())
			return
		}

		var tilt float64
		if r.URL.Query().Has("tilt") {
			if tilt, err = floatParam(r.URL, "tilt"); err != nil {
				writeError(logger, w, http.StatusBadRequest, err.Error())
				return
			}
		}

		date := days.Today()
		if v := r.URL.Query().Get("date"); v != "" {
			if date, err = days.Parse(v); err != nil {
				writeError(logger, w, http.StatusBadRequest, err.Error())
				return
			}
		}

		data, err := irradiance.GetOrFetch(r.Context(), lat, lon, date, tilt)
		if err != nil {
			logger.Warn("irradiance lookup failed", slog.Any("error", err))
			writeError(logger, w, http.StatusBadGateway, "weather data is unavailable, try again later")
			return
		}
		writeJSON(logger, w, http.StatusOK, data)
	}
}

type errOutOfRange string

func (e errOutOfRange) Error() string {
	return string(e) + " is out of range"
}
