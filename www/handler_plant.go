package www

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/icodeforyou/pvsoiling/reading"
	"github.com/icodeforyou/pvsoiling/types"
)

func NewCreatePlantHandler(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p types.Plant
		if err := decodeJSON(r, &p); err != nil {
			writeError(logger, w, http.StatusBadRequest, err.Error())
			return
		}

		p.ID = uuid.NewString()
		applyPlantDefaults(&p)
		if errs := validatePlant(p); len(errs) > 0 {
			writeJSON(logger, w, http.StatusBadRequest, errorResponse{Error: "invalid plant", Fields: errs})
			return
		}

		if err := store.SavePlant(r.Context(), p); err != nil {
			logger.Error("saving plant", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, "failed to save plant")
			return
		}

		logger.Info("plant created", slog.String("plant", p.ID))
		writeJSON(logger, w, http.StatusCreated, p)
	}
}

func NewGetPlantHandler(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadPlant(logger, store, w, r)
		if !ok {
			return
		}
		writeJSON(logger, w, http.StatusOK, p)
	}
}

// loadPlant writes the error response itself when the plant can't be loaded.
func loadPlant(logger *slog.Logger, store Store, w http.ResponseWriter, r *http.Request) (types.Plant, bool) {
	id := r.PathValue("id")
	p, err := store.GetPlant(r.Context(), id)
	if errors.Is(err, types.ErrNotFound) {
		writeError(logger, w, http.StatusNotFound, "plant not found")
		return types.Plant{}, false
	}
	if err != nil {
		logger.Error("loading plant", slog.String("plant", id), slog.Any("error", err))
		writeError(logger, w, http.StatusInternalServerError, "failed to load plant")
		return types.Plant{}, false
	}
	return p, true
}

func applyPlantDefaults(p *types.Plant) {
	if p.Noct == 0 {
		p.Noct = 45
	}
	if p.TempCoefficient == 0 {
		p.TempCoefficient = -0.4
	}
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if p.Currency == "" {
		p.Currency = "EUR"
	}
}

func validatePlant(p types.Plant) reading.ValidationErrors {
	var errs reading.ValidationErrors
	check := func(ok bool, field, msg string) {
		if !ok {
			errs = append(errs, reading.FieldError{Field: field, Message: msg})
		}
	}

	check(strings.TrimSpace(p.Name) != "", "name", "is required")
	check(p.Latitude >= -90 && p.Latitude <= 90, "latitude", "must be between -90 and 90")
	check(p.Longitude >= -180 && p.Longitude <= 180, "longitude", "must be between -180 and 180")
	check(p.ModuleCount > 0, "module_count", "must be greater than 0")
	check(p.ModulePowerW > 0, "module_power_w", "must be greater than 0")
	check(p.ModuleAreaM2 >= 0, "module_area_m2", "must not be negative")
	check(p.Tilt >= 0 && p.Tilt <= 90, "tilt", "must be between 0 and 90")
	check(p.Azimuth >= 0 && p.Azimuth < 360, "azimuth", "must be between 0 and 360")
	check(p.ModuleEfficiency >= 0 && p.ModuleEfficiency <= 1, "module_efficiency", "must be a fraction between 0 and 1")
	check(p.EnergyPrice >= 0 && !math.IsInf(p.EnergyPrice, 0), "energy_price", "must not be negative")
	check(p.CleaningCost >= 0 && !math.IsInf(p.CleaningCost, 0), "cleaning_cost", "must not be negative")
	return errs
}
