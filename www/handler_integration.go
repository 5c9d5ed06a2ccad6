package www

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/icodeforyou/pvsoiling/inverter"
	"github.com/icodeforyou/pvsoiling/types"
)

type integrationRequest struct {
	Provider    string          `json:"provider"`
	Credentials json.RawMessage `json:"credentials"`
	SyncEnabled *bool           `json:"sync_enabled"`
}

// credentials writes the error response itself when the request is invalid.
func (req integrationRequest) credentials(logger *slog.Logger, w http.ResponseWriter) (inverter.Credentials, bool) {
	provider, err := inverter.ParseProvider(req.Provider)
	if err != nil {
		writeJSON(logger, w, http.StatusBadRequest, errorResponse{
			Error:  "invalid integration",
			Fields: inverter.FieldErrors{{Field: "provider", Message: err.Error()}},
		})
		return nil, false
	}

	creds, err := inverter.DecodeCredentials(provider, req.Credentials)
	if err != nil {
		var fe inverter.FieldErrors
		if errors.As(err, &fe) {
			writeJSON(logger, w, http.StatusBadRequest, errorResponse{Error: "invalid integration", Fields: fe})
		} else {
			writeError(logger, w, http.StatusBadRequest, err.Error())
		}
		return nil, false
	}
	return creds, true
}

func NewTestIntegrationHandler(logger *slog.Logger, inverters ConnectionTester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req integrationRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(logger, w, http.StatusBadRequest, err.Error())
			return
		}
		creds, ok := req.credentials(logger, w)
		if !ok {
			return
		}

		writeJSON(logger, w, http.StatusOK, inverters.TestConnection(r.Context(), creds))
	}
}

func NewSaveIntegrationHandler(logger *slog.Logger, store Store, vault CredentialSealer, inverters ConnectionTester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req integrationRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(logger, w, http.StatusBadRequest, err.Error())
			return
		}
		creds, ok := req.credentials(logger, w)
		if !ok {
			return
		}

		plant, ok := loadPlant(logger, store, w, r)
		if !ok {
			return
		}

		// Only credentials that work are stored.
		if res := inverters.TestConnection(r.Context(), creds); !res.Success {
			writeJSON(logger, w, http.StatusUnprocessableEntity, res)
			return
		}

		sealed, err := vault.Seal(creds)
		if err != nil {
			logger.Error("encrypting credentials", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, "failed to save integration")
			return
		}

		in := types.InverterIntegration{
			ID:             uuid.NewString(),
			PlantID:        plant.ID,
			Provider:       creds.Provider().String(),
			Credentials:    sealed,
			ExternalSiteID: creds.ExternalSiteID(),
			IsActive:       true,
			SyncEnabled:    req.SyncEnabled == nil || *req.SyncEnabled,
			LastSyncStatus: types.SyncIdle,
		}
		if err := store.SaveIntegration(r.Context(), in); err != nil {
			logger.Error("saving integration", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, "failed to save integration")
			return
		}

		logger.Info("integration saved", slog.String("plant", plant.ID), slog.String("provider", in.Provider))
		writeJSON(logger, w, http.StatusCreated, in)
	}
}

func NewGetIntegrationHandler(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := store.GetActiveIntegration(r.Context(), r.PathValue("id"))
		if errors.Is(err, types.ErrNotFound) {
			writeError(logger, w, http.StatusNotFound, "no active integration")
			return
		}
		if err != nil {
			logger.Error("loading integration", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, "failed to load integration")
			return
		}
		writeJSON(logger, w, http.StatusOK, in)
	}
}

func NewDeleteIntegrationHandler(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := store.DeactivateIntegration(r.Context(), r.PathValue("id"))
		if errors.Is(err, types.ErrNotFound) {
			writeError(logger, w, http.StatusNotFound, "no active integration")
			return
		}
		if err != nil {
			logger.Error("deactivating integration", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, "failed to delete integration")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
