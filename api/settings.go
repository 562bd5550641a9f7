package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/malwarebo/paybridge/apl"
	"github.com/malwarebo/paybridge/models"
	"github.com/malwarebo/paybridge/security"
	"github.com/malwarebo/paybridge/settings"
)

type SettingsHandler struct {
	apl      apl.APL
	settings *settings.Service
	log      *zap.SugaredLogger
}

func CreateSettingsHandler(store apl.APL, svc *settings.Service, log *zap.SugaredLogger) *SettingsHandler {
	return &SettingsHandler{apl: store, settings: svc, log: log}
}

// authorize validates the dashboard's bearer token against the tenant's key
// set. Missing registration or a bad token is an auth failure; everything
// past this point reports problems as success:false payloads.
func (h *SettingsHandler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	apiURL := tenantAPIURL(r)
	if apiURL == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "missing tenant API URL header"})
		return "", false
	}

	record, err := h.apl.Get(r.Context(), apiURL)
	if errors.Is(err, apl.ErrNotFound) {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "tenant is not registered"})
		return "", false
	}
	if err != nil {
		h.log.Errorw("auth record lookup failed", "tenant", apiURL, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "credential store unavailable"})
		return "", false
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "missing bearer token"})
		return "", false
	}
	if _, err := security.VerifyPlatformToken(r.Context(), token, record); err != nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "invalid bearer token"})
		return "", false
	}

	return apiURL, true
}

func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	apiURL, ok := h.authorize(w, r)
	if !ok {
		return
	}
	masked, err := h.settings.GetMasked(r.Context(), apiURL)
	if err != nil {
		h.log.Errorw("settings read failed", "tenant", apiURL, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "could not load settings"})
		return
	}
	writeJSON(w, http.StatusOK, masked)
}

func (h *SettingsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	apiURL, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var update models.SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	masked, err := h.settings.Update(r.Context(), apiURL, &update)
	if err != nil {
		// Validation problems are responses, not HTTP errors; the
		// dashboard renders the message inline.
		writeJSON(w, http.StatusOK, SuccessResponse{Success: false, Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"settings": masked,
	})
}

func (h *SettingsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/settings", h.HandleGet).Methods("GET")
	router.HandleFunc("/api/settings", h.HandleUpdate).Methods("POST")
}
