package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/malwarebo/paybridge/registration"
)

// Headers the host platform sets on registration and webhook requests.
const (
	headerAPIURL = "Saleor-Api-Url"
	headerDomain = "Saleor-Domain"
)

type RegisterHandler struct {
	registration *registration.Service
	manifest     *registration.Manifest
	log          *zap.SugaredLogger
}

func CreateRegisterHandler(reg *registration.Service, manifest *registration.Manifest, log *zap.SugaredLogger) *RegisterHandler {
	return &RegisterHandler{registration: reg, manifest: manifest, log: log}
}

// tenantAPIURL resolves the caller's API URL from request headers, falling
// back to deriving it from the bare domain header.
func tenantAPIURL(r *http.Request) string {
	if u := r.Header.Get(headerAPIURL); u != "" {
		return u
	}
	if domain := r.Header.Get(headerDomain); domain != "" {
		return "https://" + strings.TrimSuffix(domain, "/") + "/graphql/"
	}
	return ""
}

func (h *RegisterHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AuthToken string `json:"auth_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}
	if body.AuthToken == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "auth_token is required"})
		return
	}

	apiURL := tenantAPIURL(r)
	if apiURL == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "missing tenant API URL header"})
		return
	}

	_, err := h.registration.Register(r.Context(), apiURL, body.AuthToken)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
	case errors.Is(err, registration.ErrURLNotAllowed):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Message: err.Error()})
	case errors.Is(err, registration.ErrInvalidInstallToken):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Message: err.Error()})
	case errors.Is(err, registration.ErrIncompatibleVersion):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	default:
		h.log.Errorw("registration failed", "tenant", apiURL, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "registration failed"})
	}
}

func (h *RegisterHandler) HandleManifest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manifest)
}

func (h *RegisterHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/register", h.HandleRegister).Methods("POST")
	router.HandleFunc("/api/manifest", h.HandleManifest).Methods("GET")
}
