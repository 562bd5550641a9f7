package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// ReadyChecker reports whether a dependency can serve requests.
type ReadyChecker interface {
	IsReady(ctx context.Context) error
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

var startTime = time.Now()

type HealthHandler struct {
	checks map[string]ReadyChecker
}

func CreateHealthHandler(checks map[string]ReadyChecker) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(startTime).String(),
		Checks:    make(map[string]string, len(h.checks)),
	}

	status := http.StatusOK
	for name, check := range h.checks {
		if err := check.IsReady(r.Context()); err != nil {
			response.Status = "degraded"
			response.Checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		response.Checks[name] = "ok"
	}

	writeJSON(w, status, response)
}

func (h *HealthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", h.HandleHealth).Methods("GET")
}
