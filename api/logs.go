package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/malwarebo/paybridge/models"
)

// LogQuerier is the read side of the transaction log.
type LogQuerier interface {
	Query(ctx context.Context, tenantAPIURL string, q models.TransactionLogQuery) (*models.TransactionLogPage, error)
}

type LogsHandler struct {
	settings *SettingsHandler
	txlog    LogQuerier
	log      *zap.SugaredLogger
}

func CreateLogsHandler(authorizer *SettingsHandler, txlog LogQuerier, log *zap.SugaredLogger) *LogsHandler {
	return &LogsHandler{settings: authorizer, txlog: txlog, log: log}
}

func (h *LogsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	apiURL, ok := h.settings.authorize(w, r)
	if !ok {
		return
	}

	query := models.TransactionLogQuery{
		Limit:  20,
		Cursor: r.URL.Query().Get("cursor"),
		Type:   models.TransactionType(r.URL.Query().Get("type")),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil {
			query.Limit = parsed
		}
	}
	query.Limit = clampLimit(query.Limit)

	page, err := h.txlog.Query(r.Context(), apiURL, query)
	if err != nil {
		h.log.Errorw("transaction log query failed", "tenant", apiURL, "error", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "could not query transaction log"})
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *LogsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/logs", h.HandleList).Methods("GET")
}
