package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/malwarebo/paybridge/gateway"
	"github.com/malwarebo/paybridge/security"
)

type WebhookHandler struct {
	gateway *gateway.Service
	log     *zap.SugaredLogger
}

func CreateWebhookHandler(gw *gateway.Service, log *zap.SugaredLogger) *WebhookHandler {
	return &WebhookHandler{gateway: gw, log: log}
}

// HandleRazorpayWebhook verifies a provider-direct delivery against the
// tenant's webhook secret. The tenant is addressed by query parameter since
// the provider knows nothing about platform headers.
func (h *WebhookHandler) HandleRazorpayWebhook(w http.ResponseWriter, r *http.Request) {
	apiURL := r.URL.Query().Get("tenant")
	if apiURL == "" {
		http.Error(w, "Missing tenant parameter", http.StatusBadRequest)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Failed to read webhook payload", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("x-razorpay-signature")
	if signature == "" {
		http.Error(w, "Missing Razorpay signature", http.StatusUnauthorized)
		return
	}

	if err := h.gateway.HandleProviderWebhook(r.Context(), apiURL, payload, signature); err != nil {
		if errors.Is(err, security.ErrSignatureMismatch) {
			http.Error(w, "Invalid webhook signature", http.StatusUnauthorized)
			return
		}
		h.log.Errorw("provider webhook rejected", "tenant", apiURL, "error", err)
		http.Error(w, "Webhook rejected", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"received":  true,
		"timestamp": time.Now().UTC(),
	})
}

func (h *WebhookHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/webhooks/razorpay", h.HandleRazorpayWebhook).Methods("POST")
}
