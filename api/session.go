package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/malwarebo/paybridge/apl"
	"github.com/malwarebo/paybridge/gateway"
	"github.com/malwarebo/paybridge/models"
	"github.com/malwarebo/paybridge/security"
)

const headerWebhookSignature = "Saleor-Signature"

// sessionEvent is the common shape of the platform's synchronous payment
// webhooks. Unknown fields are ignored; required fields are validated per
// operation.
type sessionEvent struct {
	Action struct {
		Amount     float64 `json:"amount"`
		Currency   string  `json:"currency"`
		ActionType string  `json:"actionType"`
	} `json:"action"`
	Transaction struct {
		ID           string `json:"id"`
		PspReference string `json:"pspReference"`
	} `json:"transaction"`
	SourceObject struct {
		ID string `json:"id"`
	} `json:"sourceObject"`
	Data struct {
		ProviderOrderID string `json:"provider_order_id"`
		PaymentID       string `json:"payment_id"`
		Signature       string `json:"signature"`
		Reason          string `json:"reason"`
	} `json:"data"`
}

type SessionHandler struct {
	apl     apl.APL
	gateway *gateway.Service
	log     *zap.SugaredLogger
}

func CreateSessionHandler(store apl.APL, gw *gateway.Service, log *zap.SugaredLogger) *SessionHandler {
	return &SessionHandler{apl: store, gateway: gw, log: log}
}

// authenticate verifies the delivery came from a registered tenant: the
// tenant must have an auth record and the detached JWS over the raw body
// must validate against its key set.
func (h *SessionHandler) authenticate(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	apiURL := tenantAPIURL(r)
	if apiURL == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "missing tenant API URL header"})
		return "", nil, false
	}

	record, err := h.apl.Get(r.Context(), apiURL)
	if errors.Is(err, apl.ErrNotFound) {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "tenant is not registered"})
		return "", nil, false
	}
	if err != nil {
		h.log.Errorw("auth record lookup failed", "tenant", apiURL, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "credential store unavailable"})
		return "", nil, false
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "failed to read request body"})
		return "", nil, false
	}

	signature := r.Header.Get(headerWebhookSignature)
	if signature == "" {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "missing webhook signature"})
		return "", nil, false
	}
	if err := security.VerifyPlatformWebhook(r.Context(), payload, signature, record); err != nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "invalid webhook signature"})
		return "", nil, false
	}

	return apiURL, payload, true
}

func decodeEvent(w http.ResponseWriter, payload []byte) (*sessionEvent, bool) {
	var ev sessionEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid event payload"})
		return nil, false
	}
	return &ev, true
}

func (h *SessionHandler) HandleGatewayInitialize(w http.ResponseWriter, r *http.Request) {
	apiURL, _, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	cfg, err := h.gateway.PublicConfig(r.Context(), apiURL)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": map[string]interface{}{"errors": []string{err.Error()}},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": cfg})
}

func (h *SessionHandler) HandleInitializeSession(w http.ResponseWriter, r *http.Request) {
	apiURL, payload, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	ev, ok := decodeEvent(w, payload)
	if !ok {
		return
	}
	resp := h.gateway.Initialize(r.Context(), &models.InitializeRequest{
		TenantAPIURL:  apiURL,
		TransactionID: ev.Transaction.ID,
		OrderID:       ev.SourceObject.ID,
		Amount:        ev.Action.Amount,
		Currency:      ev.Action.Currency,
	})
	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) HandleProcessSession(w http.ResponseWriter, r *http.Request) {
	apiURL, payload, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	ev, ok := decodeEvent(w, payload)
	if !ok {
		return
	}
	resp := h.gateway.Process(r.Context(), &models.ProcessRequest{
		TenantAPIURL:    apiURL,
		TransactionID:   ev.Transaction.ID,
		ProviderOrderID: ev.Data.ProviderOrderID,
		PaymentID:       ev.Data.PaymentID,
		Signature:       ev.Data.Signature,
		Amount:          ev.Action.Amount,
		Currency:        ev.Action.Currency,
	})
	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) HandleChargeRequested(w http.ResponseWriter, r *http.Request) {
	apiURL, payload, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	ev, ok := decodeEvent(w, payload)
	if !ok {
		return
	}
	resp := h.gateway.Charge(r.Context(), &models.ChargeRequest{
		TenantAPIURL:  apiURL,
		TransactionID: ev.Transaction.ID,
		PaymentID:     ev.Transaction.PspReference,
		Amount:        ev.Action.Amount,
		Currency:      ev.Action.Currency,
	})
	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) HandleRefundRequested(w http.ResponseWriter, r *http.Request) {
	apiURL, payload, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	ev, ok := decodeEvent(w, payload)
	if !ok {
		return
	}
	resp := h.gateway.Refund(r.Context(), &models.RefundRequest{
		TenantAPIURL:  apiURL,
		TransactionID: ev.Transaction.ID,
		PaymentID:     ev.Transaction.PspReference,
		Amount:        ev.Action.Amount,
		Currency:      ev.Action.Currency,
		Reason:        ev.Data.Reason,
	})
	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/webhooks/payment-gateway-initialize-session", h.HandleGatewayInitialize).Methods("POST")
	router.HandleFunc("/api/webhooks/transaction-initialize-session", h.HandleInitializeSession).Methods("POST")
	router.HandleFunc("/api/webhooks/transaction-process-session", h.HandleProcessSession).Methods("POST")
	router.HandleFunc("/api/webhooks/transaction-charge-requested", h.HandleChargeRequested).Methods("POST")
	router.HandleFunc("/api/webhooks/transaction-refund-requested", h.HandleRefundRequested).Methods("POST")
}
