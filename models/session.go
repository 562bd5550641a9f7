package models

// SessionResult codes mirror the host platform's expected webhook responses.
type SessionResult string

const (
	ResultChargeSuccess        SessionResult = "CHARGE_SUCCESS"
	ResultChargeFailure        SessionResult = "CHARGE_FAILURE"
	ResultChargeActionRequired SessionResult = "CHARGE_ACTION_REQUIRED"
	ResultRefundSuccess        SessionResult = "REFUND_SUCCESS"
	ResultRefundFailure        SessionResult = "REFUND_FAILURE"
)

// InitializeRequest starts a payment attempt for a host-side order.
type InitializeRequest struct {
	TenantAPIURL  string  `json:"-"`
	TransactionID string  `json:"transaction_id"`
	OrderID       string  `json:"order_id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
}

// InitializeResponse carries what the client needs to complete
// authorization out of band.
type InitializeResponse struct {
	Result          SessionResult `json:"result"`
	ProviderOrderID string        `json:"provider_order_id,omitempty"`
	KeyID           string        `json:"key_id,omitempty"`
	Amount          float64       `json:"amount"`
	Currency        string        `json:"currency"`
	Message         string        `json:"message,omitempty"`
}

// ProcessRequest is the synchronous client-side confirmation of a payment.
type ProcessRequest struct {
	TenantAPIURL    string  `json:"-"`
	TransactionID   string  `json:"transaction_id"`
	ProviderOrderID string  `json:"provider_order_id"`
	PaymentID       string  `json:"payment_id"`
	Signature       string  `json:"signature"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
}

// ChargeRequest asks for capture of a previously authorized payment.
type ChargeRequest struct {
	TenantAPIURL  string  `json:"-"`
	TransactionID string  `json:"transaction_id"`
	PaymentID     string  `json:"payment_id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
}

type RefundRequest struct {
	TenantAPIURL  string  `json:"-"`
	TransactionID string  `json:"transaction_id"`
	PaymentID     string  `json:"payment_id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Reason        string  `json:"reason,omitempty"`
}

// SessionResponse is the structured outcome returned to the host platform
// for process, charge and refund webhooks. Failures are responses, never
// HTTP errors.
type SessionResponse struct {
	Result      SessionResult `json:"result"`
	Amount      float64       `json:"amount"`
	Currency    string        `json:"currency,omitempty"`
	PaymentID   string        `json:"payment_id,omitempty"`
	RefundID    string        `json:"refund_id,omitempty"`
	ExternalURL string        `json:"external_url,omitempty"`
	Message     string        `json:"message,omitempty"`
}
