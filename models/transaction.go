package models

import "time"

type TransactionType string

const (
	TxTypeInitialize TransactionType = "initialize"
	TxTypeCharge     TransactionType = "charge"
	TxTypeRefund     TransactionType = "refund"
	TxTypeWebhook    TransactionType = "webhook"
)

type TransactionStatus string

const (
	TxStatusSuccess TransactionStatus = "success"
	TxStatusFailed  TransactionStatus = "failed"
	TxStatusPending TransactionStatus = "pending"
)

// TransactionLogEntry is one append-only audit record for a payment state
// transition. Entries are immutable once written and purged only by the
// retention sweep.
type TransactionLogEntry struct {
	ID           string            `json:"id" gorm:"primaryKey"`
	TenantAPIURL string            `json:"tenant_api_url" gorm:"index:idx_tx_tenant_time,priority:1"`
	Timestamp    time.Time         `json:"timestamp" gorm:"index:idx_tx_tenant_time,priority:2,sort:desc"`
	Type         TransactionType   `json:"type"`
	Status       TransactionStatus `json:"status"`
	Amount       float64           `json:"amount"`
	Currency     string            `json:"currency"`
	OrderID      string            `json:"order_id,omitempty"`
	PaymentID    string            `json:"payment_id,omitempty"`
	RefundID     string            `json:"refund_id,omitempty"`
	Mode         GatewayMode       `json:"mode,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// TransactionLogPage is one page of a reverse-chronological log query.
type TransactionLogPage struct {
	Entries    []*TransactionLogEntry `json:"logs"`
	Count      int                    `json:"count"`
	NextCursor string                 `json:"nextCursor,omitempty"`
}

type TransactionLogQuery struct {
	Limit  int
	Cursor string
	Type   TransactionType
}
