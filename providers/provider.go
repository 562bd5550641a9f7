// Package providers adapts external payment service providers to the
// narrow surface the session state machine needs: create an order, read a
// payment's live status, capture, refund, and verify signatures.
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/malwarebo/paybridge/models"
)

// ErrNotSupported marks an operation a provider cannot perform.
var ErrNotSupported = errors.New("operation not supported by provider")

type PaymentStatus string

const (
	StatusCreated    PaymentStatus = "created"
	StatusAuthorized PaymentStatus = "authorized"
	StatusCaptured   PaymentStatus = "captured"
	StatusRefunded   PaymentStatus = "refunded"
	StatusFailed     PaymentStatus = "failed"
)

// OrderRequest creates a provider-side order/intent. Amounts are integer
// minor units; conversion happens once in money.go, never in adapters.
type OrderRequest struct {
	Receipt     string
	AmountMinor int64
	Currency    string
	AutoCapture bool
}

type Order struct {
	ID          string
	AmountMinor int64
	Currency    string
}

type Payment struct {
	ID          string
	OrderID     string
	Status      PaymentStatus
	AmountMinor int64
	Currency    string
}

type Refund struct {
	ID     string
	Status string
}

type Provider interface {
	Name() string
	// KeyID is the public identifier the client needs to open the
	// provider's checkout (key id for Razorpay, publishable key for
	// Stripe).
	KeyID() string
	CreateOrder(ctx context.Context, req *OrderRequest) (*Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)
	Capture(ctx context.Context, paymentID string, amountMinor int64, currency string) error
	Refund(ctx context.Context, paymentID string, amountMinor int64, currency, reason string) (*Refund, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) error
	VerifyWebhookSignature(payload []byte, signature string) error
	DashboardURL(paymentID string) string
	// AlreadySettled reports whether a capture/refund error indicates the
	// operation was completed by an earlier delivery, which callers must
	// treat as success.
	AlreadySettled(err error) bool
}

// SettledMatcher recognizes provider error messages meaning "this money
// movement already happened". The phrase table is configuration, not
// logic; each adapter ships a default set that config may override.
type SettledMatcher []string

func (m SettledMatcher) Matches(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range m {
		if phrase != "" && strings.Contains(msg, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// truncateReceipt bounds the provider-side receipt to the provider's
// maximum reference length.
func truncateReceipt(receipt string, max int) string {
	if len(receipt) <= max {
		return receipt
	}
	return receipt[:max]
}

// New builds the adapter selected by the tenant's settings, using the key
// pair for the active mode.
func New(name string, keys models.KeyPair, settledPhrases []string) (Provider, error) {
	switch name {
	case "", ProviderRazorpay:
		return NewRazorpayProvider(keys, settledPhrases), nil
	case ProviderStripe:
		return NewStripeProvider(keys, settledPhrases), nil
	case ProviderXendit:
		return NewXenditProvider(keys, settledPhrases), nil
	default:
		return nil, fmt.Errorf("unknown payment provider: %s", name)
	}
}
