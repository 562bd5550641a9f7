package providers

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/malwarebo/paybridge/models"
	"github.com/malwarebo/paybridge/security"
)

const (
	ProviderRazorpay = "razorpay"

	// Razorpay rejects receipts longer than 40 characters.
	razorpayMaxReceiptLen = 40
)

var razorpaySettledDefaults = SettledMatcher{
	"already been captured",
	"has been fully refunded",
}

type RazorpayProvider struct {
	keyID         string
	keySecret     string
	webhookSecret string
	settled       SettledMatcher
	client        *razorpay.Client
}

func NewRazorpayProvider(keys models.KeyPair, settledPhrases []string) *RazorpayProvider {
	settled := razorpaySettledDefaults
	if len(settledPhrases) > 0 {
		settled = SettledMatcher(settledPhrases)
	}
	return &RazorpayProvider{
		keyID:         keys.KeyID,
		keySecret:     keys.KeySecret,
		webhookSecret: keys.WebhookSecret,
		settled:       settled,
		client:        razorpay.NewClient(keys.KeyID, keys.KeySecret),
	}
}

func (p *RazorpayProvider) Name() string { return ProviderRazorpay }

func (p *RazorpayProvider) KeyID() string { return p.keyID }

func (p *RazorpayProvider) CreateOrder(ctx context.Context, req *OrderRequest) (*Order, error) {
	orderData := map[string]interface{}{
		"amount":          req.AmountMinor,
		"currency":        req.Currency,
		"receipt":         truncateReceipt(req.Receipt, razorpayMaxReceiptLen),
		"payment_capture": req.AutoCapture,
	}

	order, err := p.client.Order.Create(orderData, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay order creation failed: %w", err)
	}

	return &Order{
		ID:          getStringValue(order, "id"),
		AmountMinor: getInt64Value(order, "amount"),
		Currency:    getStringValue(order, "currency"),
	}, nil
}

func (p *RazorpayProvider) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	payment, err := p.client.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay payment fetch failed: %w", err)
	}

	return &Payment{
		ID:          getStringValue(payment, "id"),
		OrderID:     getStringValue(payment, "order_id"),
		Status:      p.mapPaymentStatus(getStringValue(payment, "status")),
		AmountMinor: getInt64Value(payment, "amount"),
		Currency:    getStringValue(payment, "currency"),
	}, nil
}

func (p *RazorpayProvider) mapPaymentStatus(status string) PaymentStatus {
	switch status {
	case "captured":
		return StatusCaptured
	case "authorized":
		return StatusAuthorized
	case "refunded":
		return StatusRefunded
	case "failed":
		return StatusFailed
	default:
		return StatusCreated
	}
}

func (p *RazorpayProvider) Capture(ctx context.Context, paymentID string, amountMinor int64, currency string) error {
	captureData := map[string]interface{}{
		"currency": currency,
	}
	_, err := p.client.Payment.Capture(paymentID, int(amountMinor), captureData, nil)
	if err != nil {
		return fmt.Errorf("razorpay capture failed: %w", err)
	}
	return nil
}

func (p *RazorpayProvider) Refund(ctx context.Context, paymentID string, amountMinor int64, currency, reason string) (*Refund, error) {
	refundData := map[string]interface{}{}
	if reason != "" {
		refundData["notes"] = map[string]interface{}{"reason": reason}
	}

	ref, err := p.client.Payment.Refund(paymentID, int(amountMinor), refundData, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay refund failed: %w", err)
	}

	status := getStringValue(ref, "status")
	if status == "" {
		status = "processed"
	}
	return &Refund{
		ID:     getStringValue(ref, "id"),
		Status: status,
	}, nil
}

func (p *RazorpayProvider) VerifyPaymentSignature(orderID, paymentID, signature string) error {
	return security.VerifyPaymentSignature(orderID, paymentID, signature, p.keySecret)
}

func (p *RazorpayProvider) VerifyWebhookSignature(payload []byte, signature string) error {
	return security.VerifyWebhookSignature(payload, signature, p.webhookSecret)
}

func (p *RazorpayProvider) DashboardURL(paymentID string) string {
	if paymentID == "" {
		return ""
	}
	return "https://dashboard.razorpay.com/app/payments/" + paymentID
}

func (p *RazorpayProvider) AlreadySettled(err error) bool {
	return p.settled.Matches(err)
}

func getStringValue(data map[string]interface{}, key string) string {
	if value, ok := data[key].(string); ok {
		return value
	}
	return ""
}

func getInt64Value(data map[string]interface{}, key string) int64 {
	switch value := data[key].(type) {
	case float64:
		return int64(value)
	case int64:
		return value
	case int:
		return int64(value)
	default:
		return 0
	}
}
