package providers

import (
	"context"
	"fmt"

	xendit "github.com/xendit/xendit-go/v6"
	paymentrequest "github.com/xendit/xendit-go/v6/payment_request"
	refund "github.com/xendit/xendit-go/v6/refund"

	"github.com/malwarebo/paybridge/models"
	"github.com/malwarebo/paybridge/security"
)

const ProviderXendit = "xendit"

var xenditSettledDefaults = SettledMatcher{
	"already succeeded",
	"already refunded",
}

// XenditProvider rides on payment requests, which always auto-capture.
// Tenants selecting it must use the authorize_capture policy; Capture
// returns ErrNotSupported.
type XenditProvider struct {
	keyID         string
	webhookSecret string
	keySecret     string
	settled       SettledMatcher
	client        *xendit.APIClient
}

func NewXenditProvider(keys models.KeyPair, settledPhrases []string) *XenditProvider {
	settled := xenditSettledDefaults
	if len(settledPhrases) > 0 {
		settled = SettledMatcher(settledPhrases)
	}
	return &XenditProvider{
		keyID:         keys.KeyID,
		keySecret:     keys.KeySecret,
		webhookSecret: keys.WebhookSecret,
		settled:       settled,
		client:        xendit.NewClient(keys.KeySecret),
	}
}

func (p *XenditProvider) Name() string { return ProviderXendit }

func (p *XenditProvider) KeyID() string { return p.keyID }

func (p *XenditProvider) getCurrency(currency string) (paymentrequest.PaymentRequestCurrency, error) {
	switch currency {
	case "IDR":
		return paymentrequest.PAYMENTREQUESTCURRENCY_IDR, nil
	case "PHP":
		return paymentrequest.PAYMENTREQUESTCURRENCY_PHP, nil
	default:
		return paymentrequest.PAYMENTREQUESTCURRENCY_IDR, fmt.Errorf("unsupported currency: %s", currency)
	}
}

func (p *XenditProvider) CreateOrder(ctx context.Context, req *OrderRequest) (*Order, error) {
	if !req.AutoCapture {
		return nil, fmt.Errorf("manual capture: %w", ErrNotSupported)
	}
	currency, err := p.getCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	params := paymentrequest.NewPaymentRequestParameters(currency)
	params.SetAmount(MinorToMajor(req.AmountMinor))
	params.SetReferenceId(truncateReceipt(req.Receipt, 255))

	pr, _, err := p.client.PaymentRequestApi.CreatePaymentRequest(ctx).
		PaymentRequestParameters(*params).Execute()
	if err != nil {
		return nil, fmt.Errorf("xendit payment request creation failed: %w", err)
	}

	return &Order{
		ID:          pr.GetId(),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
	}, nil
}

func (p *XenditProvider) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	pr, _, err := p.client.PaymentRequestApi.GetPaymentRequestByID(ctx, paymentID).Execute()
	if err != nil {
		return nil, fmt.Errorf("xendit payment request fetch failed: %w", err)
	}

	return &Payment{
		ID:          pr.GetId(),
		OrderID:     pr.GetReferenceId(),
		Status:      p.mapStatus(string(pr.GetStatus())),
		AmountMinor: MajorToMinor(pr.GetAmount()),
		Currency:    string(pr.GetCurrency()),
	}, nil
}

func (p *XenditProvider) mapStatus(status string) PaymentStatus {
	switch status {
	case "SUCCEEDED":
		return StatusCaptured
	case "FAILED", "EXPIRED":
		return StatusFailed
	case "REQUIRES_ACTION", "PENDING":
		// The customer still has to complete the flow. Payment requests
		// auto-capture, so this state never maps to authorized.
		return StatusCreated
	default:
		return StatusCreated
	}
}

func (p *XenditProvider) Capture(ctx context.Context, paymentID string, amountMinor int64, currency string) error {
	return fmt.Errorf("xendit capture: %w", ErrNotSupported)
}

func (p *XenditProvider) Refund(ctx context.Context, paymentID string, amountMinor int64, currency, reason string) (*Refund, error) {
	refundData := refund.NewCreateRefund()
	refundData.SetInvoiceId(paymentID)
	refundData.SetAmount(MinorToMajor(amountMinor))
	if reason != "" {
		refundData.SetReason(reason)
	}

	ref, _, err := p.client.RefundApi.CreateRefund(ctx).CreateRefund(*refundData).Execute()
	if err != nil {
		return nil, fmt.Errorf("xendit refund failed: %w", err)
	}

	return &Refund{
		ID:     ref.GetId(),
		Status: "processed",
	}, nil
}

func (p *XenditProvider) VerifyPaymentSignature(orderID, paymentID, signature string) error {
	return security.VerifyPaymentSignature(orderID, paymentID, signature, p.keySecret)
}

func (p *XenditProvider) VerifyWebhookSignature(payload []byte, signature string) error {
	return security.VerifyWebhookSignature(payload, signature, p.webhookSecret)
}

func (p *XenditProvider) DashboardURL(paymentID string) string {
	if paymentID == "" {
		return ""
	}
	return "https://dashboard.xendit.co/payment-requests/" + paymentID
}

func (p *XenditProvider) AlreadySettled(err error) bool {
	return p.settled.Matches(err)
}
