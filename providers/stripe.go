package providers

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/malwarebo/paybridge/models"
	"github.com/malwarebo/paybridge/security"
)

const ProviderStripe = "stripe"

var stripeSettledDefaults = SettledMatcher{
	"has already been captured",
	"has already been refunded",
	"is already fully refunded",
}

// StripeProvider maps the session flow onto PaymentIntents. KeyID carries
// the publishable key so the client can complete confirmation.
type StripeProvider struct {
	keyID         string
	keySecret     string
	webhookSecret string
	settled       SettledMatcher
	sc            *client.API
}

func NewStripeProvider(keys models.KeyPair, settledPhrases []string) *StripeProvider {
	settled := stripeSettledDefaults
	if len(settledPhrases) > 0 {
		settled = SettledMatcher(settledPhrases)
	}
	return &StripeProvider{
		keyID:         keys.KeyID,
		keySecret:     keys.KeySecret,
		webhookSecret: keys.WebhookSecret,
		settled:       settled,
		sc:            client.New(keys.KeySecret, nil),
	}
}

func (p *StripeProvider) Name() string { return ProviderStripe }

func (p *StripeProvider) KeyID() string { return p.keyID }

func (p *StripeProvider) CreateOrder(ctx context.Context, req *OrderRequest) (*Order, error) {
	captureMethod := stripe.PaymentIntentCaptureMethodManual
	if req.AutoCapture {
		captureMethod = stripe.PaymentIntentCaptureMethodAutomatic
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountMinor),
		Currency:      stripe.String(req.Currency),
		CaptureMethod: stripe.String(string(captureMethod)),
		Description:   stripe.String(truncateReceipt(req.Receipt, 1000)),
	}
	params.Context = ctx

	pi, err := p.sc.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe payment intent creation failed: %w", err)
	}

	return &Order{
		ID:          pi.ID,
		AmountMinor: pi.Amount,
		Currency:    string(pi.Currency),
	}, nil
}

func (p *StripeProvider) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := p.sc.PaymentIntents.Get(paymentID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe payment intent fetch failed: %w", err)
	}

	return &Payment{
		ID:          pi.ID,
		OrderID:     pi.ID,
		Status:      p.mapIntentStatus(pi.Status),
		AmountMinor: pi.Amount,
		Currency:    string(pi.Currency),
	}, nil
}

func (p *StripeProvider) mapIntentStatus(status stripe.PaymentIntentStatus) PaymentStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusCaptured
	case stripe.PaymentIntentStatusRequiresCapture:
		return StatusAuthorized
	case stripe.PaymentIntentStatusCanceled:
		return StatusFailed
	default:
		return StatusCreated
	}
}

func (p *StripeProvider) Capture(ctx context.Context, paymentID string, amountMinor int64, currency string) error {
	params := &stripe.PaymentIntentCaptureParams{
		AmountToCapture: stripe.Int64(amountMinor),
	}
	params.Context = ctx

	if _, err := p.sc.PaymentIntents.Capture(paymentID, params); err != nil {
		return fmt.Errorf("stripe capture failed: %w", err)
	}
	return nil
}

func (p *StripeProvider) Refund(ctx context.Context, paymentID string, amountMinor int64, currency, reason string) (*Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentID),
		Amount:        stripe.Int64(amountMinor),
	}
	params.Context = ctx

	ref, err := p.sc.Refunds.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe refund failed: %w", err)
	}

	return &Refund{
		ID:     ref.ID,
		Status: string(ref.Status),
	}, nil
}

func (p *StripeProvider) VerifyPaymentSignature(orderID, paymentID, signature string) error {
	return security.VerifyPaymentSignature(orderID, paymentID, signature, p.keySecret)
}

func (p *StripeProvider) VerifyWebhookSignature(payload []byte, signature string) error {
	return security.VerifyWebhookSignature(payload, signature, p.webhookSecret)
}

func (p *StripeProvider) DashboardURL(paymentID string) string {
	if paymentID == "" {
		return ""
	}
	return "https://dashboard.stripe.com/payments/" + paymentID
}

func (p *StripeProvider) AlreadySettled(err error) bool {
	return p.settled.Matches(err)
}
