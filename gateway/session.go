// Package gateway drives the lifecycle of a single payment attempt. There
// is no persisted session state: every request re-derives the current state
// from its payload and a live provider query, which keeps retried webhook
// deliveries idempotent.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/malwarebo/paybridge/models"
	"github.com/malwarebo/paybridge/providers"
	"github.com/malwarebo/paybridge/settings"
)

// TxLog is the append side of the transaction audit trail. Appends are
// best-effort and must never fail a payment flow.
type TxLog interface {
	Append(ctx context.Context, entry *models.TransactionLogEntry)
}

// Publisher emits transaction events to an external bus. Nil disables
// publishing.
type Publisher interface {
	PublishTransaction(entry *models.TransactionLogEntry)
}

// ProviderFactory builds the PSP adapter for a tenant's active credentials.
type ProviderFactory func(name string, keys models.KeyPair) (providers.Provider, error)

var errGatewayDisabled = errors.New("payment gateway is not enabled for this store")

type Service struct {
	settings  *settings.Service
	txlog     TxLog
	publisher Publisher
	factory   ProviderFactory
	log       *zap.SugaredLogger
}

func NewService(cfg *settings.Service, txlog TxLog, publisher Publisher, factory ProviderFactory, log *zap.SugaredLogger) *Service {
	if factory == nil {
		factory = func(name string, keys models.KeyPair) (providers.Provider, error) {
			return providers.New(name, keys, nil)
		}
	}
	return &Service{settings: cfg, txlog: txlog, publisher: publisher, factory: factory, log: log}
}

// providerFor resolves the tenant's settings into a ready PSP adapter.
func (s *Service) providerFor(ctx context.Context, tenantAPIURL string) (providers.Provider, *models.TenantSecrets, error) {
	secrets, err := s.settings.Get(ctx, tenantAPIURL)
	if err != nil {
		return nil, nil, fmt.Errorf("loading gateway settings: %w", err)
	}
	if !secrets.Enabled {
		return nil, nil, errGatewayDisabled
	}
	keys := secrets.ActiveKeys()
	if !keys.IsConfigured() {
		return nil, nil, fmt.Errorf("no %s credentials configured", secrets.Mode)
	}
	provider, err := s.factory(secrets.Provider, keys)
	if err != nil {
		return nil, nil, err
	}
	return provider, secrets, nil
}

// PublicConfig is the client-safe slice of a tenant's gateway settings,
// served on the gateway-initialize webhook so the storefront can open the
// provider's checkout.
type PublicConfig struct {
	Provider string             `json:"provider"`
	KeyID    string             `json:"key_id"`
	Mode     models.GatewayMode `json:"mode"`
}

func (s *Service) PublicConfig(ctx context.Context, tenantAPIURL string) (*PublicConfig, error) {
	provider, secrets, err := s.providerFor(ctx, tenantAPIURL)
	if err != nil {
		return nil, err
	}
	return &PublicConfig{
		Provider: provider.Name(),
		KeyID:    provider.KeyID(),
		Mode:     secrets.Mode,
	}, nil
}

// Initialize opens a provider-side order for a host transaction. The client
// completes authorization out of band, so success here is reported as
// action-required.
func (s *Service) Initialize(ctx context.Context, req *models.InitializeRequest) *models.InitializeResponse {
	amount := providers.NormalizeMajor(req.Amount)
	fail := func(msg string) *models.InitializeResponse {
		s.record(ctx, req.TenantAPIURL, &models.TransactionLogEntry{
			Type:     models.TxTypeInitialize,
			Status:   models.TxStatusFailed,
			Amount:   amount,
			Currency: req.Currency,
			OrderID:  req.OrderID,
			Error:    msg,
		})
		return &models.InitializeResponse{
			Result:   models.ResultChargeFailure,
			Amount:   amount,
			Currency: req.Currency,
			Message:  msg,
		}
	}

	if req.Amount <= 0 || req.Currency == "" {
		return fail("amount and currency are required")
	}

	provider, secrets, err := s.providerFor(ctx, req.TenantAPIURL)
	if err != nil {
		return fail(err.Error())
	}

	receipt := req.OrderID
	if receipt == "" {
		receipt = req.TransactionID
	}
	order, err := provider.CreateOrder(ctx, &providers.OrderRequest{
		Receipt:     receipt,
		AmountMinor: providers.MajorToMinor(amount),
		Currency:    req.Currency,
		AutoCapture: secrets.PaymentAction == models.ActionAuthorizeCapture,
	})
	if err != nil {
		s.log.Errorw("order creation failed",
			"tenant", req.TenantAPIURL,
			"provider", provider.Name(),
			"error", err)
		return fail("could not create payment order")
	}

	s.record(ctx, req.TenantAPIURL, &models.TransactionLogEntry{
		Type:     models.TxTypeInitialize,
		Status:   models.TxStatusPending,
		Amount:   amount,
		Currency: req.Currency,
		OrderID:  order.ID,
		Mode:     secrets.Mode,
	})

	return &models.InitializeResponse{
		Result:          models.ResultChargeActionRequired,
		ProviderOrderID: order.ID,
		KeyID:           provider.KeyID(),
		Amount:          amount,
		Currency:        req.Currency,
	}
}

// Process confirms a client-completed payment: signature check first, then a
// live provider query, then amount re-validation against what was initialized.
func (s *Service) Process(ctx context.Context, req *models.ProcessRequest) *models.SessionResponse {
	amount := providers.NormalizeMajor(req.Amount)
	fail := func(msg string) *models.SessionResponse {
		s.record(ctx, req.TenantAPIURL, &models.TransactionLogEntry{
			Type:      models.TxTypeCharge,
			Status:    models.TxStatusFailed,
			Amount:    amount,
			Currency:  req.Currency,
			OrderID:   req.ProviderOrderID,
			PaymentID: req.PaymentID,
			Error:     msg,
		})
		return &models.SessionResponse{
			Result:    models.ResultChargeFailure,
			Amount:    amount,
			Currency:  req.Currency,
			PaymentID: req.PaymentID,
			Message:   msg,
		}
	}

	if req.PaymentID == "" || req.ProviderOrderID == "" {
		return fail("payment reference is missing")
	}

	provider, secrets, err := s.providerFor(ctx, req.TenantAPIURL)
	if err != nil {
		return fail(err.Error())
	}

	if err := provider.VerifyPaymentSignature(req.ProviderOrderID, req.PaymentID, req.Signature); err != nil {
		return fail("payment signature verification failed")
	}

	payment, err := provider.FetchPayment(ctx, req.PaymentID)
	if err != nil {
		return fail("could not fetch payment from provider")
	}
	if payment.AmountMinor != providers.MajorToMinor(amount) {
		return fail("payment amount does not match the order")
	}

	var result models.SessionResult
	switch payment.Status {
	case providers.StatusCaptured:
		result = models.ResultChargeSuccess
	case providers.StatusAuthorized:
		result = models.ResultChargeSuccess
	case providers.StatusCreated:
		result = models.ResultChargeActionRequired
	default:
		return fail(fmt.Sprintf("payment is in state %s", payment.Status))
	}

	status := models.TxStatusSuccess
	if result == models.ResultChargeActionRequired {
		status = models.TxStatusPending
	}
	s.record(ctx, req.TenantAPIURL, &models.TransactionLogEntry{
		Type:      models.TxTypeCharge,
		Status:    status,
		Amount:    amount,
		Currency:  req.Currency,
		OrderID:   req.ProviderOrderID,
		PaymentID: req.PaymentID,
		Mode:      secrets.Mode,
	})

	return &models.SessionResponse{
		Result:      result,
		Amount:      amount,
		Currency:    req.Currency,
		PaymentID:   req.PaymentID,
		ExternalURL: provider.DashboardURL(req.PaymentID),
	}
}

// Charge captures a previously authorized payment. The provider is queried
// first so redelivered charge webhooks settle idempotently: anything not in
// the authorized state is reported as already captured.
func (s *Service) Charge(ctx context.Context, req *models.ChargeRequest) *models.SessionResponse {
	amount := providers.NormalizeMajor(req.Amount)
	fail := func(msg string) *models.SessionResponse {
		s.record(ctx, req.TenantAPIURL, &models.TransactionLogEntry{
			Type:      models.TxTypeCharge,
			Status:    models.TxStatusFailed,
			Amount:    amount,
			Currency:  req.Currency,
			PaymentID: req.PaymentID,
			Error:     msg,
		})
		return &models.SessionResponse{
			Result:    models.ResultChargeFailure,
			Amount:    amount,
			Currency:  req.Currency,
			PaymentID: req.PaymentID,
			Message:   msg,
		}
	}

	if req.PaymentID == "" {
		return fail("payment reference is missing")
	}

	provider, secrets, err := s.providerFor(ctx, req.TenantAPIURL)
	if err != nil {
		return fail(err.Error())
	}

	payment, err := provider.FetchPayment(ctx, req.PaymentID)
	if err != nil {
		return fail("could not fetch payment from provider")
	}

	if payment.Status == providers.StatusAuthorized {
		err := provider.Capture(ctx, req.PaymentID, providers.MajorToMinor(amount), req.Currency)
		if err != nil && !provider.AlreadySettled(err) {
			s.log.Errorw("capture failed",
				"tenant", req.TenantAPIURL,
				"payment_id", req.PaymentID,
				"error", err)
			return fail("capture failed")
		}
	}

	s.record(ctx, req.TenantAPIURL, &models.TransactionLogEntry{
		Type:      models.TxTypeCharge,
		Status:    models.TxStatusSuccess,
		Amount:    amount,
		Currency:  req.Currency,
		PaymentID: req.PaymentID,
		Mode:      secrets.Mode,
	})

	return &models.SessionResponse{
		Result:      models.ResultChargeSuccess,
		Amount:      amount,
		Currency:    req.Currency,
		PaymentID:   req.PaymentID,
		ExternalURL: provider.DashboardURL(req.PaymentID),
	}
}

// Refund issues a provider refund. Failures are structured responses with a
// non-empty message; the host platform expects a payload, never an error.
func (s *Service) Refund(ctx context.Context, req *models.RefundRequest) *models.SessionResponse {
	amount := providers.NormalizeMajor(req.Amount)
	fail := func(msg string) *models.SessionResponse {
		s.record(ctx, req.TenantAPIURL, &models.TransactionLogEntry{
			Type:      models.TxTypeRefund,
			Status:    models.TxStatusFailed,
			Amount:    amount,
			Currency:  req.Currency,
			PaymentID: req.PaymentID,
			Error:     msg,
		})
		return &models.SessionResponse{
			Result:    models.ResultRefundFailure,
			Amount:    amount,
			Currency:  req.Currency,
			PaymentID: req.PaymentID,
			Message:   msg,
		}
	}

	if req.PaymentID == "" {
		return fail("no charged payment to refund")
	}

	provider, secrets, err := s.providerFor(ctx, req.TenantAPIURL)
	if err != nil {
		return fail(err.Error())
	}

	refund, err := provider.Refund(ctx, req.PaymentID, providers.MajorToMinor(amount), req.Currency, req.Reason)
	if err != nil {
		if provider.AlreadySettled(err) {
			s.record(ctx, req.TenantAPIURL, &models.TransactionLogEntry{
				Type:      models.TxTypeRefund,
				Status:    models.TxStatusSuccess,
				Amount:    amount,
				Currency:  req.Currency,
				PaymentID: req.PaymentID,
				Mode:      secrets.Mode,
			})
			return &models.SessionResponse{
				Result:    models.ResultRefundSuccess,
				Amount:    amount,
				Currency:  req.Currency,
				PaymentID: req.PaymentID,
			}
		}
		s.log.Errorw("refund failed",
			"tenant", req.TenantAPIURL,
			"payment_id", req.PaymentID,
			"error", err)
		return fail("refund was rejected by the provider")
	}

	s.record(ctx, req.TenantAPIURL, &models.TransactionLogEntry{
		Type:      models.TxTypeRefund,
		Status:    models.TxStatusSuccess,
		Amount:    amount,
		Currency:  req.Currency,
		PaymentID: req.PaymentID,
		RefundID:  refund.ID,
		Mode:      secrets.Mode,
	})

	return &models.SessionResponse{
		Result:    models.ResultRefundSuccess,
		Amount:    amount,
		Currency:  req.Currency,
		PaymentID: req.PaymentID,
		RefundID:  refund.ID,
	}
}

// HandleProviderWebhook verifies a provider-direct webhook against the
// tenant's webhook secret and logs the delivery. The raw body is verified,
// never a re-serialization.
func (s *Service) HandleProviderWebhook(ctx context.Context, tenantAPIURL string, payload []byte, signature string) error {
	provider, secrets, err := s.providerFor(ctx, tenantAPIURL)
	if err != nil {
		return err
	}
	if err := provider.VerifyWebhookSignature(payload, signature); err != nil {
		s.record(ctx, tenantAPIURL, &models.TransactionLogEntry{
			Type:   models.TxTypeWebhook,
			Status: models.TxStatusFailed,
			Mode:   secrets.Mode,
			Error:  "webhook signature verification failed",
		})
		return err
	}
	s.record(ctx, tenantAPIURL, &models.TransactionLogEntry{
		Type:   models.TxTypeWebhook,
		Status: models.TxStatusSuccess,
		Mode:   secrets.Mode,
	})
	return nil
}

func (s *Service) record(ctx context.Context, tenantAPIURL string, entry *models.TransactionLogEntry) {
	entry.TenantAPIURL = tenantAPIURL
	s.txlog.Append(ctx, entry)
	if s.publisher != nil {
		s.publisher.PublishTransaction(entry)
	}
}
