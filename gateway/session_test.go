package gateway

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/malwarebo/paybridge/apl"
	"github.com/malwarebo/paybridge/models"
	"github.com/malwarebo/paybridge/providers"
	"github.com/malwarebo/paybridge/security"
	"github.com/malwarebo/paybridge/settings"
)

const testTenant = "https://shop.example.com/graphql"

type memoryLog struct {
	entries []*models.TransactionLogEntry
}

func (l *memoryLog) Append(_ context.Context, entry *models.TransactionLogEntry) {
	l.entries = append(l.entries, entry)
}

func (l *memoryLog) last(t *testing.T) *models.TransactionLogEntry {
	t.Helper()
	if len(l.entries) == 0 {
		t.Fatal("no transaction log entries recorded")
	}
	return l.entries[len(l.entries)-1]
}

// fakeProvider scripts provider behavior per test. AlreadySettled matches
// the same phrase table real adapters use.
type fakeProvider struct {
	status       providers.PaymentStatus
	amountMinor  int64
	captureCalls int
	captureErr   error
	refundErr    error
	signatureErr error
	orderErr     error
}

func (p *fakeProvider) Name() string  { return "fake" }
func (p *fakeProvider) KeyID() string { return "key_test_123" }

func (p *fakeProvider) CreateOrder(_ context.Context, req *providers.OrderRequest) (*providers.Order, error) {
	if p.orderErr != nil {
		return nil, p.orderErr
	}
	return &providers.Order{ID: "order_1", AmountMinor: req.AmountMinor, Currency: req.Currency}, nil
}

func (p *fakeProvider) FetchPayment(_ context.Context, paymentID string) (*providers.Payment, error) {
	return &providers.Payment{
		ID:          paymentID,
		OrderID:     "order_1",
		Status:      p.status,
		AmountMinor: p.amountMinor,
		Currency:    "INR",
	}, nil
}

func (p *fakeProvider) Capture(_ context.Context, _ string, _ int64, _ string) error {
	p.captureCalls++
	if p.captureErr != nil {
		return p.captureErr
	}
	p.status = providers.StatusCaptured
	return nil
}

func (p *fakeProvider) Refund(_ context.Context, _ string, _ int64, _, _ string) (*providers.Refund, error) {
	if p.refundErr != nil {
		return nil, p.refundErr
	}
	return &providers.Refund{ID: "rfnd_1", Status: "processed"}, nil
}

func (p *fakeProvider) VerifyPaymentSignature(_, _, _ string) error { return p.signatureErr }
func (p *fakeProvider) VerifyWebhookSignature(_ []byte, _ string) error {
	return p.signatureErr
}
func (p *fakeProvider) DashboardURL(paymentID string) string {
	return "https://dashboard.fake/payments/" + paymentID
}
func (p *fakeProvider) AlreadySettled(err error) bool {
	return providers.SettledMatcher{"already been captured", "has been fully refunded"}.Matches(err)
}

func newTestGateway(t *testing.T, provider *fakeProvider, enabled bool) (*Service, *memoryLog) {
	t.Helper()
	encryption, err := security.NewEncryptionManager("gateway-test-key")
	if err != nil {
		t.Fatalf("NewEncryptionManager() error = %v", err)
	}
	log := zap.NewNop().Sugar()
	cfg := settings.NewService(apl.NewMemoryBackend(), "paybridge", encryption, log)

	keyID := "rzp_test_abc"
	keySecret := "secret"
	if _, err := cfg.Update(context.Background(), testTenant, &models.SettingsUpdate{
		Enabled: &enabled,
		Test: &models.KeyPairUpdate{
			KeyID:     &keyID,
			KeySecret: &keySecret,
		},
	}); err != nil {
		t.Fatalf("settings Update() error = %v", err)
	}

	txlog := &memoryLog{}
	factory := func(string, models.KeyPair) (providers.Provider, error) { return provider, nil }
	return NewService(cfg, txlog, nil, factory, log), txlog
}

func TestInitialize_Disabled(t *testing.T) {
	svc, txlog := newTestGateway(t, &fakeProvider{}, false)

	resp := svc.Initialize(context.Background(), &models.InitializeRequest{
		TenantAPIURL: testTenant,
		OrderID:      "order-9",
		Amount:       120.50,
		Currency:     "INR",
	})

	if resp.Result != models.ResultChargeFailure {
		t.Errorf("result = %q, want %q", resp.Result, models.ResultChargeFailure)
	}
	if resp.Message == "" {
		t.Error("failure response must carry a message")
	}
	if entry := txlog.last(t); entry.Status != models.TxStatusFailed {
		t.Errorf("log status = %q, want %q", entry.Status, models.TxStatusFailed)
	}
}

func TestInitialize_ActionRequired(t *testing.T) {
	svc, txlog := newTestGateway(t, &fakeProvider{}, true)

	resp := svc.Initialize(context.Background(), &models.InitializeRequest{
		TenantAPIURL: testTenant,
		OrderID:      "order-9",
		Amount:       120.50,
		Currency:     "INR",
	})

	if resp.Result != models.ResultChargeActionRequired {
		t.Fatalf("result = %q, want %q", resp.Result, models.ResultChargeActionRequired)
	}
	if resp.ProviderOrderID != "order_1" {
		t.Errorf("provider order id = %q, want order_1", resp.ProviderOrderID)
	}
	if resp.KeyID != "key_test_123" {
		t.Errorf("key id = %q, want the provider's public key id", resp.KeyID)
	}
	entry := txlog.last(t)
	if entry.Type != models.TxTypeInitialize || entry.Status != models.TxStatusPending {
		t.Errorf("log entry = %s/%s, want initialize/pending", entry.Type, entry.Status)
	}
	if entry.TenantAPIURL != testTenant {
		t.Errorf("log tenant = %q, want %q", entry.TenantAPIURL, testTenant)
	}
}

func TestProcess_SignatureMismatch(t *testing.T) {
	provider := &fakeProvider{signatureErr: security.ErrSignatureMismatch}
	svc, txlog := newTestGateway(t, provider, true)

	resp := svc.Process(context.Background(), &models.ProcessRequest{
		TenantAPIURL:    testTenant,
		ProviderOrderID: "order_1",
		PaymentID:       "pay_1",
		Signature:       "forged",
		Amount:          120.50,
		Currency:        "INR",
	})

	if resp.Result != models.ResultChargeFailure {
		t.Errorf("result = %q, want %q", resp.Result, models.ResultChargeFailure)
	}
	if entry := txlog.last(t); entry.Error == "" {
		t.Error("failed log entry should carry the error")
	}
}

func TestProcess_AmountMismatch(t *testing.T) {
	provider := &fakeProvider{status: providers.StatusCaptured, amountMinor: 9999}
	svc, _ := newTestGateway(t, provider, true)

	resp := svc.Process(context.Background(), &models.ProcessRequest{
		TenantAPIURL:    testTenant,
		ProviderOrderID: "order_1",
		PaymentID:       "pay_1",
		Amount:          120.50,
		Currency:        "INR",
	})

	if resp.Result != models.ResultChargeFailure {
		t.Errorf("result = %q, want failure on amount mismatch", resp.Result)
	}
}

func TestProcess_Captured(t *testing.T) {
	provider := &fakeProvider{status: providers.StatusCaptured, amountMinor: 12050}
	svc, _ := newTestGateway(t, provider, true)

	resp := svc.Process(context.Background(), &models.ProcessRequest{
		TenantAPIURL:    testTenant,
		ProviderOrderID: "order_1",
		PaymentID:       "pay_1",
		Amount:          120.50,
		Currency:        "INR",
	})

	if resp.Result != models.ResultChargeSuccess {
		t.Fatalf("result = %q, want %q", resp.Result, models.ResultChargeSuccess)
	}
	if resp.ExternalURL == "" {
		t.Error("success response should link the provider dashboard")
	}
}

func TestCharge_IdempotentAcrossRedelivery(t *testing.T) {
	provider := &fakeProvider{status: providers.StatusAuthorized, amountMinor: 12050}
	svc, _ := newTestGateway(t, provider, true)

	req := &models.ChargeRequest{
		TenantAPIURL: testTenant,
		PaymentID:    "pay_1",
		Amount:       120.50,
		Currency:     "INR",
	}

	first := svc.Charge(context.Background(), req)
	second := svc.Charge(context.Background(), req)

	if first.Result != models.ResultChargeSuccess || second.Result != models.ResultChargeSuccess {
		t.Errorf("results = %q, %q, want both %q", first.Result, second.Result, models.ResultChargeSuccess)
	}
	if provider.captureCalls != 1 {
		t.Errorf("capture calls = %d, want exactly 1 across redeliveries", provider.captureCalls)
	}
}

func TestCharge_AlreadyCapturedErrorIsSuccess(t *testing.T) {
	provider := &fakeProvider{
		status:      providers.StatusAuthorized,
		amountMinor: 12050,
		captureErr:  errors.New("BAD_REQUEST_ERROR: This payment has already been captured"),
	}
	svc, _ := newTestGateway(t, provider, true)

	resp := svc.Charge(context.Background(), &models.ChargeRequest{
		TenantAPIURL: testTenant,
		PaymentID:    "pay_1",
		Amount:       120.50,
		Currency:     "INR",
	})

	if resp.Result != models.ResultChargeSuccess {
		t.Errorf("result = %q, want idempotent success", resp.Result)
	}
}

func TestRefund_NoPriorCharge(t *testing.T) {
	svc, _ := newTestGateway(t, &fakeProvider{}, true)

	resp := svc.Refund(context.Background(), &models.RefundRequest{
		TenantAPIURL: testTenant,
		Amount:       120.50,
		Currency:     "INR",
	})

	if resp.Result != models.ResultRefundFailure {
		t.Fatalf("result = %q, want %q", resp.Result, models.ResultRefundFailure)
	}
	if resp.Message == "" {
		t.Error("refund failure must carry a non-empty message")
	}
}

func TestRefund_ProviderRejection(t *testing.T) {
	provider := &fakeProvider{refundErr: errors.New("insufficient balance")}
	svc, txlog := newTestGateway(t, provider, true)

	resp := svc.Refund(context.Background(), &models.RefundRequest{
		TenantAPIURL: testTenant,
		PaymentID:    "pay_1",
		Amount:       120.50,
		Currency:     "INR",
	})

	if resp.Result != models.ResultRefundFailure {
		t.Errorf("result = %q, want %q", resp.Result, models.ResultRefundFailure)
	}
	if resp.Message == "" {
		t.Error("refund failure must carry a non-empty message")
	}
	if entry := txlog.last(t); entry.Type != models.TxTypeRefund || entry.Status != models.TxStatusFailed {
		t.Errorf("log entry = %s/%s, want refund/failed", entry.Type, entry.Status)
	}
}

func TestRefund_AlreadyRefundedIsSuccess(t *testing.T) {
	provider := &fakeProvider{refundErr: errors.New("The payment has been fully refunded already")}
	svc, _ := newTestGateway(t, provider, true)

	resp := svc.Refund(context.Background(), &models.RefundRequest{
		TenantAPIURL: testTenant,
		PaymentID:    "pay_1",
		Amount:       120.50,
		Currency:     "INR",
	})

	if resp.Result != models.ResultRefundSuccess {
		t.Errorf("result = %q, want idempotent success", resp.Result)
	}
}

func TestHandleProviderWebhook(t *testing.T) {
	provider := &fakeProvider{}
	svc, txlog := newTestGateway(t, provider, true)

	if err := svc.HandleProviderWebhook(context.Background(), testTenant, []byte(`{"event":"payment.captured"}`), "sig"); err != nil {
		t.Fatalf("HandleProviderWebhook() error = %v", err)
	}
	if entry := txlog.last(t); entry.Type != models.TxTypeWebhook || entry.Status != models.TxStatusSuccess {
		t.Errorf("log entry = %s/%s, want webhook/success", entry.Type, entry.Status)
	}

	provider.signatureErr = security.ErrSignatureMismatch
	if err := svc.HandleProviderWebhook(context.Background(), testTenant, []byte(`{}`), "forged"); err == nil {
		t.Fatal("HandleProviderWebhook() error = nil, want signature error")
	}
	if entry := txlog.last(t); entry.Status != models.TxStatusFailed {
		t.Errorf("log status = %q, want failed on signature mismatch", entry.Status)
	}
}
