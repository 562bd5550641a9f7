// Package settings manages per-tenant gateway configuration, layered on
// the same credential store backend as the APL. Secrets are encrypted at
// rest and only ever leave this package masked.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/malwarebo/paybridge/apl"
	"github.com/malwarebo/paybridge/models"
	"github.com/malwarebo/paybridge/security"
)

const settingsKeyPrefix = "cfg:"

type Service struct {
	backend    apl.Backend
	scope      string
	encryption *security.EncryptionManager
	log        *zap.SugaredLogger
}

func NewService(backend apl.Backend, scope string, encryption *security.EncryptionManager, log *zap.SugaredLogger) *Service {
	return &Service{backend: backend, scope: scope, encryption: encryption, log: log}
}

func (s *Service) key(tenantAPIURL string) string {
	if s.scope == "" {
		return settingsKeyPrefix + tenantAPIURL
	}
	return settingsKeyPrefix + s.scope + ":" + tenantAPIURL
}

func defaultSecrets() *models.TenantSecrets {
	return &models.TenantSecrets{
		Enabled:       false,
		Provider:      "razorpay",
		Mode:          models.ModeTest,
		PaymentAction: models.ActionAuthorizeCapture,
	}
}

// Get returns the decrypted settings record. A tenant with no stored
// record gets the default; the default is not persisted until the first
// update.
func (s *Service) Get(ctx context.Context, tenantAPIURL string) (*models.TenantSecrets, error) {
	data, err := s.backend.Get(ctx, s.key(tenantAPIURL))
	if err != nil && errors.Is(err, apl.ErrNotFound) {
		data, err = s.backend.Get(ctx, s.key(apl.ToggleTrailingSlash(tenantAPIURL)))
	}
	if err != nil {
		if errors.Is(err, apl.ErrNotFound) {
			return defaultSecrets(), nil
		}
		return nil, fmt.Errorf("load settings: %w", err)
	}

	var stored models.TenantSecrets
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.decryptKeys(&stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetMasked returns the API-facing projection of the settings.
func (s *Service) GetMasked(ctx context.Context, tenantAPIURL string) (*models.MaskedSettings, error) {
	secrets, err := s.Get(ctx, tenantAPIURL)
	if err != nil {
		return nil, err
	}
	return Mask(secrets), nil
}

// Update applies a partial settings write: provided fields overlay the
// stored record, absent fields are preserved, and secrets rotate only
// when explicitly supplied.
func (s *Service) Update(ctx context.Context, tenantAPIURL string, update *models.SettingsUpdate) (*models.MaskedSettings, error) {
	current, err := s.Get(ctx, tenantAPIURL)
	if err != nil {
		return nil, err
	}

	if update.Enabled != nil {
		current.Enabled = *update.Enabled
	}
	if update.Provider != nil {
		current.Provider = *update.Provider
	}
	if update.Mode != nil {
		if *update.Mode != models.ModeTest && *update.Mode != models.ModeLive {
			return nil, fmt.Errorf("invalid mode: %s", *update.Mode)
		}
		current.Mode = *update.Mode
	}
	if update.PaymentAction != nil {
		if *update.PaymentAction != models.ActionAuthorize && *update.PaymentAction != models.ActionAuthorizeCapture {
			return nil, fmt.Errorf("invalid payment action: %s", *update.PaymentAction)
		}
		current.PaymentAction = *update.PaymentAction
	}
	if update.AutoRefund != nil {
		current.AutoRefund = *update.AutoRefund
	}
	applyKeyPairUpdate(&current.Test, update.Test)
	applyKeyPairUpdate(&current.Live, update.Live)

	current.UpdatedAt = time.Now().UTC()

	stored := *current
	if err := s.encryptKeys(&stored); err != nil {
		return nil, err
	}
	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	if err := s.backend.Set(ctx, s.key(tenantAPIURL), data); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}

	s.log.Infow("tenant settings updated", "tenant", tenantAPIURL, "mode", current.Mode, "provider", current.Provider)
	return Mask(current), nil
}

// Delete removes the tenant's settings record, for use on uninstall.
func (s *Service) Delete(ctx context.Context, tenantAPIURL string) error {
	err := s.backend.Delete(ctx, s.key(tenantAPIURL))
	if err != nil && errors.Is(err, apl.ErrNotFound) {
		err = s.backend.Delete(ctx, s.key(apl.ToggleTrailingSlash(tenantAPIURL)))
	}
	if err != nil && !errors.Is(err, apl.ErrNotFound) {
		return fmt.Errorf("delete settings: %w", err)
	}
	return nil
}

func applyKeyPairUpdate(pair *models.KeyPair, update *models.KeyPairUpdate) {
	if update == nil {
		return
	}
	if update.KeyID != nil {
		pair.KeyID = *update.KeyID
	}
	if update.KeySecret != nil {
		pair.KeySecret = *update.KeySecret
	}
	if update.WebhookSecret != nil {
		pair.WebhookSecret = *update.WebhookSecret
	}
}

func (s *Service) encryptKeys(secrets *models.TenantSecrets) error {
	for _, pair := range []*models.KeyPair{&secrets.Test, &secrets.Live} {
		var err error
		if pair.KeySecret, err = s.encryption.Encrypt(pair.KeySecret); err != nil {
			return fmt.Errorf("encrypt key secret: %w", err)
		}
		if pair.WebhookSecret, err = s.encryption.Encrypt(pair.WebhookSecret); err != nil {
			return fmt.Errorf("encrypt webhook secret: %w", err)
		}
	}
	return nil
}

func (s *Service) decryptKeys(secrets *models.TenantSecrets) error {
	for _, pair := range []*models.KeyPair{&secrets.Test, &secrets.Live} {
		var err error
		if pair.KeySecret, err = s.encryption.Decrypt(pair.KeySecret); err != nil {
			return fmt.Errorf("decrypt key secret: %w", err)
		}
		if pair.WebhookSecret, err = s.encryption.Decrypt(pair.WebhookSecret); err != nil {
			return fmt.Errorf("decrypt webhook secret: %w", err)
		}
	}
	return nil
}

// Mask builds the projection safe to return from the API: at most the
// first four and last four characters of any secret survive.
func Mask(secrets *models.TenantSecrets) *models.MaskedSettings {
	return &models.MaskedSettings{
		Enabled:       secrets.Enabled,
		Provider:      secrets.Provider,
		Mode:          secrets.Mode,
		Test:          maskKeyPair(secrets.Test),
		Live:          maskKeyPair(secrets.Live),
		PaymentAction: secrets.PaymentAction,
		AutoRefund:    secrets.AutoRefund,
		UpdatedAt:     secrets.UpdatedAt,
	}
}

func maskKeyPair(pair models.KeyPair) models.MaskedKeyPair {
	return models.MaskedKeyPair{
		KeyID:         pair.KeyID,
		KeySecret:     maskSecret(pair.KeySecret),
		WebhookSecret: maskSecret(pair.WebhookSecret),
		Configured:    pair.IsConfigured(),
	}
}

func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) < 9 {
		return "••••"
	}
	return secret[:4] + strings.Repeat("•", 4) + secret[len(secret)-4:]
}
