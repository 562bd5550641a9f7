// Package apl implements the auth persistence layer: durable storage of
// per-tenant installation credentials behind a single pluggable contract.
package apl

import (
	"context"
	"errors"
	"strings"

	"github.com/malwarebo/paybridge/models"
)

// ErrNotFound is returned when no record exists for the requested key.
var ErrNotFound = errors.New("record not found")

// APL is the consumer-facing contract. Tenant identity normalization is
// handled inside; callers pass the tenant API URL exactly as received.
type APL interface {
	Get(ctx context.Context, tenantAPIURL string) (*models.AuthRecord, error)
	Set(ctx context.Context, record *models.AuthRecord) error
	Delete(ctx context.Context, tenantAPIURL string) error
	GetAll(ctx context.Context) ([]*models.AuthRecord, error)
	IsReady(ctx context.Context) error
	IsConfigured() bool
}

// Backend is the raw storage contract implemented per store: an opaque
// key to JSON blob mapping. Keys are prepared by the layers above;
// backends must not interpret them. The settings manager shares the same
// backend under its own key prefix.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, keyPrefix string) (map[string][]byte, error)
	Ready(ctx context.Context) error
	Configured() bool
}

// ToggleTrailingSlash flips the trailing slash on a URL, the one identity
// variant upstream callers are known to disagree on.
func ToggleTrailingSlash(url string) string {
	if strings.HasSuffix(url, "/") {
		return strings.TrimSuffix(url, "/")
	}
	return url + "/"
}
