package apl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/malwarebo/paybridge/models"
)

// authKeyPrefix separates auth records from other record families (tenant
// settings) sharing the same backend.
const authKeyPrefix = "auth:"

// Normalized wraps a Backend with tenant identity normalization and
// app-scope key prefixing. It is the only place where either concern is
// implemented; backends see fully prepared keys.
type Normalized struct {
	backend Backend
	scope   string
}

// NewNormalized builds the standard APL over a backend. scope may be empty
// when the backend is not shared between apps.
func NewNormalized(backend Backend, scope string) *Normalized {
	return &Normalized{backend: backend, scope: scope}
}

func (n *Normalized) prefix() string {
	if n.scope == "" {
		return authKeyPrefix
	}
	return authKeyPrefix + n.scope + ":"
}

func (n *Normalized) key(tenantAPIURL string) string {
	return n.prefix() + tenantAPIURL
}

func decodeRecord(data []byte) (*models.AuthRecord, error) {
	var record models.AuthRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode auth record: %w", err)
	}
	return &record, nil
}

// Get retries with the trailing slash toggled before reporting absence.
// Backend failures other than ErrNotFound propagate untouched.
func (n *Normalized) Get(ctx context.Context, tenantAPIURL string) (*models.AuthRecord, error) {
	data, err := n.backend.Get(ctx, n.key(tenantAPIURL))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		data, err = n.backend.Get(ctx, n.key(ToggleTrailingSlash(tenantAPIURL)))
		if err != nil {
			return nil, err
		}
	}
	return decodeRecord(data)
}

func (n *Normalized) Set(ctx context.Context, record *models.AuthRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode auth record: %w", err)
	}
	return n.backend.Set(ctx, n.key(record.TenantAPIURL), data)
}

func (n *Normalized) Delete(ctx context.Context, tenantAPIURL string) error {
	err := n.backend.Delete(ctx, n.key(tenantAPIURL))
	if err != nil && errors.Is(err, ErrNotFound) {
		return n.backend.Delete(ctx, n.key(ToggleTrailingSlash(tenantAPIURL)))
	}
	return err
}

// GetAll returns only records belonging to this app's scope.
func (n *Normalized) GetAll(ctx context.Context) ([]*models.AuthRecord, error) {
	entries, err := n.backend.List(ctx, n.prefix())
	if err != nil {
		return nil, err
	}
	records := make([]*models.AuthRecord, 0, len(entries))
	for _, data := range entries {
		record, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (n *Normalized) IsReady(ctx context.Context) error {
	return n.backend.Ready(ctx)
}

func (n *Normalized) IsConfigured() bool {
	return n.backend.Configured()
}
