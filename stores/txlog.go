package stores

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/malwarebo/paybridge/models"
)

const (
	defaultLogPageSize = 20
	maxLogPageSize     = 100
)

// TransactionLogStore is the append-only payment audit trail. Writes are
// best-effort so a logging failure can never fail the payment flow that
// produced the entry.
type TransactionLogStore struct {
	BaseStore
	log *zap.SugaredLogger
}

func CreateTransactionLogStore(db *gorm.DB, log *zap.SugaredLogger) *TransactionLogStore {
	return &TransactionLogStore{BaseStore: BaseStore{db: db}, log: log}
}

// Append records one transaction log entry. Errors are logged and swallowed;
// callers must not depend on the entry being persisted.
func (s *TransactionLogStore) Append(ctx context.Context, entry *models.TransactionLogEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := s.GetDB(ctx).Create(entry).Error; err != nil {
		s.log.Errorw("transaction log append failed",
			"tenant", entry.TenantAPIURL,
			"type", entry.Type,
			"error", err)
	}
}

// Query returns one reverse-chronological page of a tenant's log. The cursor
// is opaque to callers; an empty cursor starts at the newest entry.
func (s *TransactionLogStore) Query(ctx context.Context, tenantAPIURL string, q models.TransactionLogQuery) (*models.TransactionLogPage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLogPageSize
	}
	if limit > maxLogPageSize {
		limit = maxLogPageSize
	}

	query := s.GetDB(ctx).
		Model(&models.TransactionLogEntry{}).
		Where("tenant_api_url = ?", tenantAPIURL)

	if q.Type != "" {
		query = query.Where("type = ?", q.Type)
	}
	if q.Cursor != "" {
		after, id, err := decodeCursor(q.Cursor)
		if err != nil {
			return nil, err
		}
		query = query.Where("timestamp < ? OR (timestamp = ? AND id < ?)", after, after, id)
	}

	var entries []*models.TransactionLogEntry
	if err := query.
		Order("timestamp DESC, id DESC").
		Limit(limit + 1).
		Find(&entries).Error; err != nil {
		return nil, err
	}

	page := &models.TransactionLogPage{}
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		page.NextCursor = encodeCursor(last.Timestamp, last.ID)
	}
	page.Entries = entries
	page.Count = len(entries)
	return page, nil
}

// CleanupOld purges entries past the retention window and returns the number
// of rows removed.
func (s *TransactionLogStore) CleanupOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := s.GetDB(ctx).Where("timestamp < ?", cutoff).Delete(&models.TransactionLogEntry{})
	return result.RowsAffected, result.Error
}

func encodeCursor(ts time.Time, id string) string {
	raw := fmt.Sprintf("%d|%s", ts.UnixNano(), id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("invalid cursor format")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	return time.Unix(0, nanos).UTC(), parts[1], nil
}
