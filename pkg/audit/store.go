package audit

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
)

// ErrInvalidPageToken is returned by List for malformed page tokens.
var ErrInvalidPageToken = errors.New("invalid page token")

// ChangeLogStore provides append-only operations for change-log entries.
type ChangeLogStore struct {
	db *gorm.DB
}

// NewChangeLogStore creates a new ChangeLogStore.
func NewChangeLogStore(db *gorm.DB) *ChangeLogStore {
	return &ChangeLogStore{db: db}
}

// AutoMigrate creates or updates the change_log table.
func (s *ChangeLogStore) AutoMigrate() error {
	return s.db.AutoMigrate(&ChangeLogEntry{})
}

// WithTx returns a store that writes through tx, so entries commit or roll
// back together with the caller's other statements.
func (s *ChangeLogStore) WithTx(tx *gorm.DB) *ChangeLogStore {
	return &ChangeLogStore{db: tx}
}

// AppendAll inserts entries in one statement. Entries are never updated or
// deleted afterwards.
func (s *ChangeLogStore) AppendAll(ctx context.Context, entries []ChangeLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&entries).Error; err != nil {
		return fmt.Errorf("append change-log entries: %w", err)
	}
	return nil
}

// GetByID returns a single entry. Returns nil, nil if not found.
func (s *ChangeLogStore) GetByID(ctx context.Context, id int64) (*ChangeLogEntry, error) {
	var entry ChangeLogEntry
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get change-log entry: %w", err)
	}
	return &entry, nil
}

func (s *ChangeLogStore) filtered(ctx context.Context, f ChangeLogFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&ChangeLogEntry{})
	if f.RecordKind != "" {
		q = q.Where("record_kind = ?", f.RecordKind)
	}
	if f.RecordID > 0 {
		q = q.Where("record_id = ?", f.RecordID)
	}
	if f.SubcategoryID > 0 {
		q = q.Where("subcategory_id = ?", f.SubcategoryID)
	}
	if f.Actor != "" {
		q = q.Where("actor = ?", f.Actor)
	}
	if f.ChangeSetID != "" {
		q = q.Where("change_set_id = ?", f.ChangeSetID)
	}
	return q
}

// List returns filtered entries newest first.
// pageToken is the id of the last entry of the previous page; entries with
// a smaller id are returned. Ids are used instead of timestamps because all
// entries of one change set share changed_at.
func (s *ChangeLogStore) List(ctx context.Context, f ChangeLogFilter, pageSize int, pageToken string) ([]ChangeLogEntry, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}

	var totalSize int64
	if err := s.filtered(ctx, f).Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count change-log entries: %w", err)
	}

	query := s.filtered(ctx, f).Order("id DESC").Limit(pageSize + 1)
	if pageToken != "" {
		before, err := strconv.ParseInt(pageToken, 10, 64)
		if err != nil || before <= 0 {
			return nil, "", 0, fmt.Errorf("%w %q", ErrInvalidPageToken, pageToken)
		}
		query = query.Where("id < ?", before)
	}

	var entries []ChangeLogEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list change-log entries: %w", err)
	}

	var nextToken string
	if len(entries) > pageSize {
		nextToken = strconv.FormatInt(entries[pageSize-1].ID, 10)
		entries = entries[:pageSize]
	}

	return entries, nextToken, int(totalSize), nil
}
