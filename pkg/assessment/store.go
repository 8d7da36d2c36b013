package assessment

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/csfprofile/profile-registry/pkg/audit"
)

// Repository is the persistence surface the pipelines depend on. Lookups
// return nil, nil when nothing matches.
type Repository[R any] interface {
	// InsertMany appends rows in one transaction and fills in their ids.
	InsertMany(ctx context.Context, rows []R) error
	FindByID(ctx context.Context, id int64) (*R, error)
	// FindLatest returns the row with the newest registered_at, ties going
	// to the highest id.
	FindLatest(ctx context.Context, subcategoryID int64) (*R, error)
	// FindAllBySubcategory returns every row newest first.
	FindAllBySubcategory(ctx context.Context, subcategoryID int64) ([]R, error)
	// UpdateWithChanges appends changes and overwrites the columns in
	// values in one transaction, provided the row still has the given
	// revision. Otherwise it returns ErrConflict and writes nothing.
	UpdateWithChanges(ctx context.Context, id, revision int64, values map[string]any, changes []audit.ChangeLogEntry) error
}

// insertBatchSize caps the rows per INSERT statement so that large batches
// stay below the drivers' bind-parameter limits.
const insertBatchSize = 200

// GormStore implements Repository for one state table.
type GormStore[R any] struct {
	db        *gorm.DB
	changes   *audit.ChangeLogStore
	batchSize int
}

// NewGormStore creates a new GormStore.
func NewGormStore[R any](db *gorm.DB, changes *audit.ChangeLogStore) *GormStore[R] {
	return &GormStore[R]{db: db, changes: changes, batchSize: insertBatchSize}
}

// NewCurrentStateStore creates the store for current_state.
func NewCurrentStateStore(db *gorm.DB, changes *audit.ChangeLogStore) *GormStore[CurrentStateRecord] {
	return NewGormStore[CurrentStateRecord](db, changes)
}

// NewTargetStateStore creates the store for target_state.
func NewTargetStateStore(db *gorm.DB, changes *audit.ChangeLogStore) *GormStore[TargetStateRecord] {
	return NewGormStore[TargetStateRecord](db, changes)
}

// AutoMigrate creates or updates the table for R.
func (s *GormStore[R]) AutoMigrate() error {
	return s.db.AutoMigrate(new(R))
}

func (s *GormStore[R]) InsertMany(ctx context.Context, rows []R) error {
	if len(rows) == 0 {
		return nil
	}
	// CreateInBatches wraps multiple statements in one transaction.
	if err := s.db.WithContext(ctx).CreateInBatches(&rows, s.batchSize).Error; err != nil {
		return fmt.Errorf("insert %d records: %w", len(rows), err)
	}
	return nil
}

func (s *GormStore[R]) FindByID(ctx context.Context, id int64) (*R, error) {
	var row R
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find record %d: %w", id, err)
	}
	return &row, nil
}

func (s *GormStore[R]) FindLatest(ctx context.Context, subcategoryID int64) (*R, error) {
	var rows []R
	err := s.db.WithContext(ctx).
		Where("subcategory_id = ?", subcategoryID).
		Order("registered_at DESC").
		Order("id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find latest record for subcategory %d: %w", subcategoryID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *GormStore[R]) FindAllBySubcategory(ctx context.Context, subcategoryID int64) ([]R, error) {
	var rows []R
	err := s.db.WithContext(ctx).
		Where("subcategory_id = ?", subcategoryID).
		Order("registered_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list records for subcategory %d: %w", subcategoryID, err)
	}
	return rows, nil
}

func (s *GormStore[R]) UpdateWithChanges(ctx context.Context, id, revision int64, values map[string]any, changes []audit.ChangeLogEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.changes.WithTx(tx).AppendAll(ctx, changes); err != nil {
			return err
		}

		res := tx.Model(new(R)).Where("id = ? AND revision = ?", id, revision).Updates(values)
		if res.Error != nil {
			return fmt.Errorf("update record %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		return nil
	})
}
