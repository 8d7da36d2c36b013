package framework

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// hierarchySelect joins a subcategory to its category and the category's
// function. LEFT JOINs keep subcategories whose links are dangling.
const hierarchySelect = `s.id AS subcategory_id, s.code AS subcategory_code, s.description AS description,
s.function_id AS subcategory_function_id, c.id AS category_id, c.code AS category_code,
c.function_id AS category_function_id, f.id AS function_id, f.code AS function_code`

// Store provides read access to the framework reference tables.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the reference tables.
func (s *Store) AutoMigrate() error {
	for _, m := range Models() {
		if err := s.db.AutoMigrate(m); err != nil {
			return fmt.Errorf("auto-migrate %T: %w", m, err)
		}
	}
	return nil
}

func (s *Store) hierarchyQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("subcategories AS s").
		Select(hierarchySelect).
		Joins("LEFT JOIN categories AS c ON c.id = s.category_id").
		Joins("LEFT JOIN functions AS f ON f.id = c.function_id")
}

// FindHierarchy loads the joined hierarchy for the given subcategory ids in
// a single query. Ids without a subcategory row are simply absent.
func (s *Store) FindHierarchy(ctx context.Context, ids []int64) ([]HierarchyRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []HierarchyRow
	if err := s.hierarchyQuery(ctx).Where("s.id IN ?", ids).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("find subcategory hierarchy: %w", err)
	}
	return rows, nil
}

// FindInconsistent lists subcategories whose category or function link is
// dangling, or whose denormalized function id differs from the category's.
func (s *Store) FindInconsistent(ctx context.Context) ([]Inconsistency, error) {
	var rows []HierarchyRow
	err := s.hierarchyQuery(ctx).
		Where("c.id IS NULL OR f.id IS NULL OR s.function_id <> c.function_id").
		Order("s.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find inconsistent subcategories: %w", err)
	}

	out := make([]Inconsistency, 0, len(rows))
	for _, r := range rows {
		inc := Inconsistency{
			SubcategoryID:      r.SubcategoryID,
			SubcategoryCode:    r.SubcategoryCode,
			FunctionID:         r.SubcategoryFuncID,
			CategoryFunctionID: r.CategoryFunctionID,
		}
		if r.CategoryID != nil {
			inc.CategoryID = *r.CategoryID
		}
		switch {
		case r.CategoryID == nil:
			inc.Problem = "category missing"
		case r.FunctionID == nil:
			inc.Problem = "category function missing"
		default:
			inc.Problem = "function id differs from category function id"
		}
		out = append(out, inc)
	}
	return out, nil
}

// UpsertHierarchy inserts or updates reference rows in one transaction,
// parents first.
func (s *Store) UpsertHierarchy(ctx context.Context, fns []Function, cats []Category, subs []Subcategory) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := func() *gorm.DB {
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			})
		}
		if len(fns) > 0 {
			if err := upsert().Create(&fns).Error; err != nil {
				return fmt.Errorf("upsert functions: %w", err)
			}
		}
		if len(cats) > 0 {
			if err := upsert().Create(&cats).Error; err != nil {
				return fmt.Errorf("upsert categories: %w", err)
			}
		}
		if len(subs) > 0 {
			if err := upsert().Create(&subs).Error; err != nil {
				return fmt.Errorf("upsert subcategories: %w", err)
			}
		}
		return nil
	})
}

// Counts returns the number of functions, categories and subcategories.
func (s *Store) Counts(ctx context.Context) (fns, cats, subs int64, err error) {
	db := s.db.WithContext(ctx)
	if err = db.Model(&Function{}).Count(&fns).Error; err != nil {
		return 0, 0, 0, fmt.Errorf("count functions: %w", err)
	}
	if err = db.Model(&Category{}).Count(&cats).Error; err != nil {
		return 0, 0, 0, fmt.Errorf("count categories: %w", err)
	}
	if err = db.Model(&Subcategory{}).Count(&subs).Error; err != nil {
		return 0, 0, 0, fmt.Errorf("count subcategories: %w", err)
	}
	return fns, cats, subs, nil
}
