package framework

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/csfprofile/profile-registry/pkg/cache"
)

// MissingCode replaces any code that cannot be resolved from the hierarchy.
const MissingCode = "??"

// HierarchyFinder loads joined hierarchy rows for a set of subcategory ids.
type HierarchyFinder interface {
	FindHierarchy(ctx context.Context, ids []int64) ([]HierarchyRow, error)
}

// Resolver renders subcategories as "<Function>.<Category>-<Subcategory>"
// codes. It never returns an error: lookups that fail degrade to labeled
// placeholders so reporting views always have something to show.
type Resolver struct {
	finder HierarchyFinder
	cache  *cache.LRUCache[int64, FormattedInfo]
	logger *slog.Logger
}

// NewResolver creates a Resolver. A nil or disabled cfg turns caching off.
func NewResolver(finder HierarchyFinder, cfg *cache.CacheConfig, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{finder: finder, logger: logger}
	if cfg != nil && cfg.Enabled {
		r.cache = cache.NewLRUCache[int64, FormattedInfo](cfg.MaxSize, cfg.TTL)
	}
	return r
}

// FormatOne returns the composite code for a single subcategory.
func (r *Resolver) FormatOne(ctx context.Context, id int64) string {
	return r.FormatMany(ctx, []int64{id})[id].Code
}

// FormatMany resolves every distinct id with at most one database query.
// The result always holds exactly one entry per distinct input id.
func (r *Resolver) FormatMany(ctx context.Context, ids []int64) map[int64]FormattedInfo {
	distinct := mapset.NewThreadUnsafeSet[int64](ids...).ToSlice()
	slices.Sort(distinct)

	result := make(map[int64]FormattedInfo, len(distinct))

	lookup := make([]int64, 0, len(distinct))
	for _, id := range distinct {
		if id <= 0 {
			result[id] = notFoundInfo(id)
			continue
		}
		lookup = append(lookup, id)
	}

	if r.cache != nil && len(lookup) > 0 {
		hits, misses := r.cache.GetMany(lookup)
		for id, info := range hits {
			result[id] = info
		}
		lookup = misses
	}
	if len(lookup) == 0 {
		return result
	}

	rows, err := r.finder.FindHierarchy(ctx, lookup)
	if err != nil {
		r.logger.Error("subcategory code lookup failed, returning placeholders",
			"error", err, "ids", len(lookup))
		for _, id := range lookup {
			result[id] = errorInfo(id)
		}
		return result
	}

	for _, row := range rows {
		info := formatRow(row)
		result[row.SubcategoryID] = info
		if r.cache != nil {
			r.cache.Set(row.SubcategoryID, info)
		}
	}
	for _, id := range lookup {
		if _, ok := result[id]; !ok {
			result[id] = notFoundInfo(id)
		}
	}
	return result
}

func formatRow(row HierarchyRow) FormattedInfo {
	status := StatusOK
	code := func(v *string) string {
		if v == nil || strings.TrimSpace(*v) == "" {
			status = StatusIncomplete
			return MissingCode
		}
		return *v
	}

	fn := code(row.FunctionCode)
	cat := code(row.CategoryCode)
	sub := code(&row.SubcategoryCode)

	return FormattedInfo{
		ID:           row.SubcategoryID,
		Code:         fmt.Sprintf("%s.%s-%s", fn, cat, sub),
		Description:  row.Description,
		FunctionCode: fn,
		CategoryCode: cat,
		Status:       status,
	}
}

func notFoundInfo(id int64) FormattedInfo {
	return FormattedInfo{
		ID:           id,
		Code:         fmt.Sprintf("[not found: %d]", id),
		Description:  "subcategory does not exist",
		FunctionCode: MissingCode,
		CategoryCode: MissingCode,
		Status:       StatusNotFound,
	}
}

func errorInfo(id int64) FormattedInfo {
	return FormattedInfo{
		ID:           id,
		Code:         fmt.Sprintf("[unavailable: %d]", id),
		Description:  "subcategory lookup failed",
		FunctionCode: MissingCode,
		CategoryCode: MissingCode,
		Status:       StatusError,
	}
}
