package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/csfprofile/profile-registry/pkg/audit"
)

// Pipeline runs the read, batch-save and edit operations for one record
// kind. R is the record type and P the matching request payload.
type Pipeline[R any, P payload[R]] struct {
	schema schema[R]
	repo   Repository[R]
	cfg    *AssessmentConfig
	logger *slog.Logger

	now          func() time.Time
	newChangeSet func() string
}

// CurrentStatePipeline serves current-state records.
type CurrentStatePipeline = Pipeline[CurrentStateRecord, CurrentStatePayload]

// TargetStatePipeline serves target-state records.
type TargetStatePipeline = Pipeline[TargetStateRecord, TargetStatePayload]

func newPipeline[R any, P payload[R]](s schema[R], repo Repository[R], cfg *AssessmentConfig, logger *slog.Logger) *Pipeline[R, P] {
	if cfg == nil {
		cfg = DefaultAssessmentConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline[R, P]{
		schema:       s,
		repo:         repo,
		cfg:          cfg,
		logger:       logger.With("kind", s.kind),
		now:          time.Now,
		newChangeSet: uuid.NewString,
	}
}

// NewCurrentStatePipeline creates the pipeline for current-state records.
func NewCurrentStatePipeline(repo Repository[CurrentStateRecord], cfg *AssessmentConfig, logger *slog.Logger) *CurrentStatePipeline {
	return newPipeline[CurrentStateRecord, CurrentStatePayload](currentSchema, repo, cfg, logger)
}

// NewTargetStatePipeline creates the pipeline for target-state records.
func NewTargetStatePipeline(repo Repository[TargetStateRecord], cfg *AssessmentConfig, logger *slog.Logger) *TargetStatePipeline {
	return newPipeline[TargetStateRecord, TargetStatePayload](targetSchema, repo, cfg, logger)
}

// Kind returns the record kind served by the pipeline.
func (p *Pipeline[R, P]) Kind() Kind { return p.schema.kind }

// storageFailure logs err with the request origin and returns it wrapped.
func (p *Pipeline[R, P]) storageFailure(ctx context.Context, op string, err error, attrs ...any) error {
	o := audit.OriginFromContext(ctx)
	attrs = append(attrs, "error", err, "actor", o.Actor, "requestID", o.RequestID)
	p.logger.Error(op+" failed", attrs...)
	return fmt.Errorf("%s %s: %w", op, p.schema.kind, err)
}

// GetLatest returns the newest record for a subcategory. When the
// subcategory has none it returns a placeholder whose id is 0, whose
// priority and level are 0 and whose text fields read PlaceholderText.
func (p *Pipeline[R, P]) GetLatest(ctx context.Context, subcategoryID int64) (*R, error) {
	if subcategoryID <= 0 {
		return nil, invalidf("subcategory id must be positive, got %d", subcategoryID)
	}

	row, err := p.repo.FindLatest(ctx, subcategoryID)
	if err != nil {
		return nil, p.storageFailure(ctx, "get latest", err, "subcategoryID", subcategoryID)
	}
	if row == nil {
		placeholder := p.schema.placeholder(subcategoryID)
		return &placeholder, nil
	}
	return row, nil
}

// History returns every saved record for a subcategory, newest first.
func (p *Pipeline[R, P]) History(ctx context.Context, subcategoryID int64) ([]R, error) {
	if subcategoryID <= 0 {
		return nil, invalidf("subcategory id must be positive, got %d", subcategoryID)
	}

	rows, err := p.repo.FindAllBySubcategory(ctx, subcategoryID)
	if err != nil {
		return nil, p.storageFailure(ctx, "get history", err, "subcategoryID", subcategoryID)
	}
	if rows == nil {
		rows = []R{}
	}
	return rows, nil
}

// Get returns a single record by id.
func (p *Pipeline[R, P]) Get(ctx context.Context, id int64) (*R, error) {
	if id <= 0 {
		return nil, invalidf("record id must be positive, got %d", id)
	}

	row, err := p.repo.FindByID(ctx, id)
	if err != nil {
		return nil, p.storageFailure(ctx, "get record", err, "id", id)
	}
	if row == nil {
		return nil, fmt.Errorf("%s record %d: %w", p.schema.kind, id, ErrNotFound)
	}
	return row, nil
}

// SaveBatch validates every item on its own and appends the valid ones as
// new rows in a single transaction. Invalid items are reported in the
// result. If no item is valid a *BatchError is returned and nothing is
// written.
func (p *Pipeline[R, P]) SaveBatch(ctx context.Context, items []P) (*BatchResult, error) {
	return p.saveBatch(ctx, items, nil)
}

// SaveBatchJSON decodes every raw item on its own and saves the batch like
// SaveBatch. An item that does not decode is reported as an invalid item.
func (p *Pipeline[R, P]) SaveBatchJSON(ctx context.Context, raw []json.RawMessage) (*BatchResult, error) {
	items := make([]P, len(raw))
	var malformed map[int]string
	for i, msg := range raw {
		if err := json.Unmarshal(msg, &items[i]); err != nil {
			if malformed == nil {
				malformed = make(map[int]string)
			}
			malformed[i] = decodeMessage(err)
		}
	}
	return p.saveBatch(ctx, items, malformed)
}

// saveBatch skips the items listed in malformed, which maps item indexes to
// decode failures.
func (p *Pipeline[R, P]) saveBatch(ctx context.Context, items []P, malformed map[int]string) (*BatchResult, error) {
	if len(items) == 0 {
		return nil, invalidf("batch must contain at least one item")
	}
	if p.cfg.MaxBatchSize > 0 && len(items) > p.cfg.MaxBatchSize {
		return nil, invalidf("batch of %d items exceeds the limit of %d", len(items), p.cfg.MaxBatchSize)
	}

	now := p.now().UTC()
	result := &BatchResult{Submitted: len(items), Errors: []ItemError{}, SavedIDs: []int64{}}
	rows := make([]R, 0, len(items))

	for i, item := range items {
		h := item.header()
		if msg, ok := malformed[i]; ok {
			result.Errors = append(result.Errors, ItemError{Index: i, SubcategoryID: h.SubcategoryID, Message: msg})
			continue
		}
		if err := validate.Struct(item); err != nil {
			result.Errors = append(result.Errors, ItemError{
				Index:         i,
				SubcategoryID: h.SubcategoryID,
				Message:       validationMessage(err),
			})
			continue
		}

		row := item.record()
		*p.schema.meta(&row) = RecordMeta{
			SubcategoryID: h.SubcategoryID,
			RegisteredAt:  now,
			Revision:      1,
		}
		rows = append(rows, row)
	}
	result.ErrorCount = len(result.Errors)

	if len(rows) == 0 {
		return nil, &BatchError{Submitted: len(items), Items: result.Errors}
	}

	if err := p.repo.InsertMany(ctx, rows); err != nil {
		return nil, p.storageFailure(ctx, "save batch", err, "rows", len(rows))
	}

	for i := range rows {
		result.SavedIDs = append(result.SavedIDs, p.schema.meta(&rows[i]).ID)
	}
	result.SavedCount = len(rows)

	p.logger.Info("assessment batch saved",
		"submitted", result.Submitted,
		"saved", result.SavedCount,
		"errors", result.ErrorCount)
	return result, nil
}

// Edit overwrites the editable fields of record id with the normalized
// payload and records one change-log entry per field whose value differs.
// The entries and the update commit together. registered_at always moves
// to now and the revision is incremented, even when nothing changed.
func (p *Pipeline[R, P]) Edit(ctx context.Context, id int64, in P) (*EditResult, error) {
	h := in.header()
	switch {
	case id <= 0:
		return nil, invalidf("record id must be positive, got %d", id)
	case h.ID != 0 && h.ID != id:
		return nil, invalidf("payload id %d does not match record id %d", h.ID, id)
	}
	if err := validate.Struct(in); err != nil {
		return nil, invalidf("%s", validationMessage(err))
	}

	existing, err := p.repo.FindByID(ctx, id)
	if err != nil {
		return nil, p.storageFailure(ctx, "edit record", err, "id", id)
	}
	if existing == nil {
		return nil, fmt.Errorf("%s record %d: %w", p.schema.kind, id, ErrNotFound)
	}

	meta := *p.schema.meta(existing)
	if meta.SubcategoryID != h.SubcategoryID {
		return nil, invalidf("record %d belongs to subcategory %d, not %d", id, meta.SubcategoryID, h.SubcategoryID)
	}
	if h.Revision != nil && *h.Revision != meta.Revision {
		return nil, fmt.Errorf("%s record %d is at revision %d, not %d: %w",
			p.schema.kind, id, meta.Revision, *h.Revision, ErrConflict)
	}

	next := in.record()
	origin := audit.OriginFromContext(ctx)
	now := p.now().UTC()
	changeSet := p.newChangeSet()

	values := make(map[string]any, len(p.schema.fields)+2)
	var (
		changes []audit.ChangeLogEntry
		changed = []string{}
	)
	for _, f := range p.schema.fields {
		oldValue, newValue := render(f.value(existing)), render(f.value(&next))
		values[f.name] = f.value(&next)
		if oldValue == newValue {
			continue
		}
		changed = append(changed, f.name)
		changes = append(changes, audit.ChangeLogEntry{
			RecordID:      id,
			RecordKind:    p.schema.kind,
			SubcategoryID: meta.SubcategoryID,
			FieldName:     f.name,
			OldValue:      oldValue,
			NewValue:      newValue,
			Actor:         origin.Actor,
			ChangedAt:     now,
			SourceAddress: origin.SourceAddress,
			ChangeSetID:   changeSet,
			RequestID:     origin.RequestID,
		})
	}
	values["registered_at"] = now
	values["revision"] = meta.Revision + 1

	if err := p.repo.UpdateWithChanges(ctx, id, meta.Revision, values, changes); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("%s record %d: %w", p.schema.kind, id, err)
		}
		return nil, p.storageFailure(ctx, "edit record", err, "id", id, "changedFields", changed)
	}

	result := &EditResult{
		ID:                id,
		Revision:          meta.Revision + 1,
		ChangedFieldCount: len(changes),
		ChangedFields:     changed,
	}
	if len(changes) > 0 {
		result.ChangeSetID = changeSet
	}

	p.logger.Info("assessment record edited",
		"id", id,
		"subcategoryID", meta.SubcategoryID,
		"changedFields", len(changes),
		"actor", origin.Actor)
	return result, nil
}
