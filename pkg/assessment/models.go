package assessment

import (
	"fmt"
	"time"

	"github.com/csfprofile/profile-registry/pkg/audit"
)

// Kind selects the current-state or the target-state table. Its values are
// the tags stored in change_log.record_kind.
type Kind = audit.RecordKind

const (
	KindCurrent = audit.KindCurrent
	KindFuture  = audit.KindFuture
)

// ParseKind accepts "current", "target" or "future" in any case.
func ParseKind(s string) (Kind, error) {
	kind, ok := audit.ParseRecordKind(s)
	if !ok {
		return "", fmt.Errorf("%w: unknown assessment kind %q", ErrInvalidInput, s)
	}
	return kind, nil
}

// PlaceholderText fills every free-text field of a placeholder record.
const PlaceholderText = "to be filled in"

// DefaultRank replaces missing or non-positive priority and level values.
const DefaultRank = 1

// RecordMeta holds the columns shared by both state tables. They are never
// diffed or edited through a payload.
type RecordMeta struct {
	ID            int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	SubcategoryID int64     `gorm:"column:subcategory_id;not null;index:,composite:subcategory_latest,priority:1" json:"subcategoryId"`
	RegisteredAt  time.Time `gorm:"column:registered_at;not null;index:,composite:subcategory_latest,priority:2" json:"registeredAt"`
	Revision      int64     `gorm:"column:revision;not null" json:"revision"`
}

// IsPlaceholder reports whether the record was synthesized because the
// subcategory has no saved state yet.
func (m RecordMeta) IsPlaceholder() bool { return m.ID == 0 }

// CurrentStateRecord is one saved snapshot of where a subcategory is today.
type CurrentStateRecord struct {
	RecordMeta
	Priority        int     `gorm:"column:priority;not null" json:"priority"`
	Level           int     `gorm:"column:level;not null" json:"level"`
	PolicyText      *string `gorm:"column:policy_text;type:text" json:"policyText"`
	PracticeText    *string `gorm:"column:practice_text;type:text" json:"practiceText"`
	ResponsibleText *string `gorm:"column:responsible_text;type:text" json:"responsibleText"`
	ReferenceText   *string `gorm:"column:reference_text;type:text" json:"referenceText"`
	EvidenceText    *string `gorm:"column:evidence_text;type:text" json:"evidenceText"`
	Justification   *string `gorm:"column:justification;type:text" json:"justification"`
	Notes           *string `gorm:"column:notes;type:text" json:"notes"`
	Considerations  *string `gorm:"column:considerations;type:text" json:"considerations"`
}

// TableName returns the GORM table name.
func (CurrentStateRecord) TableName() string { return "current_state" }

// TargetStateRecord is one saved snapshot of where a subcategory should be.
type TargetStateRecord struct {
	RecordMeta
	Priority       int     `gorm:"column:priority;not null" json:"priority"`
	Level          int     `gorm:"column:level;not null" json:"level"`
	PolicyText     *string `gorm:"column:policy_text;type:text" json:"policyText"`
	PracticeText   *string `gorm:"column:practice_text;type:text" json:"practiceText"`
	ArtifactText   *string `gorm:"column:artifact_text;type:text" json:"artifactText"`
	FunctionText   *string `gorm:"column:function_text;type:text" json:"functionText"`
	ReferenceText  *string `gorm:"column:reference_text;type:text" json:"referenceText"`
	Justification  *string `gorm:"column:justification;type:text" json:"justification"`
	Notes          *string `gorm:"column:notes;type:text" json:"notes"`
	Considerations *string `gorm:"column:considerations;type:text" json:"considerations"`
}

// TableName returns the GORM table name.
func (TargetStateRecord) TableName() string { return "target_state" }

// Models returns the state tables for auto-migration.
func Models() []any {
	return []any{&CurrentStateRecord{}, &TargetStateRecord{}}
}

// BatchResult reports the outcome of a batch save. Item failures do not fail
// the batch.
type BatchResult struct {
	Submitted  int         `json:"submitted"`
	SavedCount int         `json:"savedCount"`
	ErrorCount int         `json:"errorCount"`
	Errors     []ItemError `json:"errors"`
	SavedIDs   []int64     `json:"savedIds"`
}

// EditResult reports an in-place edit. ChangeSetID is empty when nothing
// changed.
type EditResult struct {
	ID                int64    `json:"id"`
	Revision          int64    `json:"revision"`
	ChangedFieldCount int      `json:"changedFieldCount"`
	ChangedFields     []string `json:"changedFields"`
	ChangeSetID       string   `json:"changeSetId,omitempty"`
}
