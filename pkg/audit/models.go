package audit

import (
	"strings"
	"time"
)

// RecordKind tags which state table a change-log entry refers to.
type RecordKind string

const (
	KindCurrent RecordKind = "CURRENT"
	KindFuture  RecordKind = "FUTURE"
)

// ParseRecordKind accepts the stored tags and the URL aliases
// "current", "target" and "future", case-insensitively.
func ParseRecordKind(s string) (RecordKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "current":
		return KindCurrent, true
	case "future", "target":
		return KindFuture, true
	}
	return "", false
}

// ChangeLogEntry is one immutable field-level modification of an
// assessment record. Entries written by a single edit share ChangeSetID.
type ChangeLogEntry struct {
	ID            int64      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	RecordID      int64      `gorm:"column:record_id;not null;index:idx_change_log_record,priority:2" json:"recordId"`
	RecordKind    RecordKind `gorm:"column:record_kind;size:16;not null;index:idx_change_log_record,priority:1" json:"recordKind"`
	SubcategoryID int64      `gorm:"column:subcategory_id;not null;index" json:"subcategoryId"`
	FieldName     string     `gorm:"column:field_name;size:64;not null" json:"fieldName"`
	OldValue      string     `gorm:"column:old_value;type:text" json:"oldValue"`
	NewValue      string     `gorm:"column:new_value;type:text" json:"newValue"`
	Actor         string     `gorm:"column:actor;size:255;not null;index" json:"actor"`
	ChangedAt     time.Time  `gorm:"column:changed_at;not null;index" json:"changedAt"`
	SourceAddress string     `gorm:"column:source_address;size:64" json:"sourceAddress,omitempty"`
	ChangeSetID   string     `gorm:"column:change_set_id;size:36;index" json:"changeSetId"`
	RequestID     string     `gorm:"column:request_id;size:128" json:"requestId,omitempty"`
}

// TableName returns the GORM table name.
func (ChangeLogEntry) TableName() string { return "change_log" }

// ChangeLogFilter narrows a change-log listing. Zero values match all.
type ChangeLogFilter struct {
	RecordKind    RecordKind
	RecordID      int64
	SubcategoryID int64
	Actor         string
	ChangeSetID   string
}
