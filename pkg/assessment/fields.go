package assessment

import (
	"strconv"
)

// field is one editable, diffable column of a record. The name is both the
// column name and the change-log field name.
type field[R any] struct {
	name  string
	value func(*R) any
}

func intField[R any](name string, get func(*R) int) field[R] {
	return field[R]{name: name, value: func(r *R) any { return get(r) }}
}

func textField[R any](name string, get func(*R) *string) field[R] {
	return field[R]{name: name, value: func(r *R) any { return get(r) }}
}

// render is the string form compared by the diff and written to the change
// log. Absent text renders as "".
func render(v any) string {
	switch t := v.(type) {
	case int:
		return strconv.Itoa(t)
	case *string:
		if t == nil {
			return ""
		}
		return *t
	default:
		panic("assessment: unsupported field type")
	}
}

// schema describes one record kind to the generic pipeline.
type schema[R any] struct {
	kind   Kind
	fields []field[R]
	meta   func(*R) *RecordMeta
	// placeholder builds the record returned when a subcategory has no
	// saved state.
	placeholder func(subcategoryID int64) R
}

func placeholderText() *string {
	s := PlaceholderText
	return &s
}

var currentSchema = schema[CurrentStateRecord]{
	kind: KindCurrent,
	fields: []field[CurrentStateRecord]{
		intField("priority", func(r *CurrentStateRecord) int { return r.Priority }),
		intField("level", func(r *CurrentStateRecord) int { return r.Level }),
		textField("policy_text", func(r *CurrentStateRecord) *string { return r.PolicyText }),
		textField("practice_text", func(r *CurrentStateRecord) *string { return r.PracticeText }),
		textField("responsible_text", func(r *CurrentStateRecord) *string { return r.ResponsibleText }),
		textField("reference_text", func(r *CurrentStateRecord) *string { return r.ReferenceText }),
		textField("evidence_text", func(r *CurrentStateRecord) *string { return r.EvidenceText }),
		textField("justification", func(r *CurrentStateRecord) *string { return r.Justification }),
		textField("notes", func(r *CurrentStateRecord) *string { return r.Notes }),
		textField("considerations", func(r *CurrentStateRecord) *string { return r.Considerations }),
	},
	meta: func(r *CurrentStateRecord) *RecordMeta { return &r.RecordMeta },
	placeholder: func(subcategoryID int64) CurrentStateRecord {
		return CurrentStateRecord{
			RecordMeta:      RecordMeta{SubcategoryID: subcategoryID},
			PolicyText:      placeholderText(),
			PracticeText:    placeholderText(),
			ResponsibleText: placeholderText(),
			ReferenceText:   placeholderText(),
			EvidenceText:    placeholderText(),
			Justification:   placeholderText(),
			Notes:           placeholderText(),
			Considerations:  placeholderText(),
		}
	},
}

var targetSchema = schema[TargetStateRecord]{
	kind: KindFuture,
	fields: []field[TargetStateRecord]{
		intField("priority", func(r *TargetStateRecord) int { return r.Priority }),
		intField("level", func(r *TargetStateRecord) int { return r.Level }),
		textField("policy_text", func(r *TargetStateRecord) *string { return r.PolicyText }),
		textField("practice_text", func(r *TargetStateRecord) *string { return r.PracticeText }),
		textField("artifact_text", func(r *TargetStateRecord) *string { return r.ArtifactText }),
		textField("function_text", func(r *TargetStateRecord) *string { return r.FunctionText }),
		textField("reference_text", func(r *TargetStateRecord) *string { return r.ReferenceText }),
		textField("justification", func(r *TargetStateRecord) *string { return r.Justification }),
		textField("notes", func(r *TargetStateRecord) *string { return r.Notes }),
		textField("considerations", func(r *TargetStateRecord) *string { return r.Considerations }),
	},
	meta: func(r *TargetStateRecord) *RecordMeta { return &r.RecordMeta },
	placeholder: func(subcategoryID int64) TargetStateRecord {
		return TargetStateRecord{
			RecordMeta:     RecordMeta{SubcategoryID: subcategoryID},
			PolicyText:     placeholderText(),
			PracticeText:   placeholderText(),
			ArtifactText:   placeholderText(),
			FunctionText:   placeholderText(),
			ReferenceText:  placeholderText(),
			Justification:  placeholderText(),
			Notes:          placeholderText(),
			Considerations: placeholderText(),
		}
	},
}
