package assessment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage renders validator errors as one readable sentence.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// decodeMessage describes why a single batch item failed to decode.
func decodeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return "item must be a JSON object"
		}
		switch typeErr.Type.Kind() {
		case reflect.Int, reflect.Int64:
			return fmt.Sprintf("%s must be an integer", typeErr.Field)
		case reflect.String, reflect.Pointer:
			return fmt.Sprintf("%s must be a string", typeErr.Field)
		default:
			return fmt.Sprintf("%s has an invalid value", typeErr.Field)
		}
	}
	return fmt.Sprintf("malformed item: %v", err)
}

// FlexInt is a leniently decoded integer. It accepts JSON numbers, numeric
// strings and null, and never fails to decode: anything else is recorded as
// not set.
type FlexInt struct {
	Value int64
	Set   bool
}

// Int returns a FlexInt holding v.
func Int(v int64) FlexInt { return FlexInt{Value: v, Set: true} }

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	*f = FlexInt{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}

	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*f = Int(v)
		return nil
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil && v == math.Trunc(v) && math.Abs(v) < math.MaxInt32 {
		*f = Int(int64(v))
	}
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(f.Value, 10)), nil
}

// rank returns the value, or DefaultRank when it is missing, unparsable,
// zero or negative.
func (f FlexInt) rank() int {
	if !f.Set || f.Value <= 0 || f.Value > math.MaxInt32 {
		return DefaultRank
	}
	return int(f.Value)
}

// normalizeText maps empty and whitespace-only text to nil and trims
// everything else.
func normalizeText(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// PayloadHeader addresses the record a payload applies to.
type PayloadHeader struct {
	// ID is only meaningful for edits. It must be zero or match the
	// addressed row.
	ID            int64 `json:"id,omitempty" validate:"gte=0"`
	SubcategoryID int64 `json:"subcategoryId" validate:"gt=0"`
	// Revision, when set, must equal the stored revision for an edit
	// to apply.
	Revision *int64 `json:"revision,omitempty" validate:"omitempty,gt=0"`
}

func (h PayloadHeader) header() PayloadHeader { return h }

// payload is implemented by the per-kind request bodies.
type payload[R any] interface {
	header() PayloadHeader
	// record returns the normalized editable fields. RecordMeta is zero.
	record() R
}

// CurrentStatePayload is the request body for saving or editing a
// current-state record.
type CurrentStatePayload struct {
	PayloadHeader
	Priority        FlexInt `json:"priority"`
	Level           FlexInt `json:"level"`
	PolicyText      *string `json:"policyText"`
	PracticeText    *string `json:"practiceText"`
	ResponsibleText *string `json:"responsibleText"`
	ReferenceText   *string `json:"referenceText"`
	EvidenceText    *string `json:"evidenceText"`
	Justification   *string `json:"justification"`
	Notes           *string `json:"notes"`
	Considerations  *string `json:"considerations"`
}

func (p CurrentStatePayload) record() CurrentStateRecord {
	return CurrentStateRecord{
		Priority:        p.Priority.rank(),
		Level:           p.Level.rank(),
		PolicyText:      normalizeText(p.PolicyText),
		PracticeText:    normalizeText(p.PracticeText),
		ResponsibleText: normalizeText(p.ResponsibleText),
		ReferenceText:   normalizeText(p.ReferenceText),
		EvidenceText:    normalizeText(p.EvidenceText),
		Justification:   normalizeText(p.Justification),
		Notes:           normalizeText(p.Notes),
		Considerations:  normalizeText(p.Considerations),
	}
}

// TargetStatePayload is the request body for saving or editing a
// target-state record.
type TargetStatePayload struct {
	PayloadHeader
	Priority       FlexInt `json:"priority"`
	Level          FlexInt `json:"level"`
	PolicyText     *string `json:"policyText"`
	PracticeText   *string `json:"practiceText"`
	ArtifactText   *string `json:"artifactText"`
	FunctionText   *string `json:"functionText"`
	ReferenceText  *string `json:"referenceText"`
	Justification  *string `json:"justification"`
	Notes          *string `json:"notes"`
	Considerations *string `json:"considerations"`
}

func (p TargetStatePayload) record() TargetStateRecord {
	return TargetStateRecord{
		Priority:       p.Priority.rank(),
		Level:          p.Level.rank(),
		PolicyText:     normalizeText(p.PolicyText),
		PracticeText:   normalizeText(p.PracticeText),
		ArtifactText:   normalizeText(p.ArtifactText),
		FunctionText:   normalizeText(p.FunctionText),
		ReferenceText:  normalizeText(p.ReferenceText),
		Justification:  normalizeText(p.Justification),
		Notes:          normalizeText(p.Notes),
		Considerations: normalizeText(p.Considerations),
	}
}
