package assessment

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a referenced record that does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict marks an edit whose record changed after it was read.
	ErrConflict = errors.New("record was modified concurrently")
)

// ItemError describes one rejected batch item.
type ItemError struct {
	Index         int    `json:"index"`
	SubcategoryID int64  `json:"subcategoryId"`
	Message       string `json:"message"`
}

// BatchError is returned when no item of a batch was valid. Nothing is
// written in that case.
type BatchError struct {
	Submitted int
	Items     []ItemError
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s: none of the %d submitted items are valid", ErrInvalidInput, e.Submitted)
}

// Unwrap makes errors.Is(err, ErrInvalidInput) hold.
func (e *BatchError) Unwrap() error { return ErrInvalidInput }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
