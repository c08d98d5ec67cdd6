package message

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("message: validation failed")

// ValidationError names the offending field, the constraint it broke and the
// value that was supplied.
type ValidationError struct {
	Field      string
	Constraint string
	Value      any
}

// maxQuotedValue caps how much of a string value an error message repeats.
const maxQuotedValue = 64

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("message: %q %s", e.Field, e.Constraint)
	}
	return fmt.Sprintf("message: %q %s (got %s)", e.Field, e.Constraint, quoteValue(e.Value))
}

func quoteValue(v any) string {
	s, ok := v.(string)
	if !ok {
		return fmt.Sprint(v)
	}
	n := utf8.RuneCountInString(s)
	if n <= maxQuotedValue {
		return s
	}
	return fmt.Sprintf("%s... (%d characters)", string([]rune(s)[:maxQuotedValue]), n)
}

// Is makes errors.Is(err, ErrValidation) true for validation errors.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func required(field string) *ValidationError {
	return &ValidationError{Field: field, Constraint: "is required"}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func requireString(field, value string) error {
	if blank(value) {
		return required(field)
	}
	return nil
}

// requireLength checks a required string against an inclusive rune range.
// Whitespace counts towards the length.
func requireLength(field, value string, min, max int) error {
	if value == "" {
		return &ValidationError{
			Field:      field,
			Constraint: fmt.Sprintf("is required and must be between %d and %d characters long", min, max),
		}
	}
	if n := utf8.RuneCountInString(value); n < min || n > max {
		return &ValidationError{
			Field:      field,
			Constraint: fmt.Sprintf("must be between %d and %d characters long", min, max),
			Value:      value,
		}
	}
	return nil
}

func maxLength(field, value string, max int) error {
	if n := utf8.RuneCountInString(value); n > max {
		return &ValidationError{
			Field:      field,
			Constraint: fmt.Sprintf("must be at most %d characters long", max),
			Value:      value,
		}
	}
	return nil
}
