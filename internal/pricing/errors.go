package pricing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrDataIntegrity = errors.New("data integrity error")
	ErrConfiguration = errors.New("configuration error")
	ErrComputation   = errors.New("computation error")
)

// Error is the structured error returned by every engine operation. Kind is
// one of the sentinel errors above so callers can match with errors.Is.
type Error struct {
	Kind   error
	Entity string
	ID     string
	Field  string
	Value  any
	Reason string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Entity != "" {
		b.WriteString(": ")
		b.WriteString(e.Entity)
		if e.ID != "" {
			b.WriteString(" ")
			b.WriteString(e.ID)
		}
	}
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
		if e.Value != nil {
			fmt.Fprintf(&b, "=%v", e.Value)
		}
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Kind }

func validationError(entity, id, field string, value any, reason string) error {
	return &Error{Kind: ErrValidation, Entity: entity, ID: id, Field: field, Value: value, Reason: reason}
}

func notFoundError(entity, id string) error {
	return &Error{Kind: ErrNotFound, Entity: entity, ID: id, Reason: "not present in catalog"}
}

func integrityError(entity, id, field string, value any, reason string) error {
	return &Error{Kind: ErrDataIntegrity, Entity: entity, ID: id, Field: field, Value: value, Reason: reason}
}

func configurationError(field string, value any) error {
	return &Error{Kind: ErrConfiguration, Field: field, Value: value, Reason: "unrecognized value"}
}

func computationError(entity, id, field string, value float64) error {
	return &Error{Kind: ErrComputation, Entity: entity, ID: id, Field: field, Value: value, Reason: "result is not a finite number"}
}

// AsError extracts the structured engine error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
