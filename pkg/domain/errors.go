package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConflict is returned by stores when an insert or mutation would leave two
// current rows sharing an external identifier or natural key.
var ErrConflict = errors.New("record conflicts with an existing current record")

// ErrNotImplemented marks operations that are declared but not built yet.
var ErrNotImplemented = errors.New("operation not implemented")

// ValidationError carries the ordered field violations of a rejected request.
type ValidationError struct {
	Errors []FieldError
}

// NewValidationError wraps the supplied violations.
func NewValidationError(violations ...FieldError) ValidationError {
	return ValidationError{Errors: append([]FieldError(nil), violations...)}
}

func (e ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, v := range e.Errors {
		parts = append(parts, v.String())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// PermissionError reports that the acting principal lacks a required code.
type PermissionError struct {
	Entity    EntityType
	Operation string
}

func (e PermissionError) Error() string {
	return fmt.Sprintf("user does not have permission to %s %s", e.Operation, e.Entity)
}

// NotFoundError is returned when an external identifier has no current row.
// It is a validation-class outcome, not a fault.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
