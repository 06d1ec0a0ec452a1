package domain

import (
	"fmt"
	"strings"
	"time"
)

// FieldError is one field-level violation produced by the validation pipeline.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Rule inspects an attribute set and reports at most one violation.
type Rule func(Attributes) (FieldError, bool)

// Schema is the declarative validation pipeline of one entity type. Rules are
// declared in field order so violations come back in a deterministic order.
type Schema struct {
	Entity EntityType
	Rules  []Rule
}

// Validate runs every rule and returns the violations in declaration order,
// keeping only the first violation of each field. An empty (nil) slice means
// the attribute set is valid.
func (s Schema) Validate(attrs Attributes) []FieldError {
	var out []FieldError
	seen := make(map[string]bool)
	for _, rule := range s.Rules {
		violation, failed := rule(attrs)
		if !failed || (violation.Field != "" && seen[violation.Field]) {
			continue
		}
		seen[violation.Field] = true
		out = append(out, violation)
	}
	return out
}

// Required fails when the field is absent or blank (nil, "", 0, false, empty).
func Required(field, message string) Rule {
	return func(a Attributes) (FieldError, bool) {
		if isBlank(a[field]) {
			return FieldError{Field: field, Message: message}, true
		}
		return FieldError{}, false
	}
}

// Present fails only when the field is absent or null; zero values pass.
func Present(field, message string) Rule {
	return func(a Attributes) (FieldError, bool) {
		if v, ok := a[field]; !ok || v == nil {
			return FieldError{Field: field, Message: message}, true
		}
		return FieldError{}, false
	}
}

// Positive fails when the field is missing, non-numeric, or not greater than zero.
func Positive(field string) Rule {
	return func(a Attributes) (FieldError, bool) {
		n, ok := a.Number(field)
		if !ok || n <= 0 {
			return FieldError{Field: field, Message: "must be greater than 0"}, true
		}
		return FieldError{}, false
	}
}

// OneOf fails when the field is present and not a member of allowed.
// Absent and null fields are left to Required.
func OneOf(field string, allowed []string) Rule {
	return func(a Attributes) (FieldError, bool) {
		v, ok := a[field]
		if !ok || v == nil {
			return FieldError{}, false
		}
		if s, isString := v.(string); isString {
			for _, candidate := range allowed {
				if s == candidate {
					return FieldError{}, false
				}
			}
		}
		return FieldError{
			Field:   field,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
		}, true
	}
}

// DateField fails when the field is present but not a YYYY-MM-DD date.
func DateField(field string) Rule {
	return func(a Attributes) (FieldError, bool) {
		if _, ok := dateValue(a, field); !ok && !isBlank(a[field]) {
			return FieldError{Field: field, Message: "must be a date (YYYY-MM-DD)"}, true
		}
		return FieldError{}, false
	}
}

// ClockField fails when the field is present but not an HH:MM time of day.
func ClockField(field string) Rule {
	return func(a Attributes) (FieldError, bool) {
		s, ok := a.String(field)
		if !ok || s == "" {
			return FieldError{}, false
		}
		if _, err := time.Parse("15:04", s); err == nil {
			return FieldError{}, false
		}
		if _, err := time.Parse("15:04:05", s); err == nil {
			return FieldError{}, false
		}
		return FieldError{Field: field, Message: "must be a time of day (HH:MM)"}, true
	}
}

// NotBefore fails on field when both dates are present and field precedes other.
func NotBefore(field, other, message string) Rule {
	return func(a Attributes) (FieldError, bool) {
		end, okEnd := dateValue(a, field)
		start, okStart := dateValue(a, other)
		if okEnd && okStart && end.Before(start.Time) {
			return FieldError{Field: field, Message: message}, true
		}
		return FieldError{}, false
	}
}

func dateValue(a Attributes, field string) (Date, bool) {
	switch v := a[field].(type) {
	case Date:
		return v, !v.IsZero()
	case *Date:
		if v == nil || v.IsZero() {
			return Date{}, false
		}
		return *v, true
	case time.Time:
		return NewDate(v), !v.IsZero()
	case string:
		d, err := ParseDate(strings.TrimSpace(v))
		if err != nil {
			if ts, tsErr := time.Parse(time.RFC3339, strings.TrimSpace(v)); tsErr == nil {
				return NewDate(ts), true
			}
			return Date{}, false
		}
		return d, true
	}
	return Date{}, false
}
