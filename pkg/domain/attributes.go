package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Attributes is a proposed attribute set keyed by wire field name. Presence of
// a key is significant: updates only touch the keys that are present.
type Attributes map[string]any

// Has reports whether the attribute is present, even when its value is null.
func (a Attributes) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// String returns the attribute as a trimmed string.
func (a Attributes) String(name string) (string, bool) {
	v, ok := a[name]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s), true
	case fmt.Stringer:
		return strings.TrimSpace(s.String()), true
	default:
		return "", false
	}
}

// Number returns the attribute as a float64 when it holds any numeric value.
func (a Attributes) Number(name string) (float64, bool) {
	v, ok := a[name]
	if !ok || v == nil {
		return 0, false
	}
	return toFloat(v)
}

// Clone returns a shallow copy.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Merge returns a copy of a overlaid with every key present in patch.
func (a Attributes) Merge(patch Attributes) Attributes {
	out := a.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// WithDefaults returns a copy of a in which every key of defaults that is
// absent or null takes the default value.
func (a Attributes) WithDefaults(defaults Attributes) Attributes {
	out := a.Clone()
	for k, v := range defaults {
		if cur, ok := out[k]; !ok || cur == nil {
			out[k] = v
		}
	}
	return out
}

// Only returns the subset of a whose keys are in allowed.
func (a Attributes) Only(allowed []string) Attributes {
	out := make(Attributes, len(allowed))
	for _, name := range allowed {
		if v, ok := a[name]; ok {
			out[name] = v
		}
	}
	return out
}

// WithoutIdentity drops store-managed keys such as uuid and validity_to.
func (a Attributes) WithoutIdentity() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		if IsIdentityAttribute(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// AttributesOf flattens a record into its wire attribute set.
func AttributesOf(rec Record) (Attributes, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", rec.EntityType(), err)
	}
	var attrs Attributes
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("flatten %s: %w", rec.EntityType(), err)
	}
	return attrs, nil
}

// ApplyAttributes decodes attrs onto rec. Keys absent from attrs leave the
// corresponding fields untouched; identity keys are ignored.
func ApplyAttributes(rec Record, attrs Attributes) error {
	raw, err := json.Marshal(attrs.WithoutIdentity())
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	if err := json.Unmarshal(raw, rec); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return NewValidationError(FieldError{Field: typeErr.Field, Message: "has an invalid type"})
		}
		return NewValidationError(FieldError{Message: err.Error()})
	}
	return nil
}

// isBlank treats nil, empty strings, zero numbers, false and empty
// collections as missing.
func isBlank(v any) bool {
	if v == nil {
		return true
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x) == ""
	case bool:
		return !x
	case json.Number:
		f, err := x.Float64()
		return err == nil && f == 0
	}
	if f, ok := toFloat(v); ok {
		return f == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		if math.IsNaN(n) {
			return 0, false
		}
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
