// Package validate checks decoded JSON payloads against declarative field tables.
package validate

import (
	"net/mail"
	"sort"
	"unicode/utf8"
)

// Type is the JSON kind a field must have.
type Type string

const (
	String  Type = "string"
	Boolean Type = "boolean"
	Number  Type = "number"
)

// Format names a string shape.
type Format string

const FormatEmail Format = "email"

// Rule constrains a single field.
type Rule struct {
	Type      Type
	Required  bool
	Enum      []string
	Format    Format
	MinLength int
}

// Schema maps field names to their rules.
type Schema map[string]Rule

// FieldError describes the first rule a field broke.
type FieldError struct {
	Field   string
	Message string
}

const (
	msgRequired  = "is required"
	msgWrongType = "is the wrong type"
	msgEnum      = "must be an enum value"
	msgMinLength = "has less length than allowed"
	msgEmail     = "must be email format"
)

// Check validates payload against schema. It reports at most one error per
// field, ordered by field name. Fields outside the schema are ignored.
func Check(schema Schema, payload map[string]any) []FieldError {
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []FieldError
	for _, name := range names {
		if msg, ok := checkField(schema[name], payload[name]); !ok {
			errs = append(errs, FieldError{Field: name, Message: msg})
		}
	}
	return errs
}

func checkField(rule Rule, value any) (string, bool) {
	// JSON null counts as absent.
	if value == nil {
		if rule.Required {
			return msgRequired, false
		}
		return "", true
	}

	switch rule.Type {
	case String:
		s, ok := value.(string)
		if !ok {
			return msgWrongType, false
		}
		if len(rule.Enum) > 0 && !contains(rule.Enum, s) {
			return msgEnum, false
		}
		if utf8.RuneCountInString(s) < rule.MinLength {
			return msgMinLength, false
		}
		if rule.Format == FormatEmail && !isEmail(s) {
			return msgEmail, false
		}
	case Boolean:
		if _, ok := value.(bool); !ok {
			return msgWrongType, false
		}
	case Number:
		if _, ok := value.(float64); !ok {
			return msgWrongType, false
		}
	}
	return "", true
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// isEmail accepts bare addresses only; display names and angle brackets are rejected.
func isEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
