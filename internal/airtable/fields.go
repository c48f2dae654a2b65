package airtable

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Fields wraps a record's loosely typed field map. Every accessor tolerates
// missing keys and unexpected types by returning the zero value.
type Fields map[string]interface{}

// String returns a text field. Single-element lists (lookups, linked
// names) are unwrapped.
func (f Fields) String(key string) string {
	switch v := f[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case []interface{}:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// Strings returns a multi-select or list field. A comma or newline
// separated text field is split into items.
func (f Fields) Strings(key string) []string {
	var out []string
	switch v := f[key].(type) {
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '\n' }) {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Int returns a number field truncated to int.
func (f Fields) Int(key string) int {
	switch v := f[key].(type) {
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n
		}
	}
	return 0
}

// Bool returns a checkbox field.
func (f Fields) Bool(key string) bool {
	v, _ := f[key].(bool)
	return v
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02",
}

// Time parses a date or datetime field. Returns nil when absent or unparseable.
func (f Fields) Time(key string) *time.Time {
	s, ok := f[key].(string)
	if !ok || s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// AttachmentURL returns the URL of the first attachment, or a plain URL
// stored as text.
func (f Fields) AttachmentURL(key string) string {
	switch v := f[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case []interface{}:
		if len(v) == 0 {
			return ""
		}
		if m, ok := v[0].(map[string]interface{}); ok {
			if u, ok := m["url"].(string); ok {
				return u
			}
		}
	}
	return ""
}

// EscapeFormulaString quotes s for use inside an Airtable formula.
func EscapeFormulaString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return fmt.Sprintf("'%s'", s)
}
