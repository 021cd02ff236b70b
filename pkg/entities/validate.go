package entities

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// date layouts accepted for date fields
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// ValidateRecord checks a record payload against its definition: unknown
// keys are rejected, required fields must be present, and every value must
// conform to its field type. Runs between definition resolution and
// persistence on every record create.
func ValidateRecord(def *Definition, data map[string]any) error {
	failures := make(map[string]string)

	for key := range data {
		if _, ok := def.FieldByKey(key); !ok {
			failures[key] = "unknown field"
		}
	}

	for _, field := range def.Fields {
		value, present := data[field.Key]
		if !present || value == nil {
			if field.IsRequired {
				failures[field.Key] = "required field is missing"
			}
			continue
		}
		if reason := checkValue(&field, value); reason != "" {
			failures[field.Key] = reason
		}
	}

	if len(failures) > 0 {
		return &ValidationError{Fields: failures}
	}
	return nil
}

func checkValue(field *Field, value any) string {
	switch field.Type {
	case FieldText, FieldPhone:
		if _, ok := value.(string); !ok {
			return "must be a string"
		}

	case FieldEmail:
		s, ok := value.(string)
		if !ok {
			return "must be a string"
		}
		at := strings.Index(s, "@")
		if at <= 0 || at == len(s)-1 {
			return "must be a valid email address"
		}

	case FieldURL:
		s, ok := value.(string)
		if !ok {
			return "must be a string"
		}
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return "must be a valid URL"
		}

	case FieldNumber, FieldCurrency:
		switch value.(type) {
		case float64, float32, int, int32, int64:
		default:
			return "must be a number"
		}

	case FieldBoolean:
		if _, ok := value.(bool); !ok {
			return "must be a boolean"
		}

	case FieldDate:
		s, ok := value.(string)
		if !ok {
			return "must be a date string"
		}
		if !parseableDate(s) {
			return "must be an ISO 8601 date"
		}

	case FieldSelect:
		s, ok := value.(string)
		if !ok {
			return "must be a string"
		}
		if !contains(field.Options, s) {
			return fmt.Sprintf("%q is not one of the allowed options", s)
		}

	case FieldMultiSelect:
		items, ok := toStringSlice(value)
		if !ok {
			return "must be a list of strings"
		}
		for _, item := range items {
			if !contains(field.Options, item) {
				return fmt.Sprintf("%q is not one of the allowed options", item)
			}
		}

	default:
		return fmt.Sprintf("unsupported field type %q", field.Type)
	}
	return ""
}

func parseableDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func contains(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}

func toStringSlice(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// ValidateDefinitionRequest checks a create-definition request before any
// write: non-empty name, at least one field, valid field types, unique
// field keys, options present for select types.
func ValidateDefinitionRequest(req *CreateDefinitionRequest) error {
	failures := make(map[string]string)

	if strings.TrimSpace(req.Name) == "" {
		failures["name"] = "name is required"
	}
	if len(req.Fields) == 0 {
		failures["fields"] = "at least one field is required"
	}

	seen := make(map[string]bool)
	for i, spec := range req.Fields {
		key := spec.Key
		if key == "" {
			key = Slugify(spec.Name)
		}
		if key == "" {
			failures[fmt.Sprintf("fields[%d]", i)] = "field name is required"
			continue
		}
		if seen[key] {
			failures[key] = "duplicate field key"
			continue
		}
		seen[key] = true

		if !spec.Type.IsValid() {
			failures[key] = fmt.Sprintf("unsupported field type %q", spec.Type)
			continue
		}
		if (spec.Type == FieldSelect || spec.Type == FieldMultiSelect) && len(spec.Options) == 0 {
			failures[key] = "select fields require options"
		}
	}

	if len(failures) > 0 {
		return &ValidationError{Fields: failures}
	}
	return nil
}
