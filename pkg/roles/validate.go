package roles

import (
	"encoding/json"
	"fmt"
)

// allowed per-entity matrix keys
var matrixKeys = map[string]bool{
	"read":   true,
	"write":  true,
	"delete": true,
	"fields": true,
}

// ValidateMatrix checks a raw permissions document against the matrix
// shape before a role is created or updated. Read time never validates.
//
// Rules: every entity value is an object whose keys are read/write/delete/
// fields; read and delete are booleans; write is a boolean or "own";
// fields is an object of field name to boolean.
func ValidateMatrix(raw json.RawMessage) (Matrix, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("permissions matrix is required")
	}

	var shape map[string]map[string]json.RawMessage
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, fmt.Errorf("permissions must map entity names to action objects: %w", err)
	}

	for entity, actions := range shape {
		if entity == "" {
			return nil, fmt.Errorf("entity name cannot be empty")
		}
		for key, value := range actions {
			if !matrixKeys[key] {
				return nil, fmt.Errorf("entity %q: unknown action %q", entity, key)
			}
			switch key {
			case "read", "delete":
				var b bool
				if err := json.Unmarshal(value, &b); err != nil {
					return nil, fmt.Errorf("entity %q: %s must be a boolean", entity, key)
				}
			case "write":
				var w WriteMode
				if err := w.UnmarshalJSON(value); err != nil {
					return nil, fmt.Errorf("entity %q: %w", entity, err)
				}
			case "fields":
				var fields map[string]bool
				if err := json.Unmarshal(value, &fields); err != nil {
					return nil, fmt.Errorf("entity %q: fields must map field names to booleans", entity)
				}
			}
		}
	}

	var matrix Matrix
	if err := json.Unmarshal(raw, &matrix); err != nil {
		return nil, fmt.Errorf("failed to parse permissions matrix: %w", err)
	}
	return matrix, nil
}
