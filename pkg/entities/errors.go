package entities

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrDefinitionNotFound indicates no definition for (tenant, slug).
	ErrDefinitionNotFound = errors.New("entity definition not found")

	// ErrRecordNotFound indicates the record does not exist.
	ErrRecordNotFound = errors.New("entity record not found")

	// ErrDuplicateSlug indicates a (tenant, slug) collision.
	ErrDuplicateSlug = errors.New("entity definition slug already in use")
)

// ValidationError reports per-field schema validation failures.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "record validation failed: " + strings.Join(parts, "; ")
}

// IsValidationError reports whether err is a record validation failure and
// returns it typed if so.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
