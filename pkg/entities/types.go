// Package entities implements the dynamic entity schema engine: tenant
// defined record types, their fields, and schema-validated records.
package entities

import (
	"time"

	"github.com/google/uuid"
)

// FieldType enumerates the supported field types.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldNumber      FieldType = "number"
	FieldBoolean     FieldType = "boolean"
	FieldDate        FieldType = "date"
	FieldSelect      FieldType = "select"
	FieldMultiSelect FieldType = "multiselect"
	FieldEmail       FieldType = "email"
	FieldURL         FieldType = "url"
	FieldPhone       FieldType = "phone"
	FieldCurrency    FieldType = "currency"
)

// IsValid reports whether the field type is supported.
func (t FieldType) IsValid() bool {
	switch t {
	case FieldText, FieldNumber, FieldBoolean, FieldDate, FieldSelect,
		FieldMultiSelect, FieldEmail, FieldURL, FieldPhone, FieldCurrency:
		return true
	}
	return false
}

// Field is one typed field of an entity definition. SortOrder defines the
// stable display and validation sequence.
type Field struct {
	ID           uuid.UUID `json:"id"`
	DefinitionID uuid.UUID `json:"definition_id"`
	Name         string    `json:"name"`
	Key          string    `json:"key"`
	Type         FieldType `json:"type"`
	IsRequired   bool      `json:"is_required"`
	Options      []string  `json:"options,omitempty"`
	SortOrder    int       `json:"sort_order"`
}

// Definition is a tenant-authored schema for a custom record type.
type Definition struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Icon        string    `json:"icon,omitempty"`
	Description string    `json:"description,omitempty"`
	Fields      []Field   `json:"fields"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FieldByKey returns the field with the given key, if present.
func (d *Definition) FieldByKey(key string) (*Field, bool) {
	for i := range d.Fields {
		if d.Fields[i].Key == key {
			return &d.Fields[i], true
		}
	}
	return nil, false
}

// Record is a data instance of a definition. Data is the schema-shaped
// payload keyed by field key.
type Record struct {
	ID           uuid.UUID      `json:"id"`
	TenantID     uuid.UUID      `json:"tenant_id"`
	DefinitionID uuid.UUID      `json:"definition_id"`
	Data         map[string]any `json:"data"`
	OwnerID      uuid.UUID      `json:"owner_id"`
	CreatedBy    uuid.UUID      `json:"created_by"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// FieldSpec describes a field in a create-definition request.
type FieldSpec struct {
	Name       string    `json:"name"`
	Key        string    `json:"key,omitempty"`
	Type       FieldType `json:"type"`
	IsRequired bool      `json:"is_required,omitempty"`
	Options    []string  `json:"options,omitempty"`
}

// CreateDefinitionRequest is the payload for creating a definition. Slug
// is always derived from Name.
type CreateDefinitionRequest struct {
	Name        string      `json:"name"`
	Icon        string      `json:"icon,omitempty"`
	Description string      `json:"description,omitempty"`
	Fields      []FieldSpec `json:"fields"`
}
