package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func clientRole() Matrix {
	return Matrix{
		"client": {
			Read:   true,
			Write:  WriteOwn,
			Delete: false,
			Fields: map[string]bool{"ssn": false},
		},
	}
}

func TestCheckPermission(t *testing.T) {
	matrix := clientRole()

	tests := []struct {
		name   string
		entity string
		action Action
		field  []string
		want   bool
	}{
		{name: "read allowed", entity: "client", action: ActionRead, want: true},
		{name: "write own counts as allowed", entity: "client", action: ActionWrite, want: true},
		{name: "delete denied", entity: "client", action: ActionDelete, want: false},
		{name: "unknown entity denied", entity: "invoice", action: ActionRead, want: false},
		{name: "hidden field denied", entity: "client", action: ActionRead, field: []string{"ssn"}, want: false},
		{name: "unlisted field allowed", entity: "client", action: ActionRead, field: []string{"name"}, want: true},
		{name: "unknown action denied", entity: "client", action: Action("export"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckPermission(matrix, tt.entity, tt.action, tt.field...)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteAccess(t *testing.T) {
	matrix := clientRole()

	assert.Equal(t, WriteOwn, WriteAccess(matrix, "client"))
	assert.Equal(t, WriteNone, WriteAccess(matrix, "invoice"))

	matrix["invoice"] = EntityPermissions{Write: WriteAll}
	assert.Equal(t, WriteAll, WriteAccess(matrix, "invoice"))
}

func TestFilterFieldsStripsOnlyExplicitFalse(t *testing.T) {
	matrix := clientRole()

	record := map[string]any{
		"name":  "A",
		"ssn":   "123",
		"email": "a@example.com",
	}

	filtered := FilterFields(matrix, "client", record)

	assert.Equal(t, map[string]any{"name": "A", "email": "a@example.com"}, filtered)
	// input untouched
	assert.Contains(t, record, "ssn")
}

func TestFilterFieldsPassThrough(t *testing.T) {
	matrix := Matrix{"client": {Read: true}}
	record := map[string]any{"name": "A", "ssn": "123"}

	assert.Equal(t, record, FilterFields(matrix, "client", record))
	assert.Equal(t, record, FilterFields(matrix, "unknown", record))
	assert.Nil(t, FilterFields(matrix, "client", nil))
}

func TestFilterFieldsExplicitTrueRetained(t *testing.T) {
	matrix := Matrix{
		"client": {
			Read:   true,
			Fields: map[string]bool{"ssn": false, "name": true},
		},
	}
	record := map[string]any{"name": "A", "ssn": "123", "phone": "555"}

	filtered := FilterFields(matrix, "client", record)
	assert.Equal(t, map[string]any{"name": "A", "phone": "555"}, filtered)
}

// Spec scenario: role {client: {read: true, write: "own", delete: false,
// fields: {ssn: false}}}.
func TestClientRoleScenario(t *testing.T) {
	matrix := clientRole()

	assert.False(t, CheckPermission(matrix, "client", ActionDelete))
	assert.Equal(t,
		map[string]any{"name": "A"},
		FilterFields(matrix, "client", map[string]any{"name": "A", "ssn": "123"}))
}
