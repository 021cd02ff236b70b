package roles

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteModeJSONRoundTrip(t *testing.T) {
	tests := []struct {
		mode WriteMode
		json string
	}{
		{WriteNone, "false"},
		{WriteAll, "true"},
		{WriteOwn, `"own"`},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			data, err := json.Marshal(tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.json, string(data))

			var decoded WriteMode
			require.NoError(t, json.Unmarshal([]byte(tt.json), &decoded))
			assert.Equal(t, tt.mode, decoded)
		})
	}
}

func TestWriteModeUnmarshalInvalid(t *testing.T) {
	var w WriteMode
	assert.Error(t, json.Unmarshal([]byte(`"admin"`), &w))
	assert.Error(t, json.Unmarshal([]byte(`42`), &w))
}

func TestMatrixJSONRoundTrip(t *testing.T) {
	raw := `{"client":{"read":true,"write":"own","delete":false,"fields":{"ssn":false}}}`

	var matrix Matrix
	require.NoError(t, json.Unmarshal([]byte(raw), &matrix))

	perms := matrix["client"]
	assert.True(t, perms.Read)
	assert.Equal(t, WriteOwn, perms.Write)
	assert.False(t, perms.Delete)
	assert.Equal(t, map[string]bool{"ssn": false}, perms.Fields)

	encoded, err := json.Marshal(matrix)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(encoded))
}
