package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopedLoggersAttachFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("warehouse-service", &buf)

	log.WithDocument("ISSUANCE", "GI-20250115-0001").WithActor("user-7").Info().Msg("issuance approved")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warehouse-service", entry["service"])
	assert.Equal(t, "ISSUANCE", entry["document_type"])
	assert.Equal(t, "GI-20250115-0001", entry["document_code"])
	assert.Equal(t, "user-7", entry["actor_id"])
	assert.Equal(t, "issuance approved", entry["message"])
}
