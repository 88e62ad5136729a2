package jsoncodec

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	SchemaRef string          `json:"$schemaRef"`
	Message   json.RawMessage `json:"message"`
}

func TestUnmarshalKeepsRawMessage(t *testing.T) {
	var env envelope
	require.NoError(t, Unmarshal([]byte(`{"$schemaRef":"ref","message":{"event":"Scan"}}`), &env))

	assert.Equal(t, "ref", env.SchemaRef)
	assert.JSONEq(t, `{"event":"Scan"}`, string(env.Message))
}

func TestEncodeAndValid(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, map[string]string{"status": "healthy"}))

	assert.JSONEq(t, `{"status":"healthy"}`, buf.String())
	assert.True(t, Valid(buf.Bytes()))
	assert.False(t, Valid([]byte(`{"status":`)))
}
