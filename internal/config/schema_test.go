package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSchema_ProducesValidJSONWithRootProperties(t *testing.T) {
	raw, err := JSONSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))

	defs, ok := doc["$defs"].(map[string]any)
	require.True(t, ok, "expected reflected schema to carry $defs for nested structs")
	_, hasConfig := defs["Config"]
	assert.True(t, hasConfig)
}

func TestJSONSchema_CachesResult(t *testing.T) {
	first, err := JSONSchema()
	require.NoError(t, err)
	second, err := JSONSchema()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
