//go:build !integration

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"zona=centro", "estado=activo", "zona=norte"})
	require.NoError(t, err)
	assert.Equal(t, []string{"centro", "norte"}, params["zona"])
	assert.Equal(t, "activo", params.Get("estado"))
}

func TestParseParams_Malformed(t *testing.T) {
	_, err := parseParams([]string{"zona"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `malformed --param "zona"`)
}

func TestParseParams_Empty(t *testing.T) {
	params, err := parseParams(nil)
	require.NoError(t, err)
	assert.Empty(t, params)
}

func TestDatasetNameFromEndpoint(t *testing.T) {
	assert.Equal(t, "incidentes", datasetNameFromEndpoint("/api/v1/incidentes"))
	assert.Equal(t, "incidentes", datasetNameFromEndpoint("incidentes/"))
	assert.Equal(t, "sensores", datasetNameFromEndpoint("sensores"))
}
