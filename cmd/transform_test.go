//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centrally/ingest-cli/internal/transform"
)

func TestParseBinSpec(t *testing.T) {
	col, bins, labels, target, err := parseBinSpec("velocidad_promedio:0,20,40,200:bajo,medio,alto")
	require.NoError(t, err)
	assert.Equal(t, "velocidad_promedio", col)
	assert.Equal(t, []float64{0, 20, 40, 200}, bins)
	assert.Equal(t, []string{"bajo", "medio", "alto"}, labels)
	assert.Empty(t, target)
}

func TestParseBinSpec_Target(t *testing.T) {
	col, bins, labels, target, err := parseBinSpec("edad:0,18,65,120:menor,adulto,mayor:rango_edad")
	require.NoError(t, err)
	assert.Equal(t, "edad", col)
	assert.Len(t, bins, 4)
	assert.Len(t, labels, 3)
	assert.Equal(t, "rango_edad", target)
}

func TestParseBinSpec_Malformed(t *testing.T) {
	_, _, _, _, err := parseBinSpec("velocidad")
	assert.Error(t, err)

	_, _, _, _, err = parseBinSpec("velocidad:0,veinte,40:bajo,alto")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a number")

	_, _, _, _, err = parseBinSpec("a:1,2:x:y:z")
	assert.Error(t, err)
}

func TestPrintStepLog(t *testing.T) {
	steps := []transform.StepLog{
		{Step: "clean_data", Timestamp: time.Now(), RowsBefore: 10, RowsAfter: 8},
		{Step: "handle_missing_values", Timestamp: time.Now(), RowsBefore: 8, RowsAfter: 6},
	}

	var buf bytes.Buffer
	printStepLog(&buf, steps)

	output := buf.String()
	assert.Contains(t, output, "STEP")
	assert.Contains(t, output, "clean_data")
	assert.Contains(t, output, "handle_missing_values")
	cleanIdx := bytes.Index(buf.Bytes(), []byte("clean_data"))
	missingIdx := bytes.Index(buf.Bytes(), []byte("handle_missing_values"))
	assert.Less(t, cleanIdx, missingIdx, "steps print in execution order")
}
