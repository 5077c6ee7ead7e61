package ingest

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centrally/ingest-cli/internal/model"
)

var snapshotClock = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func snapshotDataset() *model.Dataset {
	ds := model.NewDataset("incidentes_transito")
	ds.AddColumns("id", "nombre", "valor")
	ds.Append(model.Record{"id": int64(1), "nombre": "Avenida El Poblado <puente>", "valor": 6.5})
	ds.Append(model.Record{"id": int64(2), "nombre": nil, "valor": math.NaN()})
	return ds
}

func TestWriteSnapshotsNamesAndJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	snap, err := WriteSnapshots(snapshotDataset(), dir, false, snapshotClock)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "incidentes_transito_20260314_092653.json"), snap.JSONPath)
	assert.Equal(t, filepath.Join(dir, "incidentes_transito_20260314_092653.csv"), snap.CSVPath)

	got, err := os.ReadFile(snap.JSONPath)
	require.NoError(t, err)

	want := `[
  {
    "id": 1,
    "nombre": "Avenida El Poblado <puente>",
    "valor": 6.5
  },
  {
    "id": 2,
    "nombre": null,
    "valor": null
  }
]`
	assert.Equal(t, want, string(got), "column order kept, missing cells null, no html escaping")
}

func TestWriteSnapshotsCSVWithBOM(t *testing.T) {
	t.Parallel()

	snap, err := WriteSnapshots(snapshotDataset(), t.TempDir(), true, snapshotClock)
	require.NoError(t, err)

	got, err := os.ReadFile(snap.CSVPath)
	require.NoError(t, err)

	want := "\xef\xbb\xbf" + "id,nombre,valor\n1,Avenida El Poblado <puente>,6.5\n2,,\n"
	assert.Equal(t, want, string(got))
}

func TestWriteSnapshotsCSVWithoutBOM(t *testing.T) {
	t.Parallel()

	snap, err := WriteSnapshots(snapshotDataset(), t.TempDir(), false, snapshotClock)
	require.NoError(t, err)

	got, err := os.ReadFile(snap.CSVPath)
	require.NoError(t, err)
	assert.Equal(t, "id,nombre,valor\n1,Avenida El Poblado <puente>,6.5\n2,,\n", string(got))
}

func TestWriteSnapshotsTimestampCells(t *testing.T) {
	t.Parallel()

	ds := model.NewDataset("fechas")
	ds.AddColumns("fecha")
	ds.Append(model.Record{"fecha": time.Date(2026, 7, 15, 8, 30, 0, 0, time.UTC)})

	snap, err := WriteSnapshots(ds, t.TempDir(), false, snapshotClock)
	require.NoError(t, err)

	csvBytes, err := os.ReadFile(snap.CSVPath)
	require.NoError(t, err)
	assert.Equal(t, "fecha\n2026-07-15 08:30:00\n", string(csvBytes))

	jsonBytes, err := os.ReadFile(snap.JSONPath)
	require.NoError(t, err)
	assert.Contains(t, string(jsonBytes), "2026-07-15T08:30:00Z")
}

func TestWriteSnapshotsEmptyDataset(t *testing.T) {
	t.Parallel()

	ds := model.NewDataset("vacio")
	ds.AddColumns("id")

	snap, err := WriteSnapshots(ds, t.TempDir(), true, snapshotClock)
	require.NoError(t, err)

	jsonBytes, err := os.ReadFile(snap.JSONPath)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(jsonBytes))

	csvBytes, err := os.ReadFile(snap.CSVPath)
	require.NoError(t, err)
	assert.Equal(t, "\xef\xbb\xbf"+"id\n", string(csvBytes))
}

func TestWriteCSVFileCreatesParents(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "processed", "sub", "limpio.csv")
	require.NoError(t, WriteCSVFile(snapshotDataset(), path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,nombre,valor\n1,Avenida El Poblado <puente>,6.5\n2,,\n", string(got))
}
