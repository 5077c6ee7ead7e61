package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeWorkbook(t *testing.T) string {
	t.Helper()

	f := xlsx.NewFile()

	resumen, err := f.AddSheet("Resumen")
	require.NoError(t, err)
	row := resumen.AddRow()
	row.AddCell().SetString("titulo")
	row = resumen.AddRow()
	row.AddCell().SetString("no son datos")

	datos, err := f.AddSheet("Incidentes")
	require.NoError(t, err)
	header := datos.AddRow()
	header.AddCell().SetString("id")
	header.AddCell().SetString("gravedad")
	header.AddCell().SetString("latitud")

	r1 := datos.AddRow()
	r1.AddCell().SetValue(7)
	r1.AddCell().SetString("leve")
	r1.AddCell().SetString("6.25")

	r2 := datos.AddRow()
	r2.AddCell().SetValue(8)
	r2.AddCell().SetString("grave")

	path := filepath.Join(t.TempDir(), "incidentes.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSXFileByName(t *testing.T) {
	t.Parallel()

	ds, err := ReadXLSXFile(writeWorkbook(t), XLSXOptions{SheetName: "Incidentes"})
	require.NoError(t, err)

	assert.Equal(t, "incidentes", ds.Name)
	assert.Equal(t, []string{"id", "gravedad", "latitud"}, ds.Columns)
	require.Len(t, ds.Records, 2)
	assert.Equal(t, int64(7), ds.Records[0]["id"])
	assert.Equal(t, "leve", ds.Records[0]["gravedad"])
	assert.Equal(t, 6.25, ds.Records[0]["latitud"])
	assert.Nil(t, ds.Records[1]["latitud"], "short row pads with nil")
}

func TestReadXLSXFileByIndex(t *testing.T) {
	t.Parallel()

	ds, err := ReadXLSXFile(writeWorkbook(t), XLSXOptions{SheetIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "gravedad", "latitud"}, ds.Columns)

	// Default index 0 lands on the first sheet.
	ds, err = ReadXLSXFile(writeWorkbook(t), XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"titulo"}, ds.Columns)
}

func TestReadXLSXFileSheetErrors(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t)

	_, err := ReadXLSXFile(path, XLSXOptions{SheetName: "NoExiste"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "NoExiste" not found`)

	_, err = ReadXLSXFile(path, XLSXOptions{SheetIndex: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	_, err = ReadXLSXFile(filepath.Join(t.TempDir(), "missing.xlsx"), XLSXOptions{})
	require.Error(t, err)
}
