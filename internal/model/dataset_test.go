package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDatasetColumnOrder(t *testing.T) {
	t.Parallel()

	d := NewDataset("incidentes")
	d.AddColumns("fecha", "direccion")
	d.Append(Record{"fecha": "2026-01-10", "direccion": "Calle 10"})
	d.Append(Record{"fecha": "2026-01-11", "direccion": "Calle 11", "barrio": "Poblado"})

	assert.Equal(t, []string{"fecha", "direccion", "barrio"}, d.Columns)
	assert.True(t, d.HasColumn("barrio"))
	assert.False(t, d.HasColumn("comuna"))
}

func TestDatasetAppendSortsUnregisteredKeys(t *testing.T) {
	t.Parallel()

	d := NewDataset("x")
	d.Append(Record{"b": int64(1), "a": int64(2), "c": int64(3)})

	assert.Equal(t, []string{"a", "b", "c"}, d.Columns)
}

func TestDatasetClone(t *testing.T) {
	t.Parallel()

	d := NewDataset("orig")
	d.AddColumns("a")
	d.Append(Record{"a": "v"})

	c := d.Clone()
	c.Records[0]["a"] = "changed"
	c.AddColumns("b")

	assert.Equal(t, "v", d.Records[0]["a"])
	assert.Equal(t, []string{"a"}, d.Columns)
	assert.Equal(t, []string{"a", "b"}, c.Columns)
}

func TestDatasetFinalize(t *testing.T) {
	t.Parallel()

	d := NewDataset("trafico")
	d.AddColumns("id", "velocidad", "zona")
	d.Append(Record{"id": int64(1), "velocidad": 45.5, "zona": "norte"})
	d.Append(Record{"id": int64(2), "velocidad": nil, "zona": "sur"})

	at := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	d.Finalize("api:/trafico", at)

	assert.Equal(t, 2, d.Meta.Rows)
	assert.Equal(t, 3, d.Meta.Cols)
	assert.Equal(t, "api:/trafico", d.Meta.Source)
	assert.Equal(t, at, d.Meta.IngestedAt)
	assert.Equal(t, "int64", d.Meta.ColumnKinds["id"])
	assert.Equal(t, "float64", d.Meta.ColumnKinds["velocidad"])
	assert.Equal(t, "string", d.Meta.ColumnKinds["zona"])
	assert.Equal(t, 1, d.Meta.MissingValues["velocidad"])
	assert.Equal(t, 0, d.Meta.MissingValues["id"])
}

func TestIsMissing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, true},
		{"empty string", "", true},
		{"nan", math.NaN(), true},
		{"zero int", int64(0), false},
		{"zero float", 0.0, false},
		{"blank-ish string", " ", false},
		{"false", false, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsMissing(tt.v))
		})
	}
}

func TestFormatCell(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 17, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		v    any
		want string
	}{
		{"nil", nil, ""},
		{"string", "Calle 10", "Calle 10"},
		{"int", int64(42), "42"},
		{"float", 6.2442, "6.2442"},
		{"float no trailing zeros", 75.5, "75.5"},
		{"nan", math.NaN(), ""},
		{"bool", true, "true"},
		{"time", ts, "2026-01-17 08:30:00"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatCell(tt.v))
		})
	}
}

func TestCanonicalCSVRow(t *testing.T) {
	t.Parallel()

	fecha := time.Date(2026, 1, 15, 14, 30, 0, 0, time.UTC)
	row := CanonicalIncident{
		Fecha:         &fecha,
		TipoIncidente: "accidente",
		Gravedad:      "grave",
		Direccion:     "Calle 10 # 43-12",
		Latitud:       6.2442,
		Longitud:      -75.5812,
		Descripcion:   "Barrio: Poblado | Comuna: 14 | Condición: Peatón",
		FuenteDatos:   "CSV: Mede_Victimas_inci",
	}

	got := row.CSVRow()
	assert.Equal(t, []string{
		"2026-01-15 14:30:00",
		"accidente",
		"grave",
		"Calle 10 # 43-12",
		"6.2442",
		"-75.5812",
		"Barrio: Poblado | Comuna: 14 | Condición: Peatón",
		"CSV: Mede_Victimas_inci",
	}, got)
}

func TestCanonicalCSVRowNilFecha(t *testing.T) {
	t.Parallel()

	row := CanonicalIncident{TipoIncidente: "otro", Latitud: 6.1, Longitud: -75.6}
	got := row.CSVRow()
	assert.Equal(t, "", got[0])
	assert.Equal(t, "6.1", got[4])
}
