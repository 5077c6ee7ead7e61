package model

import (
	"strconv"
	"time"
)

// CanonicalColumns is the exact column order of the canonical incident
// artifact. The serving layer depends on this contract and nothing else.
var CanonicalColumns = []string{
	"fecha",
	"tipo_incidente",
	"gravedad",
	"direccion",
	"latitud",
	"longitud",
	"descripcion",
	"fuente_datos",
}

// CanonicalIncident is one normalized incident row. Fecha is nil when the
// raw date failed to parse; the row is still published.
type CanonicalIncident struct {
	Fecha         *time.Time `json:"fecha"`
	TipoIncidente string     `json:"tipo_incidente"`
	Gravedad      string     `json:"gravedad"`
	Direccion     string     `json:"direccion"`
	Latitud       float64    `json:"latitud"`
	Longitud      float64    `json:"longitud"`
	Descripcion   string     `json:"descripcion"`
	FuenteDatos   string     `json:"fuente_datos"`
}

// CSVRow renders the incident as CSV fields in CanonicalColumns order.
func (c CanonicalIncident) CSVRow() []string {
	fecha := ""
	if c.Fecha != nil {
		fecha = c.Fecha.Format("2006-01-02 15:04:05")
	}
	return []string{
		fecha,
		c.TipoIncidente,
		c.Gravedad,
		c.Direccion,
		strconv.FormatFloat(c.Latitud, 'f', -1, 64),
		strconv.FormatFloat(c.Longitud, 'f', -1, 64),
		c.Descripcion,
		c.FuenteDatos,
	}
}
