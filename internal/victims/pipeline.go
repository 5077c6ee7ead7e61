// Package victims processes the Mede_Victimas_inci government export
// into the canonical incident artifact the dashboard layer reads. The
// pipeline is fixed: clean coordinates, keep only rows inside the
// Medellín bounding box, parse dates, project to the canonical shape,
// and fully overwrite the published CSV.
package victims

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/centrally/ingest-cli/internal/ingest"
	"github.com/centrally/ingest-cli/internal/model"
)

// Raw column names of the government export. All of them must be
// present; the pipeline refuses files with a different shape.
const (
	colLatitud   = "Latitud"
	colLongitud  = "Longitud"
	colFecha     = "Fecha_incidente"
	colClase     = "Clase_incidente"
	colGravedad  = "Gravedad_victima"
	colDireccion = "Direccion_incidente"
	colBarrio    = "Barrio"
	colComuna    = "Comuna"
	colCondicion = "Condicion"
)

var requiredColumns = []string{
	colLatitud, colLongitud, colFecha, colClase,
	colGravedad, colDireccion, colBarrio, colComuna, colCondicion,
}

// sourceLabel marks every canonical row with its provenance.
const sourceLabel = "CSV: Mede_Victimas_inci"

// DefaultOutputPath is where the canonical artifact is published.
const DefaultOutputPath = "data/raw/victimas_procesado.csv"

// medellinBounds is the fixed city bounding box, minX/minY then
// maxX/maxY with X as longitude. Rows outside it are dropped outright,
// never geocoded or repaired.
var medellinBounds = geom.NewBounds(geom.XY).Set(-75.8, 6.0, -75.3, 6.5)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOutput overrides the published artifact path.
func WithOutput(path string) Option {
	return func(p *Pipeline) { p.outputPath = path }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// Pipeline is the victims-export processor.
type Pipeline struct {
	outputPath string
	logger     *zap.Logger
}

// New returns a Pipeline publishing to DefaultOutputPath.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{outputPath: DefaultOutputPath, logger: zap.L()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Summary reports what one run did.
type Summary struct {
	RowsRead    int
	RowsKept    int
	RowsDropped int
	NullDates   int
	OutputPath  string
}

// Run processes the raw export at path and overwrites the canonical
// artifact. Reruns on identical input produce byte-identical output.
func (p *Pipeline) Run(path string) (*Summary, error) {
	p.logger.Info("processing victims export", zap.String("path", path))

	ds, err := ingest.ReadCSVFile(path, ingest.CSVOptions{})
	if err != nil {
		return nil, err
	}
	p.logger.Info("raw rows read", zap.Int("rows", len(ds.Records)))

	if missing := missingColumns(ds); len(missing) > 0 {
		return nil, eris.Errorf("victims: %s is missing required columns: %s",
			path, strings.Join(missing, ", "))
	}

	incidents, summary := p.project(ds)
	summary.OutputPath = p.outputPath

	if err := p.publish(incidents); err != nil {
		return nil, err
	}

	p.logger.Info("victims artifact published",
		zap.String("path", p.outputPath),
		zap.Int("rows_read", summary.RowsRead),
		zap.Int("rows_kept", summary.RowsKept),
		zap.Int("rows_dropped", summary.RowsDropped),
		zap.Int("null_dates", summary.NullDates))
	return summary, nil
}

func missingColumns(ds *model.Dataset) []string {
	var missing []string
	for _, col := range requiredColumns {
		if !ds.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	return missing
}

// project cleans, filters and maps raw rows into canonical incidents.
func (p *Pipeline) project(ds *model.Dataset) ([]model.CanonicalIncident, *Summary) {
	summary := &Summary{RowsRead: len(ds.Records)}
	incidents := make([]model.CanonicalIncident, 0, len(ds.Records))

	for _, rec := range ds.Records {
		lat, okLat := CleanCoordinate(rec[colLatitud])
		lon, okLon := CleanCoordinate(rec[colLongitud])
		if !okLat || !okLon || !medellinBounds.OverlapsPoint(geom.XY, geom.Coord{lon, lat}) {
			summary.RowsDropped++
			continue
		}

		var fecha *time.Time
		if ts, ok := ingest.ParseTimestamp(cellString(rec[colFecha])); ok {
			fecha = &ts
		} else {
			// Unparsable dates stay null; the row is still published.
			summary.NullDates++
		}

		incidents = append(incidents, model.CanonicalIncident{
			Fecha:         fecha,
			TipoIncidente: cellString(rec[colClase]),
			Gravedad:      cellString(rec[colGravedad]),
			Direccion:     cellString(rec[colDireccion]),
			Latitud:       lat,
			Longitud:      lon,
			Descripcion: fmt.Sprintf("Barrio: %s | Comuna: %s | Condición: %s",
				cellString(rec[colBarrio]),
				cellString(rec[colComuna]),
				cellString(rec[colCondicion])),
			FuenteDatos: sourceLabel,
		})
		summary.RowsKept++
	}

	p.logger.Info("coordinates cleaned and filtered",
		zap.Int("kept", summary.RowsKept),
		zap.Int("dropped", summary.RowsDropped))
	return incidents, summary
}

// publish fully overwrites the canonical artifact.
func (p *Pipeline) publish(incidents []model.CanonicalIncident) error {
	if dir := filepath.Dir(p.outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "victims: creating %s", dir)
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(model.CanonicalColumns); err != nil {
		return eris.Wrap(err, "victims: writing header")
	}
	for _, inc := range incidents {
		if err := w.Write(inc.CSVRow()); err != nil {
			return eris.Wrap(err, "victims: writing row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "victims: flushing csv")
	}

	if err := os.WriteFile(p.outputPath, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "victims: writing %s", p.outputPath)
	}
	return nil
}

// CleanCoordinate coerces a raw coordinate cell to a float. Comma
// decimal separators are accepted alongside points; anything that still
// fails to parse, including empty cells, yields false.
func CleanCoordinate(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		if math.IsNaN(t) {
			return 0, false
		}
		return t, true
	case int64:
		return float64(t), true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", "."))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func cellString(v any) string {
	return model.FormatCell(v)
}
