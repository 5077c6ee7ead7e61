package transform

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/centrally/ingest-cli/internal/ingest"
	"github.com/centrally/ingest-cli/internal/model"
)

// NormalizeDatetime parses the named columns into timestamps. Values
// that do not parse become null instead of failing, so the missing-value
// stage can deal with them. Columns absent from the dataset are skipped.
func (t *Transformer) NormalizeDatetime(ds *model.Dataset, columns []string) (*model.Dataset, error) {
	out := ds.Clone()
	for _, col := range columns {
		if !out.HasColumn(col) {
			t.logger.Debug("datetime column not present, skipping", zap.String("column", col))
			continue
		}
		parsed, nulled := normalizeColumnDatetime(out, col)
		t.logger.Info("normalized datetime column",
			zap.String("column", col),
			zap.Int("parsed", parsed),
			zap.Int("nulled", nulled))
	}
	t.record("normalize_datetime", len(ds.Records), len(out.Records))
	return out, nil
}

// normalizeColumnDatetime coerces one column to time values in place.
// Numbers and booleans cannot be timestamps here and null out.
func normalizeColumnDatetime(ds *model.Dataset, col string) (parsed, nulled int) {
	for _, rec := range ds.Records {
		switch v := rec[col].(type) {
		case time.Time, nil:
		case string:
			if ts, ok := ingest.ParseTimestamp(strings.TrimSpace(v)); ok {
				rec[col] = ts
				parsed++
			} else {
				rec[col] = nil
				nulled++
			}
		default:
			rec[col] = nil
			nulled++
		}
	}
	return parsed, nulled
}

// derivedTimeColumns lists the feature columns TimeFeatures appends, in
// output order.
var derivedTimeColumns = []string{
	"fecha", "hora", "dia_semana", "dia_mes", "mes",
	"mes_nombre", "trimestre", "anio", "es_fin_semana",
}

// TimeFeatures derives calendar features from one datetime column:
// date, hour, weekday name, day of month, month number, month name,
// quarter, year, and a weekend flag that is true exactly on Saturday
// and Sunday. The source column is coerced first; rows whose source
// value cannot be a timestamp get null features. A missing source
// column logs a warning and returns the dataset unchanged.
func (t *Transformer) TimeFeatures(ds *model.Dataset, datetimeCol string) (*model.Dataset, error) {
	before := len(ds.Records)
	if !ds.HasColumn(datetimeCol) {
		t.logger.Warn("datetime column not found, skipping time features",
			zap.String("column", datetimeCol))
		t.record("create_time_features", before, before)
		return ds.Clone(), nil
	}

	out := ds.Clone()
	normalizeColumnDatetime(out, datetimeCol)
	out.AddColumns(derivedTimeColumns...)

	for _, rec := range out.Records {
		ts, ok := rec[datetimeCol].(time.Time)
		if !ok {
			for _, col := range derivedTimeColumns {
				rec[col] = nil
			}
			continue
		}
		wd := ts.Weekday()
		rec["fecha"] = ts.Format("2006-01-02")
		rec["hora"] = int64(ts.Hour())
		rec["dia_semana"] = wd.String()
		rec["dia_mes"] = int64(ts.Day())
		rec["mes"] = int64(ts.Month())
		rec["mes_nombre"] = ts.Month().String()
		rec["trimestre"] = int64((int(ts.Month())-1)/3 + 1)
		rec["anio"] = int64(ts.Year())
		rec["es_fin_semana"] = wd == time.Saturday || wd == time.Sunday
	}

	t.logger.Info("created time features",
		zap.String("source", datetimeCol),
		zap.Int("features", len(derivedTimeColumns)))
	t.record("create_time_features", before, len(out.Records))
	return out, nil
}
