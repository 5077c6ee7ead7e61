package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/centrally/ingest-cli/internal/model"
	"github.com/centrally/ingest-cli/pkg/geocode"
)

// Enricher resolves coordinates on an ingested dataset. Either way the
// result lands in literal `latitud`/`longitud` columns: when the dataset
// already carries coordinate columns their values are coerced to numbers
// and copied there, otherwise the address column is batch-geocoded.
// Geocoding cost is O(distinct addresses) and dominates runtime on large
// unique-address sets.
type Enricher struct {
	geo    *geocode.Batch
	city   string
	logger *zap.Logger
}

// NewEnricher creates an Enricher geocoding against the given city context.
func NewEnricher(geo *geocode.Batch, city string, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.L()
	}
	return &Enricher{geo: geo, city: city, logger: logger}
}

// Enrich mutates ds. Rows whose address is missing, or whose lookup found
// no match, end up with null coordinates; a hard lookup failure aborts.
func (e *Enricher) Enrich(ctx context.Context, ds *model.Dataset, addressCol, latCol, lonCol string) error {
	log := e.logger.With(zap.String("dataset", ds.Name))

	if latCol != "" && lonCol != "" && ds.HasColumn(latCol) && ds.HasColumn(lonCol) {
		ds.AddColumns("latitud", "longitud")
		coerced := 0
		for _, rec := range ds.Records {
			if f, ok := AsFloat(rec[latCol]); ok {
				rec["latitud"] = f
				coerced++
			} else {
				rec["latitud"] = nil
			}
			if f, ok := AsFloat(rec[lonCol]); ok {
				rec["longitud"] = f
			} else {
				rec["longitud"] = nil
			}
		}
		log.Info("enrich: coerced existing coordinate columns",
			zap.String("lat_column", latCol),
			zap.String("lon_column", lonCol),
			zap.Int("rows_with_latitude", coerced),
		)
		return nil
	}

	if addressCol == "" || !ds.HasColumn(addressCol) {
		log.Warn("enrich: no coordinate or address columns, leaving dataset as is",
			zap.String("address_column", addressCol),
		)
		return nil
	}

	addrs := make([]string, len(ds.Records))
	for i, rec := range ds.Records {
		if s, ok := rec[addressCol].(string); ok {
			addrs[i] = s
		}
	}

	unique := make([]string, 0, len(addrs))
	seen := map[string]bool{}
	for _, a := range addrs {
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		unique = append(unique, a)
	}

	results, err := e.geo.GeocodeAll(ctx, unique, e.city)
	if err != nil {
		return eris.Wrapf(err, "enrich: geocode %s", ds.Name)
	}

	ds.AddColumns("latitud", "longitud")
	matched := 0
	for i, rec := range ds.Records {
		r := results[addrs[i]]
		if r != nil && r.Matched {
			rec["latitud"] = r.Latitude
			rec["longitud"] = r.Longitude
			matched++
		} else {
			rec["latitud"] = nil
			rec["longitud"] = nil
		}
	}

	log.Info("enrich: geocoded address column",
		zap.String("address_column", addressCol),
		zap.Int("unique_addresses", len(unique)),
		zap.Int("rows_matched", matched),
	)
	return nil
}
