// Package catalog maps short dataset keys to Socrata resources on the
// datos.gov.co portal and runs complete ingests against them: paginated
// fetch, optional coordinate enrichment, raw snapshots.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/centrally/ingest-cli/internal/ingest"
	"github.com/centrally/ingest-cli/internal/model"
)

// defaultAddressColumn is geocoded when an entry names no address column.
const defaultAddressColumn = "direccion"

// Entry describes one known dataset on the portal. ResourceID is empty
// until an operator configures the real Socrata id; syncing an
// unconfigured entry fails.
type Entry struct {
	Key             string   `json:"key"`
	ResourceID      string   `json:"resource_id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	ExpectedColumns []string `json:"expected_columns,omitempty"`
	AddressColumn   string   `json:"address_column,omitempty"`
	LatColumn       string   `json:"lat_column,omitempty"`
	LonColumn       string   `json:"lon_column,omitempty"`
}

// Configured reports whether the entry has a resource id to sync from.
func (e Entry) Configured() bool { return e.ResourceID != "" }

// builtinEntries are the Medellín transport datasets the platform tracks.
// Resource ids are assigned per deployment, so they ship unconfigured.
func builtinEntries() []Entry {
	return []Entry{
		{
			Key:         "incidentes_transito",
			Name:        "Incidentes de tránsito",
			Description: "Incidentes de tránsito reportados en Medellín (datos.gov.co)",
			ExpectedColumns: []string{
				"id", "fecha_hora", "tipo_incidente", "gravedad",
				"descripcion", "direccion", "latitud", "longitud",
			},
			AddressColumn: "direccion",
		},
		{
			Key:         "accidentes_medellin",
			Name:        "Accidentes de tránsito - Medellín",
			Description: "Registro histórico de accidentes viales en Medellín (datos.gov.co)",
			ExpectedColumns: []string{
				"id", "fecha", "clase_accidente", "gravedad",
				"barrio", "comuna", "direccion", "latitud", "longitud",
			},
			AddressColumn: "direccion",
			LatColumn:     "latitud",
			LonColumn:     "longitud",
		},
	}
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithEnricher sets the coordinate enricher used when a sync asks for
// geocoding. Without one, geocoding requests are ignored with a warning.
func WithEnricher(e *ingest.Enricher) Option {
	return func(c *Catalog) { c.enricher = e }
}

// WithRawDir sets the directory snapshots are written under.
func WithRawDir(dir string) Option {
	return func(c *Catalog) { c.rawDir = dir }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

// WithClock injects the time source stamped onto snapshots and metadata.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

// Catalog composes the generic Socrata client with per-dataset
// configuration. It owns no transport behavior of its own.
type Catalog struct {
	socrata  *ingest.SocrataClient
	enricher *ingest.Enricher
	rawDir   string
	entries  map[string]Entry
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a Catalog over the given Socrata client, pre-populated with
// the built-in Medellín entries.
func New(socrata *ingest.SocrataClient, opts ...Option) *Catalog {
	c := &Catalog{
		socrata: socrata,
		rawDir:  "data/raw",
		entries: make(map[string]Entry),
		logger:  zap.L(),
		now:     time.Now,
	}
	for _, e := range builtinEntries() {
		c.entries[e.Key] = e
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns every entry sorted by key.
func (c *Catalog) List() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Get returns the entry for key.
func (c *Catalog) Get(key string) (Entry, error) {
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, eris.Errorf("catalog: unknown dataset %q (known: %s)", key, strings.Join(c.keys(), ", "))
	}
	return e, nil
}

// Configure registers a new entry or overrides an existing one. For an
// existing key, non-empty fields replace the stored values and empty
// fields keep them, so supplying just a resource id completes a built-in
// entry without restating its metadata.
func (c *Catalog) Configure(e Entry) error {
	if e.Key == "" {
		return eris.New("catalog: entry key is required")
	}
	cur, ok := c.entries[e.Key]
	if !ok {
		c.entries[e.Key] = e
		c.logger.Info("catalog: entry registered", zap.String("key", e.Key))
		return nil
	}
	if e.ResourceID != "" {
		cur.ResourceID = e.ResourceID
	}
	if e.Name != "" {
		cur.Name = e.Name
	}
	if e.Description != "" {
		cur.Description = e.Description
	}
	if len(e.ExpectedColumns) > 0 {
		cur.ExpectedColumns = e.ExpectedColumns
	}
	if e.AddressColumn != "" {
		cur.AddressColumn = e.AddressColumn
	}
	if e.LatColumn != "" {
		cur.LatColumn = e.LatColumn
	}
	if e.LonColumn != "" {
		cur.LonColumn = e.LonColumn
	}
	c.entries[e.Key] = cur
	c.logger.Info("catalog: entry updated", zap.String("key", e.Key))
	return nil
}

// SyncOptions tunes one Sync run.
type SyncOptions struct {
	Since      string // keep records with fecha on or after this date (YYYY-MM-DD)
	Geocode    bool   // resolve coordinates after fetching
	MaxRecords int    // 0 = all
	PageSize   int    // 0 = client default
}

// Sync ingests one catalog dataset end to end: fetch all pages, optionally
// resolve coordinates, finalize metadata, and write raw snapshots. An
// empty fetch returns the empty dataset without writing snapshots.
func (c *Catalog) Sync(ctx context.Context, key string, opts SyncOptions) (*model.Dataset, ingest.Snapshot, error) {
	entry, err := c.Get(key)
	if err != nil {
		return nil, ingest.Snapshot{}, err
	}
	if !entry.Configured() {
		return nil, ingest.Snapshot{}, eris.Errorf("catalog: dataset %q has no resource id configured; set one with catalog configure", key)
	}

	log := c.logger.With(zap.String("dataset", key), zap.String("resource", entry.ResourceID))

	where := ""
	if opts.Since != "" {
		where = fmt.Sprintf("fecha >= '%s'", opts.Since)
	}

	log.Info("catalog: sync started", zap.String("where", where))
	recs, cols, err := c.socrata.FetchAllPages(ctx, entry.ResourceID, ingest.PageOptions{
		PageSize:   opts.PageSize,
		MaxRecords: opts.MaxRecords,
		Where:      where,
	})
	if err != nil {
		return nil, ingest.Snapshot{}, eris.Wrapf(err, "catalog: sync %s", key)
	}

	ds := model.NewDataset(key)
	ds.AddColumns(cols...)
	for _, r := range recs {
		ds.Append(r)
	}

	if len(ds.Records) == 0 {
		log.Warn("catalog: sync returned no records, skipping snapshots")
		ds.Finalize(c.socrata.ResourceURL(entry.ResourceID), c.now())
		return ds, ingest.Snapshot{}, nil
	}

	if opts.Geocode {
		if c.enricher == nil {
			log.Warn("catalog: geocoding requested but no enricher configured")
		} else {
			addr := entry.AddressColumn
			if addr == "" {
				addr = defaultAddressColumn
			}
			if err := c.enricher.Enrich(ctx, ds, addr, entry.LatColumn, entry.LonColumn); err != nil {
				return nil, ingest.Snapshot{}, eris.Wrapf(err, "catalog: sync %s", key)
			}
		}
	}

	at := c.now()
	ds.Finalize(c.socrata.ResourceURL(entry.ResourceID), at)

	snap, err := ingest.WriteSnapshots(ds, c.rawDir, true, at)
	if err != nil {
		return nil, ingest.Snapshot{}, eris.Wrapf(err, "catalog: sync %s", key)
	}

	log.Info("catalog: sync completed",
		zap.Int("rows", len(ds.Records)),
		zap.Int("columns", len(ds.Columns)),
		zap.String("csv", snap.CSVPath),
	)
	return ds, snap, nil
}

func (c *Catalog) keys() []string {
	ks := make([]string, 0, len(c.entries))
	for k := range c.entries {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}
