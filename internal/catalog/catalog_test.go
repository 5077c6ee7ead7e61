package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/centrally/ingest-cli/internal/fetcher"
	"github.com/centrally/ingest-cli/internal/ingest"
	"github.com/centrally/ingest-cli/pkg/geocode"
)

func newTestCatalog(t *testing.T, serverURL string, opts ...Option) *Catalog {
	t.Helper()
	fc := fetcher.New(
		fetcher.WithTimeout(2*time.Second),
		fetcher.WithMaxRetries(1),
		fetcher.WithLogger(zap.NewNop()),
	)
	sc := ingest.NewSocrataClient(fc,
		ingest.WithSocrataBaseURL(serverURL),
		ingest.WithPageDelay(0),
		ingest.WithSocrataLogger(zap.NewNop()),
	)
	base := []Option{
		WithRawDir(t.TempDir()),
		WithLogger(zap.NewNop()),
		WithClock(func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) }),
	}
	return New(sc, append(base, opts...)...)
}

// stubGeocoder resolves every address to a fixed point.
type stubGeocoder struct{ calls int }

func (s *stubGeocoder) Geocode(ctx context.Context, address, city string) (*geocode.Result, error) {
	s.calls++
	return &geocode.Result{Latitude: 6.25, Longitude: -75.56, Matched: true}, nil
}

func TestBuiltinEntriesUnconfigured(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t, "http://unused.invalid")
	entries := c.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "accidentes_medellin", entries[0].Key)
	assert.Equal(t, "incidentes_transito", entries[1].Key)
	for _, e := range entries {
		assert.False(t, e.Configured(), "builtin %s should ship without a resource id", e.Key)
	}

	_, _, err := c.Sync(context.Background(), "incidentes_transito", SyncOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no resource id configured")
}

func TestGetUnknownListsKnownKeys(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t, "http://unused.invalid")
	_, err := c.Get("clima")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown dataset "clima"`)
	assert.Contains(t, err.Error(), "accidentes_medellin, incidentes_transito")
}

func TestConfigureMergesIntoBuiltin(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t, "http://unused.invalid")
	require.NoError(t, c.Configure(Entry{Key: "incidentes_transito", ResourceID: "abcd-1234"}))

	e, err := c.Get("incidentes_transito")
	require.NoError(t, err)
	assert.True(t, e.Configured())
	assert.Equal(t, "abcd-1234", e.ResourceID)
	assert.Equal(t, "Incidentes de tránsito", e.Name, "merge should keep builtin metadata")
	assert.Equal(t, "direccion", e.AddressColumn)
}

func TestConfigureRegistersNewEntry(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t, "http://unused.invalid")
	require.Error(t, c.Configure(Entry{ResourceID: "xxxx-yyyy"}), "key is required")

	require.NoError(t, c.Configure(Entry{Key: "camaras_fotodeteccion", ResourceID: "qqqq-wwww", Name: "Cámaras"}))
	entries := c.List()
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"accidentes_medellin", "camaras_fotodeteccion", "incidentes_transito"},
		[]string{entries[0].Key, entries[1].Key, entries[2].Key})
}

func TestSyncFetchesFiltersAndSnapshots(t *testing.T) {
	t.Parallel()

	var gotWhere []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/resource/abcd-1234"), "unexpected path %s", r.URL.Path)
		gotWhere = append(gotWhere, r.URL.Query().Get("$where"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("$offset") != "0" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[
			{"id": "1", "fecha": "2026-02-01", "direccion": "Calle 10 # 43-12", "gravedad": "leve"},
			{"id": "2", "fecha": "2026-02-02", "direccion": "Carrera 80 # 30-15", "gravedad": "grave"}
		]`))
	}))
	defer srv.Close()

	rawDir := t.TempDir()
	c := newTestCatalog(t, srv.URL, WithRawDir(rawDir))
	require.NoError(t, c.Configure(Entry{Key: "incidentes_transito", ResourceID: "abcd-1234"}))

	ds, snap, err := c.Sync(context.Background(), "incidentes_transito", SyncOptions{Since: "2026-02-01", PageSize: 2})
	require.NoError(t, err)

	require.Len(t, ds.Records, 2)
	assert.Equal(t, "incidentes_transito", ds.Name)
	assert.Equal(t, 2, ds.Meta.Rows)
	assert.Contains(t, ds.Meta.Source, "/resource/abcd-1234.json")
	for _, w := range gotWhere {
		assert.Equal(t, `fecha >= '2026-02-01'`, w)
	}

	assert.Equal(t, filepath.Join(rawDir, "incidentes_transito_20260314_092653.json"), snap.JSONPath)
	assert.Equal(t, filepath.Join(rawDir, "incidentes_transito_20260314_092653.csv"), snap.CSVPath)

	csvBytes, err := os.ReadFile(snap.CSVPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(csvBytes), "\xef\xbb\xbf"), "portal csv snapshots carry a UTF-8 BOM")

	jsonBytes, err := os.ReadFile(snap.JSONPath)
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(jsonBytes, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "Calle 10 # 43-12", rows[0]["direccion"])
}

func TestSyncGeocodesAddressColumn(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("$offset") != "0" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[
			{"id": "1", "direccion": "Calle 10 # 43-12"},
			{"id": "2", "direccion": "Calle 10 # 43-12"}
		]`))
	}))
	defer srv.Close()

	stub := &stubGeocoder{}
	enricher := ingest.NewEnricher(geocode.NewBatch(stub, geocode.WithBatchLogger(zap.NewNop())), "Medellín", zap.NewNop())
	c := newTestCatalog(t, srv.URL, WithEnricher(enricher))
	require.NoError(t, c.Configure(Entry{Key: "incidentes_transito", ResourceID: "abcd-1234"}))

	ds, _, err := c.Sync(context.Background(), "incidentes_transito", SyncOptions{Geocode: true, PageSize: 10})
	require.NoError(t, err)

	assert.Equal(t, 1, stub.calls, "duplicate addresses resolve through the cache")
	require.True(t, ds.HasColumn("latitud"))
	require.True(t, ds.HasColumn("longitud"))
	for _, rec := range ds.Records {
		assert.Equal(t, 6.25, rec["latitud"])
		assert.Equal(t, -75.56, rec["longitud"])
	}
}

func TestSyncEmptyResultSkipsSnapshots(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	rawDir := t.TempDir()
	c := newTestCatalog(t, srv.URL, WithRawDir(rawDir))
	require.NoError(t, c.Configure(Entry{Key: "accidentes_medellin", ResourceID: "zzzz-9999"}))

	ds, snap, err := c.Sync(context.Background(), "accidentes_medellin", SyncOptions{})
	require.NoError(t, err)
	assert.Empty(t, ds.Records)
	assert.Empty(t, snap.JSONPath)
	assert.Empty(t, snap.CSVPath)

	files, err := os.ReadDir(rawDir)
	require.NoError(t, err)
	assert.Empty(t, files, "no snapshot files for an empty sync")
}
