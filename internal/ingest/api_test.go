package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/centrally/ingest-cli/internal/fetcher"
)

func newTestAPIIngestor(baseURL string, opts ...APIOption) *APIIngestor {
	f := fetcher.New(fetcher.WithMaxRetries(1), fetcher.WithLogger(zap.NewNop()))
	opts = append(opts, WithAPILogger(zap.NewNop()))
	return NewAPIIngestor(f, baseURL, opts...)
}

func TestAPIFetchBuildsDataset(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"results": [{"id": 1, "zona": "centro"}, {"id": 2, "zona": "norte"}]}`))
	}))
	defer srv.Close()

	ing := newTestAPIIngestor(srv.URL+"/", WithAPIKey("clave-123"))
	ds, shape, err := ing.Fetch(context.Background(), "/api/v1/incidentes", "incidentes", nil)
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/incidentes", gotPath)
	assert.Equal(t, "Bearer clave-123", gotAuth)
	assert.Equal(t, ShapeResults, shape)
	assert.Equal(t, "incidentes", ds.Name)
	assert.Equal(t, []string{"id", "zona"}, ds.Columns)
	require.Len(t, ds.Records, 2)
	assert.Equal(t, int64(2), ds.Records[1]["id"])
	assert.Equal(t, "norte", ds.Records[1]["zona"])
}

func TestAPIFetchWithoutKeySendsNoAuth(t *testing.T) {
	sawAuth := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			sawAuth = true
		}
		w.Write([]byte(`[{"id": 1}]`))
	}))
	defer srv.Close()

	ing := newTestAPIIngestor(srv.URL)
	ds, shape, err := ing.Fetch(context.Background(), "sensores", "sensores", nil)
	require.NoError(t, err)

	assert.False(t, sawAuth)
	assert.Equal(t, ShapeList, shape)
	require.Len(t, ds.Records, 1)
}

func TestAPIFetchDecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	ing := newTestAPIIngestor(srv.URL)
	_, _, err := ing.Fetch(context.Background(), "/roto", "roto", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api: decode /roto")
}

func TestAPIFetchNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ing := newTestAPIIngestor(srv.URL)
	_, _, err := ing.Fetch(context.Background(), "/caido", "caido", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api: fetch /caido")

	var nerr *fetcher.NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, http.StatusBadGateway, nerr.StatusCode)
}
