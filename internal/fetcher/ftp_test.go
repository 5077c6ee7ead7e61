package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFTPURL(t *testing.T) {
	t.Parallel()

	assert.True(t, IsFTPURL("ftp://datos.gov.co/exports/incidentes.csv"))
	assert.False(t, IsFTPURL("https://datos.gov.co/exports/incidentes.csv"))
	assert.False(t, IsFTPURL("data/raw/incidentes.csv"))
	assert.False(t, IsFTPURL(""))
}

func TestParseFTPURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		url      string
		wantHost string
		wantPath string
	}{
		{
			name:     "default port",
			url:      "ftp://mirror.medellin.gov.co/raw/incidentes.csv",
			wantHost: "mirror.medellin.gov.co:21",
			wantPath: "/raw/incidentes.csv",
		},
		{
			name:     "explicit port kept",
			url:      "ftp://mirror.medellin.gov.co:2121/raw/incidentes.csv",
			wantHost: "mirror.medellin.gov.co:2121",
			wantPath: "/raw/incidentes.csv",
		},
		{
			name:     "nested path",
			url:      "ftp://host/a/b/c.xlsx",
			wantHost: "host:21",
			wantPath: "/a/b/c.xlsx",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			host, path, err := parseFTPURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestParseFTPURLRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, _, err := parseFTPURL("https://host/file.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected ftp scheme")

	_, _, err = parseFTPURL("ftp://host")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty path")
}
