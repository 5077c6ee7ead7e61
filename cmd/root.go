package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/centrally/ingest-cli/internal/config"
	"github.com/centrally/ingest-cli/internal/fetcher"
	"github.com/centrally/ingest-cli/internal/ingest"
	"github.com/centrally/ingest-cli/internal/runlog"
	"github.com/centrally/ingest-cli/pkg/geocode"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "centrally-ingest",
	Short: "Ingestion pipeline for Medellín transport incident data",
	Long:  "Pulls incident datasets from local files, REST APIs, and the datos.gov.co portal; resolves coordinates; validates against declared schemas; writes raw snapshots and canonical artifacts.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newFetcher builds an HTTP fetcher from per-source settings.
func newFetcher(timeoutSecs, maxRetries int) *fetcher.Client {
	return fetcher.New(
		fetcher.WithTimeout(time.Duration(timeoutSecs)*time.Second),
		fetcher.WithMaxRetries(maxRetries),
	)
}

// openLedger opens the run ledger, creating its parent directory.
func openLedger() (*runlog.Ledger, error) {
	if dir := filepath.Dir(cfg.Ledger.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	return runlog.Open(cfg.Ledger.Path)
}

// newEnricher assembles the geocoding stack from config: rate-limited
// Nominatim client, run-scoped cache, bounded worker pool.
func newEnricher() *ingest.Enricher {
	geoFetch := fetcher.New(
		fetcher.WithTimeout(time.Duration(cfg.Geocoder.TimeoutSecs)*time.Second),
		fetcher.WithMaxRetries(cfg.Geocoder.MaxRetries),
		fetcher.WithUserAgent(cfg.Geocoder.UserAgent),
	)
	nom := geocode.NewNominatim(geoFetch,
		geocode.WithBaseURL(cfg.Geocoder.BaseURL),
		geocode.WithInterval(time.Duration(cfg.Geocoder.IntervalMS)*time.Millisecond),
	)
	batch := geocode.NewBatch(nom, geocode.WithWorkers(cfg.Geocoder.Workers))
	return ingest.NewEnricher(batch, cfg.Geocoder.City, zap.L())
}
