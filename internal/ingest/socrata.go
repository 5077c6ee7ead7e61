package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/centrally/ingest-cli/internal/fetcher"
	"github.com/centrally/ingest-cli/internal/model"
)

// SocrataOption configures a SocrataClient.
type SocrataOption func(*SocrataClient)

// WithSocrataBaseURL sets the portal base URL.
func WithSocrataBaseURL(u string) SocrataOption {
	return func(c *SocrataClient) { c.baseURL = u }
}

// WithAppToken sets the X-App-Token header (raises the portal's rate limit).
func WithAppToken(token string) SocrataOption {
	return func(c *SocrataClient) { c.appToken = token }
}

// WithPageSize sets the default page size.
func WithPageSize(n int) SocrataOption {
	return func(c *SocrataClient) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithPageDelay sets the politeness delay between pages. Tests set it to 0.
func WithPageDelay(d time.Duration) SocrataOption {
	return func(c *SocrataClient) { c.pageDelay = d }
}

// WithSocrataLogger sets the logger.
func WithSocrataLogger(l *zap.Logger) SocrataOption {
	return func(c *SocrataClient) { c.logger = l }
}

// SocrataClient fetches Socrata resources page by page. Pagination is plain
// offset pagination: `$limit` and `$offset` plus an optional `$where` SoQL
// filter.
type SocrataClient struct {
	fetch     *fetcher.Client
	baseURL   string
	appToken  string
	pageSize  int
	pageDelay time.Duration
	logger    *zap.Logger
}

// NewSocrataClient creates a client over the given fetcher. Defaults:
// datos.gov.co portal, 10000-record pages, 500ms between pages.
func NewSocrataClient(fetch *fetcher.Client, opts ...SocrataOption) *SocrataClient {
	c := &SocrataClient{
		fetch:     fetch,
		baseURL:   "https://www.datos.gov.co",
		pageSize:  10000,
		pageDelay: 500 * time.Millisecond,
		logger:    zap.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PageOptions bounds one full paginated fetch.
type PageOptions struct {
	PageSize   int    // records per page; 0 uses the client default
	MaxRecords int    // 0 = unlimited
	Where      string // SoQL $where filter; empty = none
}

// ResourceURL returns the JSON endpoint for a resource on this portal.
func (c *SocrataClient) ResourceURL(resourceID string) string {
	return fmt.Sprintf("%s/resource/%s.json", c.baseURL, resourceID)
}

// FetchPage fetches a single page of records at the given offset.
func (c *SocrataClient) FetchPage(ctx context.Context, resourceID string, limit, offset int, where string) ([]model.Record, []string, error) {
	params := url.Values{}
	params.Set("$limit", strconv.Itoa(limit))
	params.Set("$offset", strconv.Itoa(offset))
	if where != "" {
		params.Set("$where", where)
	}

	header := http.Header{}
	if c.appToken != "" {
		header.Set("X-App-Token", c.appToken)
	}

	body, err := c.fetch.FetchJSON(ctx, c.ResourceURL(resourceID), params, header)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "socrata: fetch %s at offset %d", resourceID, offset)
	}

	recs, cols, _, err := DecodeRecords(body)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "socrata: decode %s at offset %d", resourceID, offset)
	}
	return recs, cols, nil
}

// FetchAllPages fetches every page of a resource. Termination is checked in
// a fixed order after each page: an empty page stops; reaching MaxRecords
// truncates to exactly MaxRecords and stops; a short page stops (the source
// is exhausted). The offset advances by the records actually received, so a
// short intermediate page never skips data. Returns the records in source
// order plus the column union in first-appearance order.
func (c *SocrataClient) FetchAllPages(ctx context.Context, resourceID string, opts PageOptions) ([]model.Record, []string, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = c.pageSize
	}

	log := c.logger.With(zap.String("resource", resourceID))

	var (
		all     []model.Record
		columns []string
		seen    = map[string]bool{}
		offset  int
	)
	for page := 1; ; page++ {
		recs, cols, err := c.FetchPage(ctx, resourceID, pageSize, offset, opts.Where)
		if err != nil {
			return nil, nil, err
		}

		if len(recs) == 0 {
			log.Info("socrata: empty page, source exhausted",
				zap.Int("page", page),
				zap.Int("total", len(all)),
			)
			break
		}

		all = append(all, recs...)
		for _, col := range cols {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
		offset += len(recs)

		if opts.MaxRecords > 0 && len(all) >= opts.MaxRecords {
			all = all[:opts.MaxRecords]
			log.Info("socrata: record limit reached",
				zap.Int("page", page),
				zap.Int("max_records", opts.MaxRecords),
			)
			break
		}

		if len(recs) < pageSize {
			log.Info("socrata: short page, source exhausted",
				zap.Int("page", page),
				zap.Int("total", len(all)),
			)
			break
		}

		log.Debug("socrata: page fetched",
			zap.Int("page", page),
			zap.Int("offset", offset),
		)
		if !sleepCtx(ctx, c.pageDelay) {
			return nil, nil, eris.Wrap(ctx.Err(), "socrata: cancelled between pages")
		}
	}

	return all, columns, nil
}

// sleepCtx sleeps d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
