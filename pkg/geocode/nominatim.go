package geocode

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/centrally/ingest-cli/internal/fetcher"
)

const defaultInterval = 1100 * time.Millisecond

// Option configures a NominatimClient.
type Option func(*NominatimClient)

// WithBaseURL points the client at a different lookup endpoint.
func WithBaseURL(u string) Option {
	return func(c *NominatimClient) { c.baseURL = u }
}

// WithCountry changes the country appended to every query.
func WithCountry(country string) Option {
	return func(c *NominatimClient) { c.country = country }
}

// WithLimiter replaces the request pacer. All lookups share one limiter,
// so concurrent workers still hit the service at most once per interval.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *NominatimClient) { c.limiter = l }
}

// WithInterval sets the minimum spacing between requests.
func WithInterval(d time.Duration) Option {
	return func(c *NominatimClient) { c.limiter = rate.NewLimiter(rate.Every(d), 1) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *NominatimClient) { c.logger = l }
}

// NominatimClient looks addresses up against a Nominatim search endpoint.
type NominatimClient struct {
	fetch   *fetcher.Client
	baseURL string
	country string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewNominatim builds a client on top of the given fetcher. The default
// pacing of one request per 1.1 seconds honors the public Nominatim
// usage policy.
func NewNominatim(fetch *fetcher.Client, opts ...Option) *NominatimClient {
	c := &NominatimClient{
		fetch:   fetch,
		baseURL: "https://nominatim.openstreetmap.org",
		country: "Colombia",
		limiter: rate.NewLimiter(rate.Every(defaultInterval), 1),
		logger:  zap.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// nominatimHit is one candidate in the service response. Coordinates
// arrive as strings.
type nominatimHit struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode resolves one address, blocking on the shared limiter first.
// An empty candidate list yields Matched false with no error.
func (c *NominatimClient) Geocode(ctx context.Context, address, city string) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: waiting for rate limiter")
	}

	q := address
	if city != "" {
		q += ", " + city
	}
	if c.country != "" {
		q += ", " + c.country
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "json")
	params.Set("limit", "1")

	body, err := c.fetch.FetchJSON(ctx, c.baseURL+"/search", params, nil)
	if err != nil {
		return nil, &LookupError{Address: address, Err: err}
	}

	var hits []nominatimHit
	if err := json.Unmarshal(body, &hits); err != nil {
		return nil, &LookupError{Address: address, Err: eris.Wrap(err, "decoding response")}
	}
	if len(hits) == 0 {
		c.logger.Warn("no geocode match",
			zap.String("address", address),
			zap.String("city", city))
		return &Result{}, nil
	}

	lat, latErr := strconv.ParseFloat(hits[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(hits[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, &LookupError{Address: address, Err: eris.New("malformed coordinates in response")}
	}

	c.logger.Debug("geocoded address",
		zap.String("address", address),
		zap.Float64("lat", lat),
		zap.Float64("lon", lon))
	return &Result{Latitude: lat, Longitude: lon, Matched: true}, nil
}
