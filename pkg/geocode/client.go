// Package geocode resolves street addresses to coordinates through a
// Nominatim-style lookup service, with run-scoped caching and strict
// rate limiting so batch jobs stay inside the service's usage policy.
package geocode

import (
	"context"
	"fmt"
)

// Result is one resolved lookup. Matched is false when the service had
// no candidate for the address; that is a normal outcome, not an error.
type Result struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Matched   bool    `json:"matched"`
}

// LookupError is a hard geocoding failure: the transport gave up after
// its retry budget, or the service answered with something unusable.
// Address-not-found is soft and reported through Result instead.
type LookupError struct {
	Address string
	Err     error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("geocode: lookup %q: %v", e.Address, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Client resolves a single address within a city context.
type Client interface {
	Geocode(ctx context.Context, address, city string) (*Result, error)
}
