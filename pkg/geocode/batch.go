package geocode

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithWorkers bounds lookup concurrency. The default of 1 keeps lookups
// strictly sequential; higher values still share one rate limiter.
func WithWorkers(n int) BatchOption {
	return func(b *Batch) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithCache substitutes the cache, letting several batches share one.
func WithCache(c *Cache) BatchOption {
	return func(b *Batch) { b.cache = c }
}

// WithBatchLogger sets the logger.
func WithBatchLogger(l *zap.Logger) BatchOption {
	return func(b *Batch) { b.logger = l }
}

// Batch resolves address lists through a run-scoped cache, fanning cache
// misses out to the underlying client.
type Batch struct {
	client  Client
	cache   *Cache
	workers int
	logger  *zap.Logger
}

// NewBatch wraps a client with caching and bounded concurrency.
func NewBatch(client Client, opts ...BatchOption) *Batch {
	b := &Batch{
		client:  client,
		cache:   NewCache(),
		workers: 1,
		logger:  zap.L(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// GeocodeAll resolves every address in addrs, returning one result per
// distinct address string. Duplicates within the list and addresses seen
// by earlier batches are served from cache without a remote call. A hard
// lookup failure cancels the remaining workers and fails the batch.
func (b *Batch) GeocodeAll(ctx context.Context, addrs []string, city string) (map[string]*Result, error) {
	out := make(map[string]*Result, len(addrs))
	seen := make(map[string]struct{}, len(addrs))
	var misses []string
	for _, addr := range addrs {
		if addr == "" {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		if r, ok := b.cache.Get(addr); ok {
			out[addr] = r
		} else {
			misses = append(misses, addr)
		}
	}

	if len(misses) == 0 {
		return out, nil
	}

	b.logger.Info("geocoding addresses",
		zap.Int("unique", len(seen)),
		zap.Int("cached", len(seen)-len(misses)),
		zap.Int("lookups", len(misses)),
		zap.Int("workers", b.workers))

	results := make([]*Result, len(misses))
	var (
		mu   sync.Mutex
		done int
	)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(b.workers)
	for i, addr := range misses {
		i, addr := i, addr
		eg.Go(func() error {
			r, err := b.client.Geocode(gctx, addr, city)
			if err != nil {
				return err
			}
			results[i] = r

			mu.Lock()
			done++
			if done%10 == 0 {
				b.logger.Info("geocode progress",
					zap.Int("done", done),
					zap.Int("total", len(misses)))
			}
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for i, addr := range misses {
		b.cache.Put(addr, results[i])
		out[addr] = results[i]
	}
	return out, nil
}
