package geocode

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	mu      sync.Mutex
	calls   []string
	results map[string]*Result
	fail    map[string]error
}

func (f *fakeClient) Geocode(ctx context.Context, address, city string) (*Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, address)
	f.mu.Unlock()

	if err, ok := f.fail[address]; ok {
		return nil, err
	}
	if r, ok := f.results[address]; ok {
		return r, nil
	}
	return &Result{}, nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestGeocodeAllDeduplicates(t *testing.T) {
	t.Parallel()

	fake := &fakeClient{results: map[string]*Result{
		"Calle 10": {Latitude: 6.2, Longitude: -75.5, Matched: true},
		"Calle 20": {Latitude: 6.3, Longitude: -75.6, Matched: true},
	}}
	b := NewBatch(fake, WithBatchLogger(zap.NewNop()))

	out, err := b.GeocodeAll(context.Background(),
		[]string{"Calle 10", "Calle 20", "Calle 10", "Calle 10"}, "Medellín")
	require.NoError(t, err)

	assert.Equal(t, 2, fake.callCount())
	require.Len(t, out, 2)
	assert.True(t, out["Calle 10"].Matched)
	assert.InDelta(t, 6.3, out["Calle 20"].Latitude, 1e-9)
}

func TestGeocodeAllServesRepeatsFromCache(t *testing.T) {
	t.Parallel()

	fake := &fakeClient{results: map[string]*Result{
		"Carrera 43": {Latitude: 6.21, Longitude: -75.57, Matched: true},
	}}
	b := NewBatch(fake, WithBatchLogger(zap.NewNop()))

	_, err := b.GeocodeAll(context.Background(), []string{"Carrera 43", "Sin Nombre"}, "Medellín")
	require.NoError(t, err)
	require.Equal(t, 2, fake.callCount())

	// Second run hits only the cache, even for the address that had no
	// match the first time.
	out, err := b.GeocodeAll(context.Background(), []string{"Carrera 43", "Sin Nombre"}, "Medellín")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.callCount())
	assert.True(t, out["Carrera 43"].Matched)
	assert.False(t, out["Sin Nombre"].Matched)
}

func TestGeocodeAllSkipsEmptyAddresses(t *testing.T) {
	t.Parallel()

	fake := &fakeClient{}
	b := NewBatch(fake, WithBatchLogger(zap.NewNop()))

	out, err := b.GeocodeAll(context.Background(), []string{"", "", "Calle 1"}, "Medellín")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.callCount())
	assert.Len(t, out, 1)
}

func TestGeocodeAllPropagatesHardFailure(t *testing.T) {
	t.Parallel()

	lookupErr := &LookupError{Address: "Calle 2", Err: errors.New("boom")}
	fake := &fakeClient{fail: map[string]error{"Calle 2": lookupErr}}
	b := NewBatch(fake, WithBatchLogger(zap.NewNop()))

	_, err := b.GeocodeAll(context.Background(), []string{"Calle 1", "Calle 2"}, "Medellín")
	require.Error(t, err)

	var le *LookupError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "Calle 2", le.Address)

	// The failed lookup must not be cached.
	_, ok := b.cache.Get("Calle 2")
	assert.False(t, ok)
}

func TestGeocodeAllSharedCache(t *testing.T) {
	t.Parallel()

	shared := NewCache()
	shared.Put("Calle 5", &Result{Latitude: 1, Longitude: 2, Matched: true})

	fake := &fakeClient{}
	b := NewBatch(fake, WithCache(shared), WithBatchLogger(zap.NewNop()))

	out, err := b.GeocodeAll(context.Background(), []string{"Calle 5"}, "Medellín")
	require.NoError(t, err)
	assert.Equal(t, 0, fake.callCount())
	assert.True(t, out["Calle 5"].Matched)
}

func TestGeocodeAllConcurrentWorkers(t *testing.T) {
	t.Parallel()

	fake := &fakeClient{results: map[string]*Result{}}
	addrs := make([]string, 25)
	for i := range addrs {
		addrs[i] = string(rune('A'+i)) + " street"
	}
	b := NewBatch(fake, WithWorkers(4), WithBatchLogger(zap.NewNop()))

	out, err := b.GeocodeAll(context.Background(), addrs, "Medellín")
	require.NoError(t, err)
	assert.Equal(t, len(addrs), fake.callCount())
	assert.Len(t, out, len(addrs))
}
