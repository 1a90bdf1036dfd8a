package rates

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCache struct {
	data   map[string][]byte
	getErr error
	setErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw
	return nil
}

func (f *fakeCache) Get(_ context.Context, key string, dest interface{}) error {
	if f.getErr != nil {
		return f.getErr
	}
	raw, ok := f.data[key]
	if !ok {
		return redis.Nil
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCache) Del(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}

func (f *fakeCache) Ping(_ context.Context) error { return nil }
func (f *fakeCache) Close() error                 { return nil }
func (f *fakeCache) Client() *redis.Client        { return nil }

func chartBody(price string) string {
	return `{"chart":{"result":[{"meta":{"regularMarketPrice":` + price + `}}],"error":null}}`
}

func TestRefreshFetchesAndCaches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(chartBody("3.42")))
	}))
	defer server.Close()

	cache := newFakeCache()
	provider := NewProvider(server.URL, time.Minute, cache, zap.NewNop())

	quote, err := provider.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, quote.Price.Equal(decimal.RequireFromString("3.42")), "got %s", quote.Price)
	assert.Contains(t, cache.data, quoteCacheKey)
}

func TestCurrentPrefersCache(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Write([]byte(chartBody("1.00")))
	}))
	defer server.Close()

	cache := newFakeCache()
	provider := NewProvider(server.URL, time.Minute, cache, zap.NewNop())

	require.NoError(t, cache.Set(context.Background(), quoteCacheKey, &Quote{
		Price:     decimal.RequireFromString("2.5"),
		FetchedAt: time.Now().UTC(),
	}, time.Minute))

	price, err := provider.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, 0, hits, "a cache hit must not reach the upstream")
}

func TestCurrentServesStaleOnUpstreamFailure(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(chartBody("4.2")))
	}))
	defer server.Close()

	cache := newFakeCache()
	provider := NewProvider(server.URL, time.Minute, cache, zap.NewNop())

	price, err := provider.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("4.2")))

	// Upstream dies and the cache entry is gone: the in-process quote
	// carries the pass.
	healthy = false
	delete(cache.data, quoteCacheKey)

	price, err = provider.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("4.2")))
}

func TestCurrentFailsWithNoRateAtAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider := NewProvider(server.URL, time.Minute, newFakeCache(), zap.NewNop())

	_, err := provider.Current(context.Background())
	assert.Error(t, err)
}

func TestRefreshToleratesDeadCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(chartBody("0.99")))
	}))
	defer server.Close()

	cache := newFakeCache()
	cache.setErr = errors.New("redis down")
	provider := NewProvider(server.URL, time.Minute, cache, zap.NewNop())

	quote, err := provider.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, quote.Price.Equal(decimal.RequireFromString("0.99")))
}

func TestParseChartPrice(t *testing.T) {
	price, err := parseChartPrice([]byte(chartBody("1.2345")))
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("1.2345")))

	_, err = parseChartPrice([]byte(`{"chart":{"result":[],"error":null}}`))
	assert.Error(t, err)

	_, err = parseChartPrice([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data"}}}`))
	assert.Error(t, err)

	_, err = parseChartPrice([]byte(chartBody("0")))
	assert.Error(t, err, "a zero price must be rejected")

	_, err = parseChartPrice([]byte("not json"))
	assert.Error(t, err)
}
