// Package rates supplies the SUI/USD conversion rate used for rank
// qualification. Quotes come from a public market endpoint and are cached in
// Redis so a flaky upstream cannot stall a reconciliation pass.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/david-jerry/heroku-suibison/internal/infrastructure/cache"
)

const quoteCacheKey = "rates:sui_usd"

// Quote is one observed SUI/USD price.
type Quote struct {
	Price     decimal.Decimal `json:"price"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Provider fetches and caches the SUI/USD rate.
type Provider struct {
	cache      cache.RedisClient
	httpClient *http.Client
	quoteURL   string
	cacheTTL   time.Duration
	logger     *zap.Logger

	mu   sync.RWMutex
	last *Quote
}

// NewProvider creates a rate provider backed by Redis.
func NewProvider(quoteURL string, cacheTTL time.Duration, redisClient cache.RedisClient, logger *zap.Logger) *Provider {
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	return &Provider{
		cache:      redisClient,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		quoteURL:   quoteURL,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// Current returns the cached SUI/USD rate, refreshing on a cache miss. When
// the upstream is down, the last rate ever observed in this process is served
// stale rather than failing the caller.
func (p *Provider) Current(ctx context.Context) (decimal.Decimal, error) {
	var cached Quote
	if err := p.cache.Get(ctx, quoteCacheKey, &cached); err == nil && cached.Price.IsPositive() {
		p.remember(&cached)
		return cached.Price, nil
	}

	quote, err := p.Refresh(ctx)
	if err != nil {
		p.mu.RLock()
		last := p.last
		p.mu.RUnlock()
		if last != nil {
			p.logger.Warn("Serving stale SUI/USD rate",
				zap.String("price", last.Price.String()),
				zap.Time("fetched_at", last.FetchedAt),
				zap.Error(err))
			return last.Price, nil
		}
		return decimal.Zero, fmt.Errorf("no SUI/USD rate available: %w", err)
	}
	return quote.Price, nil
}

// Refresh fetches a fresh quote from the upstream and writes it through to
// the cache.
func (p *Provider) Refresh(ctx context.Context) (*Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.quoteURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create quote request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "suibison-ledger/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch quote: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read quote response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote endpoint returned %d", resp.StatusCode)
	}

	price, err := parseChartPrice(body)
	if err != nil {
		return nil, err
	}

	quote := &Quote{Price: price, FetchedAt: time.Now().UTC()}
	if err := p.cache.Set(ctx, quoteCacheKey, quote, p.cacheTTL); err != nil {
		// A dead cache should not block rate consumers.
		p.logger.Warn("Failed to cache SUI/USD rate", zap.Error(err))
	}
	p.remember(quote)

	p.logger.Debug("Refreshed SUI/USD rate", zap.String("price", price.String()))
	return quote, nil
}

func (p *Provider) remember(quote *Quote) {
	p.mu.Lock()
	if p.last == nil || quote.FetchedAt.After(p.last.FetchedAt) {
		p.last = quote
	}
	p.mu.Unlock()
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice json.Number `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func parseChartPrice(body []byte) (decimal.Decimal, error) {
	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return decimal.Zero, fmt.Errorf("unmarshal quote response: %w", err)
	}
	if chart.Chart.Error != nil {
		return decimal.Zero, fmt.Errorf("quote endpoint error %s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return decimal.Zero, fmt.Errorf("quote response carried no result")
	}

	price, err := decimal.NewFromString(chart.Chart.Result[0].Meta.RegularMarketPrice.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse market price: %w", err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("market price %s is not positive", price)
	}
	return price, nil
}
