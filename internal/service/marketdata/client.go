package marketdata

import (
	"context"
	"fmt"
	"time"

	"TradeMaster/internal/domain/models"
	domservice "TradeMaster/internal/domain/service"
	"TradeMaster/pkg/cache"
	pkghttp "TradeMaster/pkg/http"
	applogger "TradeMaster/pkg/logger"
)

const signalCacheKeyPrefix = "signals:"

// Client fetches per-asset market signals from an aggregator HTTP API,
// with a short Redis-backed cache in front. The provider is allowed to
// return partial data; absent fields stay nil and flow through to the
// risk assessor's neutral default.
type Client struct {
	http     *pkghttp.Client
	cache    cache.Service
	baseURL  string
	apiKey   string
	cacheTTL time.Duration
	l        *applogger.Logger
}

type Option func(*Client)

// WithCache puts a cache in front of provider lookups.
func WithCache(c cache.Service, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.cache = c
		if ttl > 0 {
			cl.cacheTTL = ttl
		}
	}
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(cl *Client) { cl.l = l }
}

// New creates a market-data client.
func New(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	cl := &Client{
		http:     pkghttp.NewClient(pkghttp.WithTimeout(timeout)),
		baseURL:  baseURL,
		apiKey:   apiKey,
		cacheTTL: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// provider response schema; every field optional
type providerSignals struct {
	Symbol         string   `json:"symbol"`
	Mint           string   `json:"mint"`
	PriceChange24h *float64 `json:"priceChange24h"`
	Liquidity      *float64 `json:"liquidity"`
	Volume24h      *float64 `json:"volume24h"`
	MarketCap      *float64 `json:"marketCap"`
	TopHolderPct   *float64 `json:"topHolderPct"`
	ContractScore  *float64 `json:"contractScore"`
}

// GetSignals returns the current market signals for a symbol, from cache
// when fresh enough.
func (c *Client) GetSignals(ctx context.Context, symbol string) (models.MarketSignals, error) {
	key := signalCacheKeyPrefix + symbol

	if c.cache != nil {
		var cached models.MarketSignals
		if err := c.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	var resp providerSignals
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    fmt.Sprintf("%s/v1/tokens/%s/signals", c.baseURL, symbol),
		Headers: map[string]string{
			"X-API-Key": c.apiKey,
		},
	}, &resp)
	if err != nil {
		return models.MarketSignals{}, fmt.Errorf("fetch signals %s: %w", symbol, err)
	}

	signals := models.MarketSignals{
		Symbol:         symbol,
		Mint:           resp.Mint,
		PriceChange24h: resp.PriceChange24h,
		Liquidity:      resp.Liquidity,
		Volume24h:      resp.Volume24h,
		MarketCap:      resp.MarketCap,
		TopHolderPct:   resp.TopHolderPct,
		ContractScore:  resp.ContractScore,
		FetchedAt:      time.Now(),
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, signals, c.cacheTTL); err != nil && c.l != nil {
			c.l.Warn("signal cache set failed",
				applogger.String("symbol", symbol), applogger.Error(err))
		}
	}
	return signals, nil
}

var _ domservice.MarketDataSource = (*Client)(nil)
