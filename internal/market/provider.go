package market

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradepilot/tradepilot/internal/config"
)

// DataSource supplies live quotes and historical bars, typically a broker
type DataSource interface {
	GetLatestQuote(ctx context.Context, symbol string) (*Quote, error)
	GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error)
}

// BarStore persists and serves historical bars
type BarStore interface {
	UpsertBars(ctx context.Context, bars []Bar) error
	GetRecentBars(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error)
}

// Provider builds market context from a data source with store-backed history
type Provider struct {
	source DataSource
	store  BarStore
	cache  *ContextCache
	logger zerolog.Logger
}

// NewProvider creates a market data provider. The cache is optional.
func NewProvider(source DataSource, store BarStore, cache *ContextCache) *Provider {
	return &Provider{
		source: source,
		store:  store,
		cache:  cache,
		logger: config.NewLogger("market"),
	}
}

// GetMarketContext assembles the market picture for one symbol.
// Bars come from the store when it covers at least half the requested
// lookback; otherwise they are fetched from the source and persisted.
// A missing quote is not an error: current price is zero and
// DataAvailable is false so callers can degrade.
func (p *Provider) GetMarketContext(ctx context.Context, symbol, timeframe string, lookback int) (*Context, error) {
	if cached, ok := p.cache.Get(ctx, symbol, timeframe); ok {
		return cached, nil
	}

	var currentPrice float64
	quote, err := p.source.GetLatestQuote(ctx, symbol)
	if err != nil || quote == nil {
		p.logger.Warn().
			Err(err).
			Str("symbol", symbol).
			Msg("Could not fetch quote")
	} else {
		currentPrice = quote.Price()
	}

	bars, err := p.loadBars(ctx, symbol, timeframe, lookback)
	if err != nil {
		return nil, fmt.Errorf("failed to load bars for %s: %w", symbol, err)
	}

	mc := BuildContext(symbol, timeframe, bars, currentPrice)
	mc.Timestamp = time.Now().UTC()

	if len(bars) == 0 {
		p.logger.Warn().
			Str("symbol", symbol).
			Str("timeframe", timeframe).
			Msg("No historical data available")
		return mc, nil
	}

	p.cache.Set(ctx, mc)

	p.logger.Debug().
		Str("symbol", symbol).
		Int("bars", len(bars)).
		Float64("price", mc.CurrentPrice).
		Msg("Market context built")

	return mc, nil
}

// loadBars prefers stored history and falls back to the live source.
// Freshly fetched bars are written back to the store so history accretes.
func (p *Provider) loadBars(ctx context.Context, symbol, timeframe string, lookback int) ([]Bar, error) {
	stored, err := p.store.GetRecentBars(ctx, symbol, timeframe, lookback)
	if err != nil {
		p.logger.Warn().
			Err(err).
			Str("symbol", symbol).
			Msg("Bar store read failed, falling back to source")
		stored = nil
	}

	if len(stored) >= lookback/2 {
		return stored, nil
	}

	fetched, err := p.source.GetBars(ctx, symbol, timeframe, lookback)
	if err != nil {
		// Stale store data beats nothing
		if len(stored) > 0 {
			p.logger.Warn().
				Err(err).
				Str("symbol", symbol).
				Int("stored", len(stored)).
				Msg("Bar fetch failed, using stored bars")
			return stored, nil
		}
		return nil, err
	}

	fetched = p.dropMalformed(symbol, fetched)

	if len(fetched) > 0 {
		if err := p.store.UpsertBars(ctx, fetched); err != nil {
			p.logger.Warn().
				Err(err).
				Str("symbol", symbol).
				Msg("Failed to persist fetched bars")
		}
	}

	return fetched, nil
}

// dropMalformed filters bars that violate OHLC ordering so bad upstream
// data never reaches the store or the indicator pipeline.
func (p *Provider) dropMalformed(symbol string, bars []Bar) []Bar {
	kept := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if b.Valid() {
			kept = append(kept, b)
		}
	}
	if dropped := len(bars) - len(kept); dropped > 0 {
		p.logger.Warn().
			Str("symbol", symbol).
			Int("dropped", dropped).
			Msg("Dropped malformed bars from source")
	}
	return kept
}
