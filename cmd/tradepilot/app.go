package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradepilot/tradepilot/internal/broker"
	"github.com/tradepilot/tradepilot/internal/config"
	"github.com/tradepilot/tradepilot/internal/cycle"
	"github.com/tradepilot/tradepilot/internal/db"
	"github.com/tradepilot/tradepilot/internal/decision"
	"github.com/tradepilot/tradepilot/internal/executor"
	"github.com/tradepilot/tradepilot/internal/market"
	"github.com/tradepilot/tradepilot/internal/risk"
	"github.com/tradepilot/tradepilot/internal/sentiment"
)

// app holds the wired pipeline shared by the cycle, loop and backtest
// commands.
type app struct {
	cfg      *config.Config
	store    *db.Store // nil when the database is unreachable
	broker   broker.Broker
	runner   *cycle.Runner
	timezone *time.Location
}

// buildApp wires the trading pipeline from configuration. A missing
// database degrades to in-memory operation with a warning; everything
// else is constructed from config as-is.
func buildApp(ctx context.Context, cfg *config.Config, dryRun bool) (*app, error) {
	logger := config.NewLogger("app")

	tz, err := time.LoadLocation(cfg.Market.Timezone)
	if err != nil {
		logger.Warn().Err(err).Str("timezone", cfg.Market.Timezone).Msg("Invalid timezone, using UTC")
		tz = time.UTC
	}

	store, err := db.New(ctx, cfg.Database.GetDSN())
	if err != nil {
		logger.Warn().Err(err).Msg("Database unavailable, persistence disabled")
		store = nil
	}

	var cache *market.ContextCache
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cache = market.NewContextCache(client, cfg.Redis.GetCacheTTL())
	}

	brk := buildBroker(cfg)

	var barStore market.BarStore = &nopBarStore{}
	var cycleStore cycle.Store
	if store != nil {
		barStore = store
		cycleStore = store
	}

	provider := market.NewProvider(brk, barStore, cache)
	agg := buildAggregator(cfg)
	exec := executor.New(brk, executor.NewJournal(cfg.App.LogsDir), cfg.App.AgentsDir, dryRun)

	runner := cycle.NewRunner(provider, agg, decision.NewMaker(0, 0), risk.NewValidator(), exec, cycleStore, cycle.Options{
		Timeframe:       cfg.Market.DefaultTimeframe,
		Lookback:        cfg.Market.LookbackPeriods,
		Timezone:        tz,
		MarketHoursOnly: cfg.Loop.MarketHoursOnly,
		DryRun:          dryRun,
	})

	return &app{
		cfg:      cfg,
		store:    store,
		broker:   brk,
		runner:   runner,
		timezone: tz,
	}, nil
}

func buildBroker(cfg *config.Config) broker.Broker {
	if cfg.Broker.Provider == "binance" {
		return broker.NewBinanceBroker(broker.BinanceConfig{
			APIKey:    cfg.Broker.APIKey,
			SecretKey: cfg.Broker.SecretKey,
			Testnet:   cfg.Broker.Testnet,
		})
	}
	return broker.NewPaperBroker(cfg.Company.MaxCapital)
}

func buildAggregator(cfg *config.Config) *sentiment.Aggregator {
	scorer := sentiment.NewLexiconScorer()

	var analyzers []sentiment.Analyzer
	weights := make(map[string]float64)

	if cfg.Sentiment.News.Enabled {
		analyzers = append(analyzers, sentiment.NewNewsAnalyzer("", cfg.Sentiment.News.APIKey, scorer))
		weights[sentiment.SourceNews] = cfg.Sentiment.News.Weight
	}
	if cfg.Sentiment.Reddit.Enabled {
		analyzers = append(analyzers, sentiment.NewRedditAnalyzer("", cfg.Sentiment.Reddit.UserAgent, scorer))
		weights[sentiment.SourceReddit] = cfg.Sentiment.Reddit.Weight
	}
	if cfg.Sentiment.SEC.Enabled {
		analyzers = append(analyzers, sentiment.NewSECAnalyzer("", cfg.Sentiment.SEC.UserAgent))
		weights[sentiment.SourceSEC] = cfg.Sentiment.SEC.Weight
	}

	// Zero-weight sources fall back to the default split.
	for _, w := range weights {
		if w <= 0 {
			weights = nil
			break
		}
	}
	if len(weights) == 0 {
		weights = nil
	}

	return sentiment.NewAggregator(analyzers, weights, cfg.Sentiment.GetSourceTimeout())
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

// nopBarStore keeps the provider functional without a database
type nopBarStore struct{}

func (nopBarStore) UpsertBars(context.Context, []market.Bar) error { return nil }

func (nopBarStore) GetRecentBars(context.Context, string, string, int) ([]market.Bar, error) {
	return nil, nil
}
