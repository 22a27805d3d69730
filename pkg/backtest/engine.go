// Package backtest replays historical bars through the decision rules
// and reports how the strategy would have performed.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tradepilot/tradepilot/internal/config"
	"github.com/tradepilot/tradepilot/internal/db"
	"github.com/tradepilot/tradepilot/internal/decision"
	"github.com/tradepilot/tradepilot/internal/market"
	"github.com/tradepilot/tradepilot/internal/technical"
)

const (
	// minBars is the minimum history a run needs; the first warmupBars
	// only feed the indicators and are never traded.
	minBars    = 50
	warmupBars = 50

	// analysisWindow caps how many trailing bars feed each step's
	// technical picture.
	analysisWindow = 100

	defaultMinConfidence       = 0.6
	defaultMaxPositionFraction = 0.25
	defaultStopLossFraction    = 0.03
)

// Config parameterizes one backtest run
type Config struct {
	Symbol              string
	Timeframe           string
	InitialCapital      float64
	MinConfidence       float64 // gate below which no trade opens
	MaxPositionFraction float64 // fraction of equity per entry
	StopLossFraction    float64
	SentimentWeight     float64
	TechnicalWeight     float64
}

func (c *Config) applyDefaults() {
	if c.MinConfidence <= 0 {
		c.MinConfidence = defaultMinConfidence
	}
	if c.MaxPositionFraction <= 0 {
		c.MaxPositionFraction = defaultMaxPositionFraction
	}
	if c.StopLossFraction <= 0 {
		c.StopLossFraction = defaultStopLossFraction
	}
}

// SentimentPoint is a historical sentiment reading joined to bars by
// exact timestamp match.
type SentimentPoint struct {
	Timestamp  time.Time
	Score      float64
	Confidence float64
}

// EquityPoint is one step of the equity curve
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// Result is a finished backtest
type Result struct {
	Run         db.BacktestRun     `json:"run"`
	Trades      []db.BacktestTrade `json:"trades"`
	EquityCurve []EquityPoint      `json:"equity_curve"`
}

// Engine replays bars through the same decision maker the live loop uses
type Engine struct {
	cfg    Config
	maker  *decision.Maker
	logger zerolog.Logger
}

// NewEngine creates a backtest engine
func NewEngine(cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{
		cfg:    cfg,
		maker:  decision.NewMaker(cfg.SentimentWeight, cfg.TechnicalWeight),
		logger: config.NewLogger("backtest"),
	}
}

// Run simulates the strategy over the bars. The portfolio is long-only
// with a single position: buys open when flat, sells close everything.
// Cash can never go negative; orders shrink to what cash covers.
func (e *Engine) Run(ctx context.Context, bars []market.Bar, sentiments []SentimentPoint) (*Result, error) {
	if len(bars) < minBars {
		return nil, fmt.Errorf("insufficient data: need at least %d bars, got %d", minBars, len(bars))
	}

	sentimentAt := make(map[time.Time]SentimentPoint, len(sentiments))
	for _, s := range sentiments {
		sentimentAt[s.Timestamp] = s
	}

	risk := config.RiskLimits{
		MaxPositionSize:  e.cfg.MaxPositionFraction,
		StopLossFraction: e.cfg.StopLossFraction,
		MinConfidence:    e.cfg.MinConfidence,
	}

	cash := e.cfg.InitialCapital
	var positionQty, entryPrice float64
	var trades []db.BacktestTrade
	curve := make([]EquityPoint, 0, len(bars)-warmupBars)

	for i := warmupBars; i < len(bars); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		bar := bars[i]
		price := bar.Close

		start := i - analysisWindow + 1
		if start < 0 {
			start = 0
		}
		window := bars[start : i+1]

		mctx := market.BuildContext(e.cfg.Symbol, e.cfg.Timeframe, window, price)
		analysis := technical.Analyze(mctx)

		var sentScore, sentConf float64
		if s, ok := sentimentAt[bar.Timestamp]; ok {
			sentScore = s.Score
			sentConf = s.Confidence
		}

		dec, err := e.maker.Decide(decision.Params{
			Symbol:              e.cfg.Symbol,
			SentimentScore:      sentScore,
			SentimentConfidence: sentConf,
			TechnicalSignal:     analysis.Overall,
			TechnicalConfidence: analysis.Confidence,
			CurrentPrice:        price,
			Equity:              cash,
			HasPosition:         positionQty > 0,
			PositionQuantity:    positionQty,
			Risk:                risk,
		})
		if err != nil {
			return nil, fmt.Errorf("decision failed at bar %d: %w", i, err)
		}

		switch dec.Action {
		case decision.ActionBuy:
			if positionQty > 0 {
				break // single position; already long
			}
			qty := capToCash(dec.Quantity, price, cash, e.cfg.Symbol)
			if qty <= 0 {
				break
			}
			cash -= qty * price
			positionQty = qty
			entryPrice = price
			trades = append(trades, db.BacktestTrade{
				Timestamp: bar.Timestamp,
				Side:      decision.ActionBuy,
				Quantity:  qty,
				Price:     price,
				Value:     qty * price,
				Reasoning: dec.Rationale,
			})

		case decision.ActionSell:
			if positionQty <= 0 {
				break
			}
			pnl := (price - entryPrice) * positionQty
			cash += positionQty * price
			trades = append(trades, db.BacktestTrade{
				Timestamp: bar.Timestamp,
				Side:      decision.ActionSell,
				Quantity:  positionQty,
				Price:     price,
				Value:     positionQty * price,
				PnL:       pnl,
				Reasoning: dec.Rationale,
			})
			positionQty = 0
			entryPrice = 0
		}

		curve = append(curve, EquityPoint{
			Timestamp: bar.Timestamp,
			Equity:    cash + positionQty*price,
		})
	}

	finalEquity := cash + positionQty*bars[len(bars)-1].Close
	now := time.Now().UTC()

	runID := uuid.New()
	for idx := range trades {
		trades[idx].RunID = runID
	}

	run := db.BacktestRun{
		ID:             runID,
		Symbol:         e.cfg.Symbol,
		Timeframe:      e.cfg.Timeframe,
		StartDate:      bars[0].Timestamp,
		EndDate:        bars[len(bars)-1].Timestamp,
		InitialCapital: e.cfg.InitialCapital,
		FinalEquity:    finalEquity,
		TotalReturnPct: totalReturnPct(e.cfg.InitialCapital, finalEquity),
		WinRate:        winRate(trades),
		AvgTradePnL:    avgTradePnL(trades),
		MaxDrawdownPct: maxDrawdownPct(curve),
		SharpeRatio:    sharpeRatio(curve),
		TotalTrades:    len(trades),
		Status:         db.BacktestStatusCompleted,
		CreatedAt:      now,
		CompletedAt:    &now,
	}

	e.logger.Info().
		Str("symbol", e.cfg.Symbol).
		Int("bars", len(bars)).
		Int("trades", len(trades)).
		Float64("return_pct", run.TotalReturnPct).
		Msg("Backtest completed")

	return &Result{Run: run, Trades: trades, EquityCurve: curve}, nil
}

// capToCash shrinks a desired quantity to what cash covers. Equities
// stay whole-share; crypto keeps its fractional precision.
func capToCash(qty, price, cash float64, symbol string) float64 {
	if qty*price <= cash {
		return qty
	}
	affordable := cash / price
	if !decision.IsCrypto(symbol) {
		affordable = math.Floor(affordable)
	}
	if affordable < qty {
		qty = affordable
	}
	return qty
}

// Store persists finished runs
type Store interface {
	SaveBacktestResult(ctx context.Context, run *db.BacktestRun, trades []db.BacktestTrade) error
}

// Service runs backtests and persists the outcome, failures included
type Service struct {
	store  Store
	logger zerolog.Logger
}

// NewService creates a backtest service over the given store
func NewService(store Store) *Service {
	return &Service{store: store, logger: config.NewLogger("backtest.service")}
}

// RunAndStore executes a backtest and saves the result. When the engine
// fails, a failed run row is stored with the error message so the
// attempt is still visible.
func (s *Service) RunAndStore(ctx context.Context, cfg Config, bars []market.Bar, sentiments []SentimentPoint) (*Result, error) {
	engine := NewEngine(cfg)

	result, err := engine.Run(ctx, bars, sentiments)
	if err != nil {
		now := time.Now().UTC()
		msg := err.Error()
		failed := &db.BacktestRun{
			ID:             uuid.New(),
			Symbol:         cfg.Symbol,
			Timeframe:      cfg.Timeframe,
			InitialCapital: cfg.InitialCapital,
			Status:         db.BacktestStatusFailed,
			Error:          &msg,
			CreatedAt:      now,
			CompletedAt:    &now,
		}
		if len(bars) > 0 {
			failed.StartDate = bars[0].Timestamp
			failed.EndDate = bars[len(bars)-1].Timestamp
		}
		if saveErr := s.store.SaveBacktestResult(ctx, failed, nil); saveErr != nil {
			s.logger.Error().Err(saveErr).Msg("Failed to record failed backtest run")
		}
		return nil, err
	}

	if err := s.store.SaveBacktestResult(ctx, &result.Run, result.Trades); err != nil {
		return nil, fmt.Errorf("backtest completed but persistence failed: %w", err)
	}
	return result, nil
}
