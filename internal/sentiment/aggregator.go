package sentiment

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tradepilot/tradepilot/internal/config"
)

// DefaultWeights reflects source reliability: professional news first,
// retail chatter and filings behind it.
var DefaultWeights = map[string]float64{
	SourceNews:   0.40,
	SourceReddit: 0.25,
	SourceSEC:    0.25,
}

const defaultSourceTimeout = 30 * time.Second

// Aggregator fuses per-source sentiment into one weighted reading
type Aggregator struct {
	analyzers []Analyzer
	weights   map[string]float64
	timeout   time.Duration
	breakers  *breakerSet
	logger    zerolog.Logger
}

// NewAggregator wires the given analyzers with fusion weights. Nil weights
// or a zero timeout fall back to the defaults. Weights summing past 1 are
// rescaled so no source carries more influence than configured proportions
// allow.
func NewAggregator(analyzers []Analyzer, weights map[string]float64, timeout time.Duration) *Aggregator {
	logger := config.NewLogger("sentiment.aggregator")

	if weights == nil {
		weights = DefaultWeights
	} else {
		var sum float64
		for _, w := range weights {
			sum += w
		}
		if sum > 1 {
			scaled := make(map[string]float64, len(weights))
			for source, w := range weights {
				scaled[source] = w / sum
			}
			logger.Warn().Float64("sum", sum).Msg("Source weights exceed 1, rescaling")
			weights = scaled
		}
	}
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}
	return &Aggregator{
		analyzers: analyzers,
		weights:   weights,
		timeout:   timeout,
		breakers:  newBreakerSet(),
		logger:    logger,
	}
}

// Aggregate fans out to every analyzer in parallel and fuses the sources
// that returned data. With no usable sources the result is the neutral
// sentinel: score 0, confidence 0, empty source list.
func (a *Aggregator) Aggregate(ctx context.Context, symbol string, lookback time.Duration) Aggregated {
	var mu sync.Mutex
	results := make(map[string]Result, len(a.analyzers))

	g, gctx := errgroup.WithContext(ctx)
	for _, analyzer := range a.analyzers {
		analyzer := analyzer
		g.Go(func() error {
			res, ok := a.collect(gctx, analyzer, symbol, lookback)
			if ok {
				mu.Lock()
				results[analyzer.Name()] = res
				mu.Unlock()
			}
			// One failed source never cancels its siblings.
			return nil
		})
	}
	_ = g.Wait()

	return a.fuse(symbol, results)
}

// collect runs one analyzer behind its circuit breaker. A no-data result
// is a successful call; only transport and scorer failures count against
// the breaker.
func (a *Aggregator) collect(ctx context.Context, analyzer Analyzer, symbol string, lookback time.Duration) (Result, bool) {
	source := analyzer.Name()
	cb := a.breakers.forSource(source)

	out, err := cb.Execute(func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		res, err := analyzer.Analyze(cctx, symbol, lookback)
		if err != nil && !errors.Is(err, ErrNoData) {
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		a.breakers.record(source, false)
		a.logger.Warn().
			Err(err).
			Str("source", source).
			Str("symbol", symbol).
			Msg("Sentiment source unavailable")
		return Result{}, false
	}

	a.breakers.record(source, true)
	res := out.(Result)
	if !res.Available {
		a.logger.Debug().
			Str("source", source).
			Str("symbol", symbol).
			Msg("Sentiment source returned no data")
		return Result{}, false
	}
	return res, true
}

func (a *Aggregator) fuse(symbol string, results map[string]Result) Aggregated {
	if len(results) == 0 {
		a.logger.Warn().Str("symbol", symbol).Msg("No sentiment sources available")
		return Aggregated{
			Category:    CategoryNeutral,
			SourcesUsed: []string{},
			Breakdown:   map[string]Result{},
		}
	}

	var weightedScore, weightedConf, totalWeight float64
	used := make([]string, 0, len(results))
	labels := make(map[string]int, 3)
	for source, res := range results {
		w := a.weights[source]
		weightedScore += res.Score * w
		weightedConf += res.Confidence * w
		totalWeight += w
		used = append(used, source)
		labels[res.Category]++
	}
	sort.Strings(used)

	var score, confidence float64
	if totalWeight > 0 {
		score = weightedScore / totalWeight
		confidence = weightedConf / totalWeight
	}

	majority := 0
	for _, count := range labels {
		if count > majority {
			majority = count
		}
	}

	agg := Aggregated{
		Category:       Categorize(score),
		Score:          roundTo(score, 3),
		Confidence:     roundTo(confidence, 2),
		SourcesUsed:    used,
		AgreementLevel: roundTo(float64(majority)/float64(len(used)), 2),
		Breakdown:      results,
	}

	a.logger.Info().
		Str("symbol", symbol).
		Str("category", agg.Category).
		Float64("score", agg.Score).
		Float64("confidence", agg.Confidence).
		Int("sources", len(used)).
		Float64("agreement", agg.AgreementLevel).
		Msg("Sentiment aggregated")

	return agg
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
