package sentiment

import (
	"context"
	"errors"
	"time"
)

// Sentiment categories
const (
	CategoryPositive = "positive"
	CategoryNegative = "negative"
	CategoryNeutral  = "neutral"
)

// Source names
const (
	SourceNews   = "news"
	SourceReddit = "reddit"
	SourceSEC    = "sec"
)

// Category thresholds on the compound/aggregate score
const (
	positiveThreshold = 0.05
	negativeThreshold = -0.05
)

// ErrNoData marks a source that could not produce a single valid item.
// It is a sentinel, not a failure: the aggregator simply excludes the source.
var ErrNoData = errors.New("no sentiment data available")

// Scores is the per-text sentiment breakdown from a scorer
type Scores struct {
	Compound float64 `json:"compound"` // overall score in [-1, 1]
	Positive float64 `json:"pos"`
	Negative float64 `json:"neg"`
	Neutral  float64 `json:"neu"`
}

// Scorer scores a piece of financial text
type Scorer interface {
	Score(ctx context.Context, text string) (Scores, error)
}

// Result is one source's summarized sentiment for a symbol
type Result struct {
	Source     string                 `json:"source"`
	Symbol     string                 `json:"symbol"`
	Category   string                 `json:"category"`
	Score      float64                `json:"score"`
	Confidence float64                `json:"confidence"`
	ItemCount  int                    `json:"item_count"`
	Available  bool                   `json:"available"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Analyzer is the uniform per-source contract. Implementations own their
// rate limiting; callers never sleep.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, symbol string, lookback time.Duration) (Result, error)
}

// Aggregated is the weighted fusion across sources
type Aggregated struct {
	Category       string            `json:"overall_sentiment"`
	Score          float64           `json:"score"`
	Confidence     float64           `json:"confidence"`
	SourcesUsed    []string          `json:"sources_used"`
	AgreementLevel float64           `json:"agreement_level"`
	Breakdown      map[string]Result `json:"breakdown,omitempty"`
}

// Categorize maps a score to a sentiment label
func Categorize(score float64) string {
	switch {
	case score >= positiveThreshold:
		return CategoryPositive
	case score <= negativeThreshold:
		return CategoryNegative
	default:
		return CategoryNeutral
	}
}

// noData builds the sentinel result for a source that produced nothing
func noData(source, symbol string) Result {
	return Result{
		Source:   source,
		Symbol:   symbol,
		Category: CategoryNeutral,
	}
}

// summarize folds per-item scores into a source Result.
// Confidence is the share of items in the dominant category.
func summarize(source, symbol string, compounds []float64) Result {
	if len(compounds) == 0 {
		return noData(source, symbol)
	}

	var sum float64
	var pos, neg, neu int
	for _, c := range compounds {
		sum += c
		switch Categorize(c) {
		case CategoryPositive:
			pos++
		case CategoryNegative:
			neg++
		default:
			neu++
		}
	}

	avg := sum / float64(len(compounds))
	dominant := pos
	if neg > dominant {
		dominant = neg
	}
	if neu > dominant {
		dominant = neu
	}

	return Result{
		Source:     source,
		Symbol:     symbol,
		Category:   Categorize(avg),
		Score:      avg,
		Confidence: float64(dominant) / float64(len(compounds)),
		ItemCount:  len(compounds),
		Available:  true,
	}
}
