package sentiment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubAnalyzer struct {
	name string
	res  Result
	err  error
}

func (s *stubAnalyzer) Name() string { return s.name }

func (s *stubAnalyzer) Analyze(_ context.Context, _ string, _ time.Duration) (Result, error) {
	return s.res, s.err
}

func available(source string, score, confidence float64) Result {
	return Result{
		Source:     source,
		Category:   Categorize(score),
		Score:      score,
		Confidence: confidence,
		ItemCount:  1,
		Available:  true,
	}
}

func TestAggregateAllSources(t *testing.T) {
	agg := NewAggregator([]Analyzer{
		&stubAnalyzer{name: SourceNews, res: available(SourceNews, 0.8, 0.9)},
		&stubAnalyzer{name: SourceReddit, res: available(SourceReddit, -0.2, 0.5)},
		&stubAnalyzer{name: SourceSEC, res: available(SourceSEC, 0.4, 0.5)},
	}, nil, time.Second)

	result := agg.Aggregate(context.Background(), "AAPL", 24*time.Hour)

	// Weighted: (0.8*0.40 - 0.2*0.25 + 0.4*0.25) / 0.90 = 0.411
	assert.InDelta(t, 0.411, result.Score, 0.001)
	assert.InDelta(t, 0.68, result.Confidence, 0.001)
	assert.Equal(t, CategoryPositive, result.Category)
	assert.Equal(t, []string{SourceNews, SourceReddit, SourceSEC}, result.SourcesUsed)

	// Two positive labels against one negative.
	assert.InDelta(t, 0.67, result.AgreementLevel, 0.001)
}

func TestAggregateSingleSourcePassesThrough(t *testing.T) {
	agg := NewAggregator([]Analyzer{
		&stubAnalyzer{name: SourceNews, res: available(SourceNews, 0.7, 0.8)},
		&stubAnalyzer{name: SourceReddit, err: ErrNoData},
		&stubAnalyzer{name: SourceSEC, err: ErrNoData},
	}, nil, time.Second)

	result := agg.Aggregate(context.Background(), "AAPL", 24*time.Hour)

	assert.InDelta(t, 0.7, result.Score, 0.001)
	assert.InDelta(t, 0.8, result.Confidence, 0.001)
	assert.Equal(t, CategoryPositive, result.Category)
	assert.Equal(t, []string{SourceNews}, result.SourcesUsed)
	assert.Equal(t, 1.0, result.AgreementLevel)
}

func TestAggregateNoSources(t *testing.T) {
	agg := NewAggregator([]Analyzer{
		&stubAnalyzer{name: SourceNews, err: ErrNoData},
		&stubAnalyzer{name: SourceReddit, err: errors.New("connection refused")},
		&stubAnalyzer{name: SourceSEC, err: ErrNoData},
	}, nil, time.Second)

	result := agg.Aggregate(context.Background(), "AAPL", 24*time.Hour)

	assert.Equal(t, CategoryNeutral, result.Category)
	assert.Equal(t, 0.0, result.Score)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Empty(t, result.SourcesUsed)
	assert.Equal(t, 0.0, result.AgreementLevel)
}

func TestAggregateFailedSourceExcluded(t *testing.T) {
	agg := NewAggregator([]Analyzer{
		&stubAnalyzer{name: SourceNews, res: available(SourceNews, 0.6, 0.7)},
		&stubAnalyzer{name: SourceReddit, err: errors.New("rate limited")},
	}, nil, time.Second)

	result := agg.Aggregate(context.Background(), "AAPL", 24*time.Hour)

	assert.Equal(t, []string{SourceNews}, result.SourcesUsed)
	assert.InDelta(t, 0.6, result.Score, 0.001)
}

func TestAggregateCustomWeights(t *testing.T) {
	weights := map[string]float64{
		SourceNews:   0.5,
		SourceReddit: 0.5,
	}
	agg := NewAggregator([]Analyzer{
		&stubAnalyzer{name: SourceNews, res: available(SourceNews, 1.0, 1.0)},
		&stubAnalyzer{name: SourceReddit, res: available(SourceReddit, -1.0, 1.0)},
	}, weights, time.Second)

	result := agg.Aggregate(context.Background(), "AAPL", 24*time.Hour)

	assert.InDelta(t, 0.0, result.Score, 0.001)
	assert.Equal(t, CategoryNeutral, result.Category)
	assert.InDelta(t, 0.5, result.AgreementLevel, 0.001)
}

func TestAggregateRescalesOverweightedSources(t *testing.T) {
	weights := map[string]float64{
		SourceNews:   1.0,
		SourceReddit: 0.5,
	}
	agg := NewAggregator(nil, weights, time.Second)

	// 1.5 total rescales to proportions 2/3 and 1/3.
	assert.InDelta(t, 2.0/3.0, agg.weights[SourceNews], 0.001)
	assert.InDelta(t, 1.0/3.0, agg.weights[SourceReddit], 0.001)

	// Weights already within budget are untouched.
	agg = NewAggregator(nil, map[string]float64{SourceNews: 0.4}, time.Second)
	assert.InDelta(t, 0.4, agg.weights[SourceNews], 0.001)
}
