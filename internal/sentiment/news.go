package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tradepilot/tradepilot/internal/config"
)

const defaultMaxArticles = 25

// NewsAnalyzer summarizes sentiment over recent financial headlines
type NewsAnalyzer struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	scorer   Scorer
	limiter  *rate.Limiter
	maxItems int
	logger   zerolog.Logger
}

type newsResponse struct {
	Articles []struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		PublishedAt time.Time `json:"publishedAt"`
	} `json:"articles"`
}

// NewNewsAnalyzer creates a news analyzer. The base URL is configurable so
// alternate providers (or test servers) can be swapped in.
func NewNewsAnalyzer(baseURL, apiKey string, scorer Scorer) *NewsAnalyzer {
	if baseURL == "" {
		baseURL = "https://newsapi.org"
	}
	return &NewsAnalyzer{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  baseURL,
		apiKey:   apiKey,
		scorer:   scorer,
		limiter:  rate.NewLimiter(rate.Limit(1), 2),
		maxItems: defaultMaxArticles,
		logger:   config.NewLogger("sentiment.news"),
	}
}

func (a *NewsAnalyzer) Name() string { return SourceNews }

// Analyze fetches recent headlines and averages their compound scores.
// Missing credentials or an empty result set yield the no-data sentinel.
func (a *NewsAnalyzer) Analyze(ctx context.Context, symbol string, lookback time.Duration) (Result, error) {
	if a.apiKey == "" || a.scorer == nil {
		a.logger.Debug().Str("symbol", symbol).Msg("News analyzer not configured")
		return noData(SourceNews, symbol), ErrNoData
	}

	articles, err := a.fetchArticles(ctx, symbol, lookback)
	if err != nil {
		return noData(SourceNews, symbol), fmt.Errorf("failed to fetch news: %w", err)
	}
	if len(articles) == 0 {
		return noData(SourceNews, symbol), ErrNoData
	}

	var compounds []float64
	var headlines []string
	for _, text := range articles {
		scores, err := a.scorer.Score(ctx, text)
		if err != nil {
			a.logger.Warn().Err(err).Msg("Scorer failed on headline")
			continue
		}
		compounds = append(compounds, scores.Compound)
		if len(headlines) < 5 {
			headlines = append(headlines, text)
		}
	}
	if len(compounds) == 0 {
		return noData(SourceNews, symbol), ErrNoData
	}

	result := summarize(SourceNews, symbol, compounds)
	result.Details = map[string]interface{}{
		"article_count": len(compounds),
		"headlines":     headlines,
	}

	a.logger.Debug().
		Str("symbol", symbol).
		Str("category", result.Category).
		Float64("score", result.Score).
		Int("articles", result.ItemCount).
		Msg("News sentiment computed")

	return result, nil
}

func (a *NewsAnalyzer) fetchArticles(ctx context.Context, symbol string, lookback time.Duration) ([]string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", symbol)
	params.Set("from", time.Now().Add(-lookback).UTC().Format(time.RFC3339))
	params.Set("pageSize", fmt.Sprintf("%d", a.maxItems))
	params.Set("apiKey", a.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v2/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news API returned status %d", resp.StatusCode)
	}

	var payload newsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode news response: %w", err)
	}

	texts := make([]string, 0, len(payload.Articles))
	for _, article := range payload.Articles {
		text := article.Title
		if article.Description != "" {
			text += ". " + article.Description
		}
		if text != "" && text != ". " {
			texts = append(texts, text)
		}
	}
	return texts, nil
}
