package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tradepilot/tradepilot/internal/config"
)

const defaultMaxPosts = 50

var defaultSubreddits = []string{"stocks", "investing", "wallstreetbets"}

// RedditAnalyzer summarizes retail sentiment from subreddit posts
type RedditAnalyzer struct {
	client     *http.Client
	baseURL    string
	userAgent  string
	scorer     Scorer
	limiter    *rate.Limiter
	subreddits []string
	maxItems   int
	logger     zerolog.Logger
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title    string  `json:"title"`
				Selftext string  `json:"selftext"`
				Created  float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// NewRedditAnalyzer creates a Reddit analyzer. The user agent doubles as the
// credential check: Reddit rejects requests without an identifying agent.
func NewRedditAnalyzer(baseURL, userAgent string, scorer Scorer) *RedditAnalyzer {
	if baseURL == "" {
		baseURL = "https://www.reddit.com"
	}
	return &RedditAnalyzer{
		client:     &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		userAgent:  userAgent,
		scorer:     scorer,
		limiter:    rate.NewLimiter(rate.Limit(1), 2),
		subreddits: defaultSubreddits,
		maxItems:   defaultMaxPosts,
		logger:     config.NewLogger("sentiment.reddit"),
	}
}

func (a *RedditAnalyzer) Name() string { return SourceReddit }

// Analyze searches the configured subreddits for symbol mentions and scores
// each post. Adds trending_score = mentions per lookback hour.
func (a *RedditAnalyzer) Analyze(ctx context.Context, symbol string, lookback time.Duration) (Result, error) {
	if a.userAgent == "" || a.scorer == nil {
		a.logger.Debug().Str("symbol", symbol).Msg("Reddit analyzer not configured")
		return noData(SourceReddit, symbol), ErrNoData
	}

	// Crypto pairs like BTC/USD search by their base asset.
	query := symbol
	if idx := strings.Index(symbol, "/"); idx > 0 {
		query = symbol[:idx]
	}

	cutoff := time.Now().Add(-lookback)
	var compounds []float64
	for _, sub := range a.subreddits {
		posts, err := a.fetchPosts(ctx, sub, query)
		if err != nil {
			a.logger.Warn().Err(err).Str("subreddit", sub).Msg("Failed to fetch posts")
			continue
		}
		for _, post := range posts {
			if post.created.Before(cutoff) {
				continue
			}
			scores, err := a.scorer.Score(ctx, post.text)
			if err != nil {
				continue
			}
			compounds = append(compounds, scores.Compound)
		}
		if len(compounds) >= a.maxItems {
			compounds = compounds[:a.maxItems]
			break
		}
	}

	if len(compounds) == 0 {
		return noData(SourceReddit, symbol), ErrNoData
	}

	result := summarize(SourceReddit, symbol, compounds)
	hours := lookback.Hours()
	if hours <= 0 {
		hours = 1
	}
	result.Details = map[string]interface{}{
		"mention_count":  len(compounds),
		"trending_score": float64(len(compounds)) / hours,
	}

	a.logger.Debug().
		Str("symbol", symbol).
		Str("category", result.Category).
		Float64("score", result.Score).
		Int("mentions", result.ItemCount).
		Msg("Reddit sentiment computed")

	return result, nil
}

type redditPost struct {
	text    string
	created time.Time
}

func (a *RedditAnalyzer) fetchPosts(ctx context.Context, subreddit, query string) ([]redditPost, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("restrict_sr", "1")
	params.Set("sort", "new")
	params.Set("limit", fmt.Sprintf("%d", a.maxItems))

	endpoint := fmt.Sprintf("%s/r/%s/search.json?%s", a.baseURL, subreddit, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit API returned status %d", resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to decode reddit response: %w", err)
	}

	posts := make([]redditPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		text := child.Data.Title
		if child.Data.Selftext != "" {
			text += ". " + child.Data.Selftext
		}
		posts = append(posts, redditPost{
			text:    text,
			created: time.Unix(int64(child.Data.Created), 0),
		})
	}
	return posts, nil
}
