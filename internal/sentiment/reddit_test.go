package sentiment

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedditAnalyzer(t *testing.T) {
	now := time.Now().Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tradepilot-test/1.0", r.Header.Get("User-Agent"))

		if strings.HasPrefix(r.URL.Path, "/r/stocks/") {
			fmt.Fprintf(w, `{"data": {"children": [
				{"data": {"title": "record growth", "created_utc": %d}},
				{"data": {"title": "strong rally", "created_utc": %d}}
			]}}`, now, now)
			return
		}
		fmt.Fprint(w, `{"data": {"children": []}}`)
	}))
	defer srv.Close()

	analyzer := NewRedditAnalyzer(srv.URL, "tradepilot-test/1.0", NewLexiconScorer())

	result, err := analyzer.Analyze(context.Background(), "AAPL", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, result.Available)
	assert.Equal(t, SourceReddit, result.Source)
	assert.Equal(t, CategoryPositive, result.Category)
	assert.Equal(t, 2, result.ItemCount)
	assert.Equal(t, 2, result.Details["mention_count"])
	assert.InDelta(t, 2.0/24.0, result.Details["trending_score"].(float64), 0.001)
}

func TestRedditAnalyzerCryptoSearchesBaseAsset(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, `{"data": {"children": []}}`)
	}))
	defer srv.Close()

	analyzer := NewRedditAnalyzer(srv.URL, "tradepilot-test/1.0", NewLexiconScorer())

	_, err := analyzer.Analyze(context.Background(), "BTC/USD", 24*time.Hour)
	require.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, "BTC", gotQuery)
}

func TestRedditAnalyzerSkipsStalePosts(t *testing.T) {
	stale := time.Now().Add(-48 * time.Hour).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data": {"children": [
			{"data": {"title": "record growth", "created_utc": %d}}
		]}}`, stale)
	}))
	defer srv.Close()

	analyzer := NewRedditAnalyzer(srv.URL, "tradepilot-test/1.0", NewLexiconScorer())

	result, err := analyzer.Analyze(context.Background(), "AAPL", 24*time.Hour)
	require.ErrorIs(t, err, ErrNoData)
	assert.False(t, result.Available)
}

func TestRedditAnalyzerNoCredentials(t *testing.T) {
	analyzer := NewRedditAnalyzer("http://unused", "", NewLexiconScorer())

	result, err := analyzer.Analyze(context.Background(), "AAPL", 24*time.Hour)
	require.ErrorIs(t, err, ErrNoData)
	assert.False(t, result.Available)
}
