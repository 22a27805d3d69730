package sentiment

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreFiling(t *testing.T) {
	tests := []struct {
		name        string
		form        string
		description string
		expected    float64
	}{
		{
			name:     "8-K neutral base",
			form:     "8-K",
			expected: 0,
		},
		{
			name:     "Quarterly report base",
			form:     "10-Q",
			expected: 0.1,
		},
		{
			name:     "Registration statement base",
			form:     "S-1",
			expected: 0.3,
		},
		{
			name:     "13D stake base",
			form:     "SC 13D",
			expected: 0.2,
		},
		{
			name:        "Positive keywords add",
			form:        "10-Q",
			description: "Record growth and strong results",
			expected:    0.1 + 3*0.2,
		},
		{
			name:        "Negative keywords subtract",
			form:        "10-K",
			description: "Impairment and restructuring charges",
			expected:    0.1 - 2*0.2,
		},
		{
			name:        "Clamped at negative one",
			form:        "8-K",
			description: "investigation lawsuit restructuring layoff warning concern",
			expected:    -1,
		},
		{
			name:        "Clamped at positive one",
			form:        "S-1",
			description: "record growth strong dividend buyback",
			expected:    1,
		},
		{
			name:     "Unknown form starts neutral",
			form:     "DEF 14A",
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, scoreFiling(tt.form, tt.description), 0.0001)
		})
	}
}

func secTestServer(t *testing.T, submissions string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, r.Header.Get("User-Agent"))

		switch r.URL.Path {
		case "/files/company_tickers.json":
			fmt.Fprint(w, `{"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}}`)
		case "/submissions/CIK0000320193.json":
			fmt.Fprint(w, submissions)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestSECAnalyzer(t *testing.T) {
	today := time.Now().Format("2006-01-02")
	submissions := fmt.Sprintf(`{"filings": {"recent": {
		"form": ["10-Q", "8-K"],
		"filingDate": ["%s", "%s"],
		"primaryDocDescription": ["Quarterly report with record growth", ""]
	}}}`, today, today)

	srv := secTestServer(t, submissions)
	defer srv.Close()

	analyzer := NewSECAnalyzer(srv.URL, "tradepilot test@example.com")

	result, err := analyzer.Analyze(context.Background(), "AAPL", 30*24*time.Hour)
	require.NoError(t, err)
	assert.True(t, result.Available)
	assert.Equal(t, SourceSEC, result.Source)

	// 10-Q: 0.1 base + 0.2 record + 0.2 growth = 0.5; 8-K: 0. Average 0.25.
	assert.InDelta(t, 0.25, result.Score, 0.0001)
	assert.Equal(t, CategoryPositive, result.Category)
	assert.InDelta(t, 0.2, result.Confidence, 0.0001) // 2 of 10 filings
	assert.Equal(t, 2, result.ItemCount)
	assert.Equal(t, "0000320193", result.Details["cik"])
}

func TestSECAnalyzerCIKCached(t *testing.T) {
	today := time.Now().Format("2006-01-02")
	submissions := fmt.Sprintf(`{"filings": {"recent": {
		"form": ["8-K"], "filingDate": ["%s"], "primaryDocDescription": [""]
	}}}`, today)

	var tickerHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/company_tickers.json":
			tickerHits++
			fmt.Fprint(w, `{"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}}`)
		case "/submissions/CIK0000320193.json":
			fmt.Fprint(w, submissions)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	analyzer := NewSECAnalyzer(srv.URL, "tradepilot test@example.com")
	ctx := context.Background()

	_, err := analyzer.Analyze(ctx, "AAPL", 30*24*time.Hour)
	require.NoError(t, err)
	_, err = analyzer.Analyze(ctx, "AAPL", 30*24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 1, tickerHits)
}

func TestSECAnalyzerUnknownTicker(t *testing.T) {
	srv := secTestServer(t, `{}`)
	defer srv.Close()

	analyzer := NewSECAnalyzer(srv.URL, "tradepilot test@example.com")

	result, err := analyzer.Analyze(context.Background(), "ZZZZ", 30*24*time.Hour)
	require.ErrorIs(t, err, ErrNoData)
	assert.False(t, result.Available)
}

func TestSECAnalyzerCryptoNoData(t *testing.T) {
	analyzer := NewSECAnalyzer("http://unused", "tradepilot test@example.com")

	result, err := analyzer.Analyze(context.Background(), "BTC/USD", 30*24*time.Hour)
	require.ErrorIs(t, err, ErrNoData)
	assert.False(t, result.Available)
}

func TestSECAnalyzerStaleFilingsExcluded(t *testing.T) {
	submissions := `{"filings": {"recent": {
		"form": ["10-K"], "filingDate": ["2020-01-15"], "primaryDocDescription": ["Annual report"]
	}}}`

	srv := secTestServer(t, submissions)
	defer srv.Close()

	analyzer := NewSECAnalyzer(srv.URL, "tradepilot test@example.com")

	result, err := analyzer.Analyze(context.Background(), "AAPL", 30*24*time.Hour)
	require.ErrorIs(t, err, ErrNoData)
	assert.False(t, result.Available)
}
