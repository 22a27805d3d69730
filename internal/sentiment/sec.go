package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tradepilot/tradepilot/internal/config"
)

const (
	defaultMaxFilings = 10

	// Fair-access policy for the EDGAR API
	secRequestsPerSecond = 10

	// Average filing score thresholds for the overall label. Filings skew
	// neutral, so the band is wider than the per-item +-0.05.
	secPositiveThreshold = 0.15
	secNegativeThreshold = -0.15

	keywordAdjustment = 0.2
)

var secPositiveKeywords = []string{
	"beat", "exceed", "growth", "record", "strong", "increase", "positive",
	"improvement", "acquisition", "expansion", "dividend", "buyback",
	"outperform", "above expectations", "guidance raise", "upgrade",
}

var secNegativeKeywords = []string{
	"miss", "below", "decline", "weak", "decrease", "negative", "loss",
	"impairment", "restructuring", "layoff", "investigation", "lawsuit",
	"restatement", "concern", "warning", "guidance lower", "downgrade",
}

// formBaseSentiment maps an EDGAR form type to its prior score before
// keyword adjustment. Unknown forms start neutral.
var formBaseSentiment = map[string]float64{
	"8-K":    0,
	"10-Q":   0.1,
	"10-K":   0.1,
	"4":      0,
	"SC 13G": 0.2,
	"SC 13D": 0.2,
	"S-1":    0.3,
}

// SECAnalyzer scores recent EDGAR filings by form type and description keywords
type SECAnalyzer struct {
	client    *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
	maxItems  int
	logger    zerolog.Logger

	mu       sync.RWMutex
	cikCache map[string]string // ticker -> zero-padded CIK
}

type secTickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

type secSubmissions struct {
	Filings struct {
		Recent struct {
			Form        []string `json:"form"`
			FilingDate  []string `json:"filingDate"`
			Description []string `json:"primaryDocDescription"`
		} `json:"recent"`
	} `json:"filings"`
}

// NewSECAnalyzer creates an EDGAR filings analyzer. EDGAR requires a
// descriptive User-Agent; without one the analyzer reports no data.
func NewSECAnalyzer(baseURL, userAgent string) *SECAnalyzer {
	if baseURL == "" {
		baseURL = "https://www.sec.gov"
	}
	return &SECAnalyzer{
		client:    &http.Client{Timeout: 30 * time.Second},
		baseURL:   baseURL,
		userAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Limit(secRequestsPerSecond), secRequestsPerSecond),
		maxItems:  defaultMaxFilings,
		logger:    config.NewLogger("sentiment.sec"),
		cikCache:  make(map[string]string),
	}
}

func (a *SECAnalyzer) Name() string { return SourceSEC }

// Analyze fetches recent filings for the symbol and scores each one.
// Crypto symbols have no CIK and report no data.
func (a *SECAnalyzer) Analyze(ctx context.Context, symbol string, lookback time.Duration) (Result, error) {
	if a.userAgent == "" {
		a.logger.Debug().Str("symbol", symbol).Msg("SEC analyzer not configured")
		return noData(SourceSEC, symbol), ErrNoData
	}
	if strings.Contains(symbol, "/") {
		return noData(SourceSEC, symbol), ErrNoData
	}

	cik, err := a.resolveCIK(ctx, symbol)
	if err != nil {
		return noData(SourceSEC, symbol), fmt.Errorf("failed to resolve CIK for %s: %w", symbol, err)
	}
	if cik == "" {
		return noData(SourceSEC, symbol), ErrNoData
	}

	filings, err := a.fetchFilings(ctx, cik, lookback)
	if err != nil {
		return noData(SourceSEC, symbol), fmt.Errorf("failed to fetch filings: %w", err)
	}
	if len(filings) == 0 {
		return noData(SourceSEC, symbol), ErrNoData
	}

	var sum float64
	forms := make([]string, 0, len(filings))
	for _, f := range filings {
		sum += scoreFiling(f.form, f.description)
		forms = append(forms, f.form)
	}
	avg := sum / float64(len(filings))

	category := CategoryNeutral
	if avg >= secPositiveThreshold {
		category = CategoryPositive
	} else if avg <= secNegativeThreshold {
		category = CategoryNegative
	}

	confidence := float64(len(filings)) / float64(defaultMaxFilings)
	if confidence > 1 {
		confidence = 1
	}

	result := Result{
		Source:     SourceSEC,
		Symbol:     symbol,
		Category:   category,
		Score:      avg,
		Confidence: confidence,
		ItemCount:  len(filings),
		Available:  true,
		Details: map[string]interface{}{
			"filing_count": len(filings),
			"forms":        forms,
			"cik":          cik,
		},
	}

	a.logger.Debug().
		Str("symbol", symbol).
		Str("cik", cik).
		Str("category", category).
		Float64("score", avg).
		Int("filings", len(filings)).
		Msg("SEC sentiment computed")

	return result, nil
}

// scoreFiling starts from the form's base sentiment and moves +-0.2 per
// matched keyword in the description, clamped to [-1, 1].
func scoreFiling(form, description string) float64 {
	score := formBaseSentiment[form]
	desc := strings.ToLower(description)
	for _, kw := range secPositiveKeywords {
		if strings.Contains(desc, kw) {
			score += keywordAdjustment
		}
	}
	for _, kw := range secNegativeKeywords {
		if strings.Contains(desc, kw) {
			score -= keywordAdjustment
		}
	}
	return clamp(score, -1, 1)
}

// resolveCIK maps a ticker to its 10-digit zero-padded CIK, warming the
// cache from the full EDGAR ticker table on first use.
func (a *SECAnalyzer) resolveCIK(ctx context.Context, symbol string) (string, error) {
	ticker := strings.ToUpper(symbol)

	a.mu.RLock()
	cached, ok := a.cikCache[ticker]
	warm := len(a.cikCache) > 0
	a.mu.RUnlock()
	if ok {
		return cached, nil
	}
	if warm {
		return "", nil
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/files/company_tickers.json", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ticker table returned status %d", resp.StatusCode)
	}

	var table map[string]secTickerEntry
	if err := json.NewDecoder(resp.Body).Decode(&table); err != nil {
		return "", fmt.Errorf("failed to decode ticker table: %w", err)
	}

	a.mu.Lock()
	for _, entry := range table {
		a.cikCache[strings.ToUpper(entry.Ticker)] = fmt.Sprintf("%010d", entry.CIK)
	}
	cik := a.cikCache[ticker]
	a.mu.Unlock()

	return cik, nil
}

type secFiling struct {
	form        string
	description string
}

func (a *SECAnalyzer) fetchFilings(ctx context.Context, cik string, lookback time.Duration) ([]secFiling, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/submissions/CIK%s.json", a.baseURL, cik)
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
		return nil, fmt.Errorf("submissions returned status %d", resp.StatusCode)
	}

	var subs secSubmissions
	if err := json.NewDecoder(resp.Body).Decode(&subs); err != nil {
		return nil, fmt.Errorf("failed to decode submissions: %w", err)
	}

	cutoff := time.Now().Add(-lookback)
	recent := subs.Filings.Recent
	var filings []secFiling
	for i, form := range recent.Form {
		if len(filings) >= a.maxItems {
			break
		}
		if i < len(recent.FilingDate) {
			filed, err := time.Parse("2006-01-02", recent.FilingDate[i])
			if err == nil && filed.Before(cutoff) {
				continue
			}
		}
		description := ""
		if i < len(recent.Description) {
			description = recent.Description[i]
		}
		filings = append(filings, secFiling{form: form, description: description})
	}
	return filings, nil
}
