// Package executor turns approved decisions into broker orders and keeps
// the on-disk trade journal.
package executor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradepilot/tradepilot/internal/config"
)

// DecisionEntry is one journaled decision, one JSON line per cycle
type DecisionEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	AgentID        string    `json:"agent_id"`
	Symbol         string    `json:"symbol"`
	Action         string    `json:"action"`
	Quantity       float64   `json:"quantity,omitempty"`
	StopLoss       float64   `json:"stop_loss,omitempty"`
	Confidence     float64   `json:"confidence"`
	CombinedScore  float64   `json:"combined_score"`
	SentimentScore float64   `json:"sentiment_score"`
	TechnicalScore float64   `json:"technical_score"`
	Rationale      string    `json:"rationale"`
	Approved       bool      `json:"approved"`
	RejectReason   string    `json:"reject_reason,omitempty"`
	DryRun         bool      `json:"dry_run,omitempty"`
}

// TradeEntry is one journaled fill
type TradeEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	AgentID     string    `json:"agent_id"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	OrderID     string    `json:"order_id"`
	RealizedPnL float64   `json:"realized_pnl,omitempty"`
	DryRun      bool      `json:"dry_run,omitempty"`
}

// Journal appends decision and trade records as JSON lines under logsDir.
// Decisions go to decisions/<agent>_<date>.jsonl, trades to
// trades/<date>.jsonl shared across agents.
type Journal struct {
	mu      sync.Mutex
	logsDir string
	logger  zerolog.Logger
}

// NewJournal creates a journal rooted at logsDir
func NewJournal(logsDir string) *Journal {
	return &Journal{
		logsDir: logsDir,
		logger:  config.NewLogger("executor.journal"),
	}
}

// LogDecision appends a decision entry to the agent's daily decision log
func (j *Journal) LogDecision(entry DecisionEntry) error {
	date := entry.Timestamp.Format("2006-01-02")
	path := filepath.Join(j.logsDir, "decisions", fmt.Sprintf("%s_%s.jsonl", entry.AgentID, date))
	return j.appendLine(path, entry)
}

// LogTrade appends a trade entry to the shared daily trade log
func (j *Journal) LogTrade(entry TradeEntry) error {
	date := entry.Timestamp.Format("2006-01-02")
	path := filepath.Join(j.logsDir, "trades", date+".jsonl")
	return j.appendLine(path, entry)
}

func (j *Journal) appendLine(path string, v any) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create journal dir: %w", err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write journal entry: %w", err)
	}
	return nil
}
