package backtest

import (
	"sort"
	"time"

	"github.com/tradepilot/tradepilot/internal/db"
	"github.com/tradepilot/tradepilot/internal/sentiment"
)

// SentimentFromRecords collapses stored per-source sentiment rows into the
// per-timestamp points the engine joins against bars. Rows sharing a
// timestamp are combined with the standard source weights, normalized over
// the sources actually present, and confidence is the weighted mean.
func SentimentFromRecords(records []db.SentimentRecord) []SentimentPoint {
	if len(records) == 0 {
		return nil
	}

	grouped := make(map[time.Time][]db.SentimentRecord)
	for _, r := range records {
		grouped[r.Timestamp] = append(grouped[r.Timestamp], r)
	}

	points := make([]SentimentPoint, 0, len(grouped))
	for ts, group := range grouped {
		var weightSum, score, confidence float64
		for _, r := range group {
			w := sentiment.DefaultWeights[r.Source]
			if w <= 0 {
				continue
			}
			weightSum += w
			score += r.Score * w
			confidence += r.Confidence * w
		}
		if weightSum == 0 {
			continue
		}
		points = append(points, SentimentPoint{
			Timestamp:  ts,
			Score:      score / weightSum,
			Confidence: confidence / weightSum,
		})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}
