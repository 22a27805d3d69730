package sentiment

import (
	"context"
	"strings"
)

// LexiconScorer is a deterministic word-list scorer. It stands in for a
// heavier NLP backend in tests and offline runs, and serves as the fallback
// when no external scorer is configured.
type LexiconScorer struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

var lexiconPositive = []string{
	"beat", "beats", "exceed", "exceeds", "growth", "record", "strong",
	"surge", "rally", "gain", "gains", "profit", "upgrade", "bullish",
	"outperform", "buyback", "dividend", "expansion", "breakout", "soar",
}

var lexiconNegative = []string{
	"miss", "misses", "decline", "weak", "loss", "losses", "drop", "plunge",
	"crash", "downgrade", "bearish", "lawsuit", "investigation", "layoff",
	"layoffs", "restructuring", "warning", "concern", "selloff", "default",
}

// NewLexiconScorer builds a scorer over the built-in financial word lists
func NewLexiconScorer() *LexiconScorer {
	s := &LexiconScorer{
		positive: make(map[string]struct{}, len(lexiconPositive)),
		negative: make(map[string]struct{}, len(lexiconNegative)),
	}
	for _, w := range lexiconPositive {
		s.positive[w] = struct{}{}
	}
	for _, w := range lexiconNegative {
		s.negative[w] = struct{}{}
	}
	return s
}

// Score tokenizes on whitespace and counts lexicon hits.
// Empty or unmatched text scores fully neutral.
func (s *LexiconScorer) Score(_ context.Context, text string) (Scores, error) {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return Scores{Neutral: 1}, nil
	}

	var pos, neg int
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?'\"()")
		if _, ok := s.positive[w]; ok {
			pos++
		} else if _, ok := s.negative[w]; ok {
			neg++
		}
	}

	total := float64(len(words))
	posFrac := float64(pos) / total
	negFrac := float64(neg) / total
	compound := clamp(posFrac-negFrac, -1, 1)

	return Scores{
		Compound: compound,
		Positive: posFrac,
		Negative: negFrac,
		Neutral:  1 - posFrac - negFrac,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
