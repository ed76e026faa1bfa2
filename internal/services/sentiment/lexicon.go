package sentiment

import (
	"math"
	"strings"
	"unicode"
)

var positiveTerms = toSet(
	"beat", "beats", "bullish", "buy", "gain", "gains", "growth", "grow", "grows", "surge", "surges",
	"soar", "soars", "rally", "rallies", "record", "strong", "stronger", "upgrade", "upgraded",
	"outperform", "outperforms", "profit", "profitable", "positive", "optimistic", "rise", "rises",
	"rising", "jump", "jumps", "boost", "boosts", "exceed", "exceeds", "expand", "expands",
	"innovative", "breakthrough", "win", "wins", "success", "successful", "recover", "recovery",
	"improve", "improved", "improves", "higher", "upside", "momentum", "dividend", "approval",
)

var negativeTerms = toSet(
	"miss", "misses", "bearish", "sell", "loss", "losses", "decline", "declines", "drop", "drops",
	"plunge", "plunges", "fall", "falls", "falling", "weak", "weaker", "downgrade", "downgraded",
	"underperform", "underperforms", "lawsuit", "probe", "investigation", "fraud", "negative",
	"pessimistic", "cut", "cuts", "layoff", "layoffs", "recall", "warning", "warns", "slump",
	"crash", "risk", "risks", "concern", "concerns", "lower", "downside", "default", "bankruptcy",
	"fine", "fined", "delay", "delayed", "shortfall", "volatile", "tumble", "tumbles",
)

var negators = toSet("not", "no", "never", "without", "hardly", "isn't", "wasn't", "don't", "didn't")

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

// ScoreText counts positive and negative terms (a preceding negator flips the
// term) and returns (pos-neg)/sqrt(pos+neg) clamped to [-1,1], plus the
// number of sentiment-bearing terms.
func ScoreText(text string) (float64, int) {
	pos, neg := 0, 0
	tokens := tokenize(text)
	for i, tok := range tokens {
		_, isPos := positiveTerms[tok]
		_, isNeg := negativeTerms[tok]
		if !isPos && !isNeg {
			continue
		}
		if i > 0 {
			if _, ok := negators[tokens[i-1]]; ok {
				isPos, isNeg = isNeg, isPos
			}
		}
		if isPos {
			pos++
		} else {
			neg++
		}
	}
	total := pos + neg
	if total == 0 {
		return 0, 0
	}
	score := float64(pos-neg) / math.Sqrt(float64(total))
	return math.Max(-1, math.Min(1, score)), total
}
