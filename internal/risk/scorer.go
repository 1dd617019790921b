// Package risk converts free-text messages into a risk score and tag set.
// Scoring is a pure function of the input text and the static lexicon: no
// I/O, no randomness, identical input always yields identical output.
package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/calmlinehq/calmline/internal/lexicon"
)

// Severity labels used in tags and metric bands.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityModerate = "moderate"
)

// RiskyThreshold is the score at or above which a message escalates.
const RiskyThreshold = 0.5

// Assessment is the result of scoring one message.
type Assessment struct {
	Score float64  `json:"risk_score"`
	Tags  []string `json:"tags"`
	Risky bool     `json:"is_risky"`
}

// Score evaluates text against the lexicon. Empty or whitespace-only input
// yields the zero-risk result, never an error.
func Score(text string, lex lexicon.Lexicon) Assessment {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return Assessment{Tags: []string{}}
	}

	tags := []string{}
	var keywordScore float64

	for _, phrase := range lex.Critical {
		if strings.Contains(lowered, phrase) {
			tags = append(tags, fmt.Sprintf("%s:%s", SeverityCritical, phrase))
			keywordScore += lexicon.WeightCritical
		}
	}
	for _, phrase := range lex.High {
		if strings.Contains(lowered, phrase) {
			tags = append(tags, fmt.Sprintf("%s:%s", SeverityHigh, phrase))
			keywordScore += lexicon.WeightHigh
		}
	}
	for _, phrase := range lex.Moderate {
		if strings.Contains(lowered, phrase) {
			tags = append(tags, fmt.Sprintf("%s:%s", SeverityModerate, phrase))
			keywordScore += lexicon.WeightModerate
		}
	}

	var sentimentScore float64
	for _, word := range lex.NegativeSentiment {
		if strings.Contains(lowered, word) {
			sentimentScore += lexicon.WeightSentiment
		}
	}

	total := keywordScore + sentimentScore
	if total > 1.0 {
		total = 1.0
	}
	total = math.Round(total*100) / 100

	risky := total >= RiskyThreshold || hasCriticalTag(tags)

	return Assessment{
		Score: total,
		Tags:  tags,
		Risky: risky,
	}
}

// Band maps a risk score to the metric label used for escalation counters.
func Band(score float64) string {
	switch {
	case score >= 0.8:
		return SeverityCritical
	case score >= 0.6:
		return SeverityHigh
	default:
		return SeverityModerate
	}
}

func hasCriticalTag(tags []string) bool {
	for _, tag := range tags {
		if strings.HasPrefix(tag, SeverityCritical+":") {
			return true
		}
	}
	return false
}
