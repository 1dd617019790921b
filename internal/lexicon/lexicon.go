// Package lexicon holds the static phrase tables used by risk scoring and
// guardrail filtering. The tables are configuration data: loaded once at
// process start and never mutated at runtime.
package lexicon

// Lexicon groups every phrase list the triage pipeline consults. All entries
// are lower case; callers are expected to case-fold input before matching.
type Lexicon struct {
	// Keyword tiers for risk scoring. Each match contributes the tier weight.
	Critical []string
	High     []string
	Moderate []string

	// Negative-sentiment words. Matches contribute to the sentiment
	// accumulator but produce no tag.
	NegativeSentiment []string

	// Phrases that flip the safety gate regardless of score.
	CrisisIndicators []string

	// Terms blanked out of inbound text.
	HarmfulKeywords []string

	// Phrases redacted from AI-generated replies.
	UnsafeSuggestions []string

	// Triggers for the medical-disclaimer suffix on outbound text.
	DisclaimerTriggers []string

	// Triggers for the supportive-reassurance suffix on outbound text.
	HopelessnessTriggers []string
}

// Weights applied per matched keyword tier.
const (
	WeightCritical  = 1.0
	WeightHigh      = 0.7
	WeightModerate  = 0.3
	WeightSentiment = 0.2
)

// Default returns the built-in lexicon.
func Default() Lexicon {
	return Lexicon{
		Critical: []string{
			"suicide", "kill myself", "end it all", "hurt myself", "overdose",
		},
		High: []string{
			"self harm", "cutting", "die", "death", "hopeless", "worthless",
		},
		Moderate: []string{
			"depressed", "anxious", "scared", "alone", "sad",
		},
		NegativeSentiment: []string{
			"bad", "terrible", "awful", "hate", "angry", "frustrated", "pain",
		},
		CrisisIndicators: []string{
			"want to die", "going to kill", "plan to hurt", "suicide plan",
		},
		HarmfulKeywords: []string{
			"violence", "weapon", "bomb", "terrorist", "illegal drugs",
			"prescription abuse", "self-medication", "unprescribed medication",
		},
		UnsafeSuggestions: []string{
			"kill yourself", "end your life", "commit suicide", "hurt yourself",
			"self harm", "overdose", "jump off", "hang yourself", "cut yourself",
			"you should die", "better off dead", "no hope", "give up completely",
		},
		DisclaimerTriggers: []string{
			"diagnose", "prescribe", "medication dosage", "stop taking medication",
			"medical diagnosis", "replace doctor", "substitute for professional",
		},
		HopelessnessTriggers: []string{
			"hopeless", "no point", "nothing helps",
		},
	}
}
