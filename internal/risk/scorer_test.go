package risk

import (
	"reflect"
	"testing"

	"github.com/calmlinehq/calmline/internal/lexicon"
)

func TestScoreEmptyInput(t *testing.T) {
	lex := lexicon.Default()
	for _, text := range []string{"", "   ", "\n\t"} {
		got := Score(text, lex)
		if got.Score != 0 {
			t.Fatalf("Score(%q).Score = %v, want 0", text, got.Score)
		}
		if len(got.Tags) != 0 {
			t.Fatalf("Score(%q).Tags = %v, want empty", text, got.Tags)
		}
		if got.Risky {
			t.Fatalf("Score(%q).Risky = true, want false", text)
		}
	}
}

func TestScoreKeywordTiers(t *testing.T) {
	lex := lexicon.Default()

	tests := []struct {
		name      string
		text      string
		wantScore float64
		wantTags  []string
		wantRisky bool
	}{
		{
			name:      "critical keyword",
			text:      "I have been thinking about suicide",
			wantScore: 1.0,
			wantTags:  []string{"critical:suicide"},
			wantRisky: true,
		},
		{
			name:      "high keyword",
			text:      "everything feels hopeless",
			wantScore: 0.7,
			wantTags:  []string{"high:hopeless"},
			wantRisky: true,
		},
		{
			name:      "moderate keyword alone stays below threshold",
			text:      "I feel sad today",
			wantScore: 0.3,
			wantTags:  []string{"moderate:sad"},
			wantRisky: false,
		},
		{
			name:      "moderate plus sentiment reaches threshold",
			text:      "I feel depressed and everything is terrible",
			wantScore: 0.5,
			wantTags:  []string{"moderate:depressed"},
			wantRisky: true,
		},
		{
			name:      "sentiment only produces no tags",
			text:      "today was bad and terrible",
			wantScore: 0.4,
			wantTags:  []string{},
			wantRisky: false,
		},
		{
			name:      "case folding",
			text:      "I Feel HOPELESS",
			wantScore: 0.7,
			wantTags:  []string{"high:hopeless"},
			wantRisky: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.text, lex)
			if got.Score != tt.wantScore {
				t.Fatalf("Score = %v, want %v", got.Score, tt.wantScore)
			}
			if !reflect.DeepEqual(got.Tags, tt.wantTags) {
				t.Fatalf("Tags = %v, want %v", got.Tags, tt.wantTags)
			}
			if got.Risky != tt.wantRisky {
				t.Fatalf("Risky = %v, want %v", got.Risky, tt.wantRisky)
			}
		})
	}
}

func TestScoreClampsAtOne(t *testing.T) {
	got := Score("I want to kill myself and end it all", lexicon.Default())
	if got.Score != 1.0 {
		t.Fatalf("Score = %v, want clamp at 1.0", got.Score)
	}
	if len(got.Tags) != 2 {
		t.Fatalf("Tags = %v, want two critical tags", got.Tags)
	}
	if !got.Risky {
		t.Fatalf("Risky = false, want true")
	}
}

func TestScoreDeterministic(t *testing.T) {
	lex := lexicon.Default()
	text := "I feel hopeless and alone, everything is awful"
	first := Score(text, lex)
	for i := 0; i < 10; i++ {
		if got := Score(text, lex); !reflect.DeepEqual(got, first) {
			t.Fatalf("Score() = %+v, want %+v on repeat %d", got, first, i)
		}
	}
}

func TestBand(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{1.0, SeverityCritical},
		{0.8, SeverityCritical},
		{0.79, SeverityHigh},
		{0.6, SeverityHigh},
		{0.59, SeverityModerate},
		{0.0, SeverityModerate},
	}
	for _, tt := range tests {
		if got := Band(tt.score); got != tt.want {
			t.Fatalf("Band(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
