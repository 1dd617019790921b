package guardrail

import (
	"strings"
	"testing"

	"github.com/calmlinehq/calmline/internal/lexicon"
)

func newFilter() *Filter {
	return New(lexicon.Default())
}

func TestSanitizeInputRedactsPII(t *testing.T) {
	f := newFilter()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "email",
			in:   "reach me at jane.doe@example.com please",
			want: "reach me at " + EmailRedacted + " please",
		},
		{
			name: "phone",
			in:   "call me at 555-123-4567",
			want: "call me at " + PhoneRedacted,
		},
		{
			name: "ssn",
			in:   "my ssn is 123-45-6789",
			want: "my ssn is " + SSNRedacted,
		},
		{
			name: "card number not split into a phone match",
			in:   "card 4111 1111 1111 1111 on file",
			want: "card " + CardRedacted + " on file",
		},
		{
			name: "street address",
			in:   "I live at 123 Main Street",
			want: "I live at " + AddressRedacted,
		},
		{
			name: "harmful keyword",
			in:   "he kept a weapon at home",
			want: "he kept a " + ContentFiltered + " at home",
		},
		{
			name: "clean text passes through",
			in:   "I had a rough week at work",
			want: "I had a rough week at work",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.SanitizeInput(tt.in); got != tt.want {
				t.Fatalf("SanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeInputIdempotent(t *testing.T) {
	f := newFilter()

	inputs := []string{
		"email jane@example.com phone 555-123-4567 ssn 123-45-6789",
		"card 4111-1111-1111-1111 at 42 Oak Avenue",
		"there was a weapon involved",
		"nothing sensitive here",
	}
	for _, in := range inputs {
		once := f.SanitizeInput(in)
		twice := f.SanitizeInput(once)
		if once != twice {
			t.Fatalf("SanitizeInput not idempotent:\nonce  = %q\ntwice = %q", once, twice)
		}
	}
}

func TestIsSafe(t *testing.T) {
	f := newFilter()

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"plain text", "I had a hard day", true},
		{"crisis indicator", "I have a plan to hurt someone", false},
		{"crisis indicator want to die", "sometimes I want to die", false},
		{"crisis indicator mixed case", "I WANT TO DIE", false},
		{"two pii matches tolerated", "email a@b.com and phone 555-123-4567", true},
		{"three pii matches unsafe", "email a@b.com, phone 555-123-4567, ssn 123-45-6789", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.IsSafe(tt.in); got != tt.want {
				t.Fatalf("IsSafe(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateResponse(t *testing.T) {
	f := newFilter()

	t.Run("unsafe suggestion redacted", func(t *testing.T) {
		got := f.ValidateResponse("You should just give up completely")
		want := "You should just " + ResponseFiltered
		if got != want {
			t.Fatalf("ValidateResponse = %q, want %q", got, want)
		}
	})

	t.Run("leaked email redacted", func(t *testing.T) {
		got := f.ValidateResponse("You can write to me at bot@example.com")
		if strings.Contains(got, "@") {
			t.Fatalf("ValidateResponse leaked email: %q", got)
		}
		if !strings.Contains(got, EmailRedacted) {
			t.Fatalf("ValidateResponse = %q, missing %q", got, EmailRedacted)
		}
	})

	t.Run("disclaimer suffix", func(t *testing.T) {
		got := f.ValidateResponse("I cannot diagnose your condition")
		if !strings.HasSuffix(got, DisclaimerSuffix) {
			t.Fatalf("ValidateResponse = %q, want disclaimer suffix", got)
		}
	})

	t.Run("reassurance suffix", func(t *testing.T) {
		got := f.ValidateResponse("It can feel like nothing helps right now")
		if !strings.HasSuffix(got, ReassuranceSuffix) {
			t.Fatalf("ValidateResponse = %q, want reassurance suffix", got)
		}
	})

	t.Run("both suffixes apply independently", func(t *testing.T) {
		got := f.ValidateResponse("I can't diagnose why you feel hopeless")
		if !strings.Contains(got, DisclaimerSuffix) {
			t.Fatalf("ValidateResponse = %q, missing disclaimer suffix", got)
		}
		if !strings.HasSuffix(got, ReassuranceSuffix) {
			t.Fatalf("ValidateResponse = %q, want reassurance suffix last", got)
		}
	})

	t.Run("clean reply unchanged", func(t *testing.T) {
		in := "That sounds really difficult. How long have you felt this way?"
		if got := f.ValidateResponse(in); got != in {
			t.Fatalf("ValidateResponse(%q) = %q, want unchanged", in, got)
		}
	})
}

func TestWarning(t *testing.T) {
	f := newFilter()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"crisis text", "I want to die", CrisisWarning},
		{"redacted text", "my email is " + EmailRedacted, RedactionNotice},
		{"crisis wins over redaction", "I want to die, email " + EmailRedacted, CrisisWarning},
		{"plain text", "I had an okay day", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Warning(tt.in); got != tt.want {
				t.Fatalf("Warning(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
