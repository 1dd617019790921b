// Package guardrail sanitizes inbound patient text, gates unsafe content,
// and validates AI-generated replies before they reach the user.
package guardrail

import (
	"regexp"
	"strings"

	"github.com/calmlinehq/calmline/internal/lexicon"
)

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}\b`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-?\d{2}-?\d{4}\b`)
	cardPattern  = regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)
	addrPattern  = regexp.MustCompile(`(?i)\b\d+\s+[A-Za-z\s]+(?:Street|St|Avenue|Ave|Road|Rd|Drive|Dr|Lane|Ln|Boulevard|Blvd)\b`)
)

// Redaction placeholders. Sanitization is idempotent: placeholders contain
// nothing the patterns above can match.
const (
	EmailRedacted    = "[EMAIL_REDACTED]"
	PhoneRedacted    = "[PHONE_REDACTED]"
	SSNRedacted      = "[SSN_REDACTED]"
	CardRedacted     = "[CARD_REDACTED]"
	AddressRedacted  = "[ADDRESS_REDACTED]"
	ContentFiltered  = "[CONTENT_FILTERED]"
	ResponseFiltered = "[RESPONSE_FILTERED]"
)

// MaxPIIMatches is the number of PII hits tolerated before the safety gate
// treats the message as unsafe oversharing.
const MaxPIIMatches = 2

// Fixed user-facing notices.
const (
	CrisisWarning = "CRISIS DETECTED: If you're having thoughts of self-harm, " +
		"please contact emergency services (911) or a crisis hotline immediately."
	RedactionNotice = "Personal information has been removed for your privacy and security."

	DisclaimerSuffix = "\n\nThis is not medical advice. Please consult a healthcare professional."
	ReassuranceSuffix = "\n\nRemember: You are not alone, and help is available. " +
		"Consider reaching out to a mental health professional."
)

// Filter applies the PII and content rules derived from a lexicon. Build it
// once at startup; it is safe for concurrent use.
type Filter struct {
	lex     lexicon.Lexicon
	harmful []*regexp.Regexp
	unsafe  []*regexp.Regexp
}

func New(lex lexicon.Lexicon) *Filter {
	f := &Filter{lex: lex}
	for _, kw := range lex.HarmfulKeywords {
		f.harmful = append(f.harmful, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(kw)))
	}
	for _, phrase := range lex.UnsafeSuggestions {
		f.unsafe = append(f.unsafe, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(phrase)))
	}
	return f
}

// SanitizeInput redacts PII and blanks harmful terms from patient text. It
// never fails; text with nothing to redact passes through unchanged.
func (f *Filter) SanitizeInput(text string) string {
	out := normalize(text)

	out = emailPattern.ReplaceAllString(out, EmailRedacted)
	// Run card redaction before phone so card numbers are not partially
	// consumed as phone numbers.
	out = cardPattern.ReplaceAllString(out, CardRedacted)
	out = phonePattern.ReplaceAllString(out, PhoneRedacted)
	out = ssnPattern.ReplaceAllString(out, SSNRedacted)
	out = addrPattern.ReplaceAllString(out, AddressRedacted)

	for _, re := range f.harmful {
		out = re.ReplaceAllString(out, ContentFiltered)
	}

	return strings.TrimSpace(out)
}

// IsSafe reports whether text may go through normal scoring. False means the
// caller must force an immediate maximum-severity escalation.
func (f *Filter) IsSafe(text string) bool {
	lowered := strings.ToLower(normalize(text))
	for _, indicator := range f.lex.CrisisIndicators {
		if strings.Contains(lowered, indicator) {
			return false
		}
	}
	return f.piiMatchCount(text) <= MaxPIIMatches
}

// ValidateResponse redacts unsafe suggestions and leaked PII from an AI
// reply and appends the disclaimer and reassurance suffixes when their
// triggers are present. The two suffixes are independent and can both apply.
func (f *Filter) ValidateResponse(text string) string {
	out := normalize(text)

	for _, re := range f.unsafe {
		out = re.ReplaceAllString(out, ResponseFiltered)
	}

	out = emailPattern.ReplaceAllString(out, EmailRedacted)
	out = phonePattern.ReplaceAllString(out, PhoneRedacted)
	out = ssnPattern.ReplaceAllString(out, SSNRedacted)

	out = strings.TrimSpace(out)
	lowered := strings.ToLower(out)

	for _, trigger := range f.lex.DisclaimerTriggers {
		if strings.Contains(lowered, trigger) {
			out += DisclaimerSuffix
			break
		}
	}
	for _, trigger := range f.lex.HopelessnessTriggers {
		if strings.Contains(lowered, trigger) {
			out += ReassuranceSuffix
			break
		}
	}

	return out
}

// Warning produces the banner shown above the AI reply: a crisis-hotline
// notice when crisis indicators are present, else a redaction notice when
// the text carries redaction placeholders, else empty.
func (f *Filter) Warning(text string) string {
	lowered := strings.ToLower(text)
	for _, indicator := range f.lex.CrisisIndicators {
		if strings.Contains(lowered, indicator) {
			return CrisisWarning
		}
	}
	for _, placeholder := range []string{EmailRedacted, PhoneRedacted, SSNRedacted, CardRedacted, AddressRedacted} {
		if strings.Contains(text, placeholder) {
			return RedactionNotice
		}
	}
	return ""
}

func (f *Filter) piiMatchCount(text string) int {
	text = normalize(text)
	count := 0
	for _, re := range []*regexp.Regexp{emailPattern, phonePattern, ssnPattern, cardPattern} {
		count += len(re.FindAllStringIndex(text, -1))
	}
	return count
}

// normalize strips invalid UTF-8 so malformed input cannot break matching.
func normalize(text string) string {
	return strings.ToValidUTF8(text, "")
}
