package intake

import (
	"strings"

	"github.com/ladywillingdontech-stack/healthai/pkg"
)

// Verdict is the outcome of classifying the accumulated symptom text.
type Verdict struct {
	Level  pkg.AlertLevel
	Reason string
}

// Classify maps cumulative symptom text to an urgency verdict.  Red patterns
// are checked first and any match wins immediately, independent of yellow
// matches.  The function is pure and idempotent: identical input always
// yields the identical verdict, so it is safe to re-run on every
// symptom-phase turn.
func Classify(rules Rules, symptomText string) Verdict {
	text := strings.ToLower(symptomText)
	for _, p := range rules.RedPatterns {
		if strings.Contains(text, strings.ToLower(p)) {
			return Verdict{Level: pkg.AlertRed, Reason: "matched emergency pattern: " + p}
		}
	}
	for _, p := range rules.YellowPatterns {
		if strings.Contains(text, strings.ToLower(p)) {
			return Verdict{Level: pkg.AlertYellow, Reason: "matched urgent pattern: " + p}
		}
	}
	return Verdict{Level: pkg.AlertNone}
}

// symptomText concatenates every symptom-phase answer collected so far with
// the latest inbound text.  Classification always sees the cumulative
// picture, not just the newest message.
func symptomText(s *pkg.Session, inbound string) string {
	var b strings.Builder
	for id, v := range s.PatientData {
		if !strings.HasPrefix(id, "symptom_") {
			continue
		}
		b.WriteString(v.Text)
		b.WriteString("\n")
	}
	b.WriteString(inbound)
	return b.String()
}
