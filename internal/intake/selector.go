package intake

import (
	"fmt"
	"strings"

	"github.com/ladywillingdontech-stack/healthai/pkg"
)

// selector.go implements the question selector: a pure mapping from
// (phase, completed fields, patient data) to the next unanswered required
// field.  Field priority within a phase is the fixed configuration order,
// never data-dependent, so repeated evaluation over the same session is
// reproducible.

// moreSymptomsPrefix names the confirm slot asked after each completed
// symptom entry ("is there anything else bothering you?").
const moreSymptomsPrefix = "more_symptoms_"

// NextField returns the next required field for the session's current phase,
// or ok=false when the phase's required-field set is already covered by the
// session's completed fields.
func NextField(rules Rules, s *pkg.Session) (FieldSlot, bool) {
	switch s.Phase {
	case pkg.PhaseOnboarding:
		return nextFromList(rules.OnboardingFields, s.CompletedFields)
	case pkg.PhaseDemographics:
		return nextFromList(rules.DemographicFields, s.CompletedFields)
	case pkg.PhaseSymptoms:
		return nextSymptomSlot(rules, s)
	default:
		// Summary and Closed have no questions left to ask.
		return FieldSlot{}, false
	}
}

func nextFromList(fields []FieldSlot, completed map[string]bool) (FieldSlot, bool) {
	for _, f := range fields {
		if !completed[f.ID] {
			return f, true
		}
	}
	return FieldSlot{}, false
}

// nextSymptomSlot walks the open-ended symptom entries.  Each entry is a
// fixed sequence of sub-slots (symptom, duration, detail) followed by a
// confirm slot; a negative confirm answer or the configured maximum entry
// count completes the phase.
func nextSymptomSlot(rules Rules, s *pkg.Session) (FieldSlot, bool) {
	for i := 1; i <= rules.MaxSymptoms; i++ {
		for _, sub := range rules.SymptomSlots {
			id := SymptomFieldID(i, sub.ID)
			if !s.CompletedFields[id] {
				return FieldSlot{ID: id, Kind: sub.Kind}, true
			}
		}
		if i == rules.MaxSymptoms {
			// Entry cap reached; no confirm slot for the last entry.
			return FieldSlot{}, false
		}
		moreID := moreSymptomsPrefix + fmt.Sprint(i)
		if !s.CompletedFields[moreID] {
			return FieldSlot{ID: moreID, Kind: pkg.KindConfirm}, true
		}
		if v, ok := s.PatientData[moreID]; ok && !isAffirmative(v.Text) {
			return FieldSlot{}, false
		}
	}
	return FieldSlot{}, false
}

// SymptomFieldID builds the field identifier for a sub-slot of the i-th
// symptom entry, e.g. "symptom_2.duration".
func SymptomFieldID(i int, sub string) string {
	return fmt.Sprintf("symptom_%d.%s", i, sub)
}

// phaseComplete reports whether the current phase has no remaining required
// fields.
func phaseComplete(rules Rules, s *pkg.Session) bool {
	_, ok := NextField(rules, s)
	return !ok
}

var affirmatives = []string{"yes", "yeah", "yep", "sure", "more", "also", "another"}
var negatives = []string{"no", "nope", "nothing", "none", "that's all", "thats all", "done"}

// isAffirmative reports whether a confirm answer reads as "yes".  Anything
// not recognisably affirmative counts as "no"; binding has already rejected
// answers that match neither list.
func isAffirmative(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, a := range affirmatives {
		if strings.Contains(t, a) {
			return true
		}
	}
	return false
}

func isNegative(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, n := range negatives {
		if strings.Contains(t, n) {
			return true
		}
	}
	return false
}
