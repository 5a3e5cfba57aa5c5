package intake

import (
	"strconv"
	"strings"
	"time"

	"github.com/ladywillingdontech-stack/healthai/pkg"
)

// BindResult is the explicit outcome of binding inbound text to the pending
// field.  "Needs retry" is a state, not an error: the machine re-issues the
// same question within the configured bound.
type BindResult int

const (
	BindApplied BindResult = iota
	BindNeedsRetry
)

// InstructionKind tells the turn processor what kind of outbound text to
// produce for the patient.
type InstructionKind int

const (
	// InstructionAsk requests NLG phrasing for the next field.
	InstructionAsk InstructionKind = iota
	// InstructionReask re-issues the question for the pending field after
	// an unparseable answer.
	InstructionReask
	// InstructionHandoff escalates to a human after the re-ask bound is
	// exhausted.
	InstructionHandoff
	// InstructionClose finalizes the session: synthesize the EMR and send
	// the closing summary cue (plus the alert message if applicable).
	InstructionClose
	// InstructionAlreadyClosed acknowledges a message that arrived after
	// the session reached its terminal phase.  Nothing is persisted.
	InstructionAlreadyClosed
)

// Instruction is the structured outbound decision handed to the external
// NLG collaborator.  The engine never generates patient-facing prose itself.
type Instruction struct {
	Kind  InstructionKind
	Phase pkg.Phase
	Field FieldSlot
	Alert pkg.AlertStatus
	Data  map[string]pkg.FieldValue
}

// Machine owns the authoritative phase transition logic.  ProcessTurn is
// deterministic given the session snapshot and inbound text: no hidden
// global state influences the decision.
type Machine struct {
	rules Rules
	now   func() time.Time
}

// NewMachine constructs a phase state machine over the given rules.
func NewMachine(rules Rules) *Machine {
	return &Machine{rules: rules, now: time.Now}
}

// Rules exposes the active questionnaire configuration.
func (m *Machine) Rules() Rules { return m.rules }

// ProcessTurn applies one inbound patient message to a session and decides
// the next outbound instruction.  It operates on a deep copy: the caller's
// snapshot is never mutated, so a failed turn can be discarded and retried
// safely.  The returned session has its version incremented and is ready for
// a compare-and-swap persist.
func (m *Machine) ProcessTurn(sess *pkg.Session, inbound string) (*pkg.Session, Instruction, error) {
	if sess.Phase == pkg.PhaseClosed {
		return sess, Instruction{
			Kind:  InstructionAlreadyClosed,
			Phase: pkg.PhaseClosed,
			Alert: sess.Alert,
		}, nil
	}
	if sess.Phase.Ordinal() < 0 {
		return sess, Instruction{}, ErrInvariant
	}

	s := sess.Clone()
	now := m.now()
	s.MessageLog = append(s.MessageLog, pkg.Message{
		Sender:    pkg.SenderPatient,
		Text:      inbound,
		CreatedAt: now,
	})

	// Re-evaluate urgency over the cumulative symptom text.  Merge is
	// monotone, so duplicate deliveries can never lower the severity.
	if s.Phase == pkg.PhaseSymptoms {
		v := Classify(m.rules, symptomText(s, inbound))
		s.Alert.Merge(v.Level, v.Reason)
	}

	needsRetry := false
	var pending FieldSlot
	if s.PendingField != "" {
		slot, ok := pendingSlot(m.rules, s)
		if !ok {
			return sess, Instruction{}, ErrInvariant
		}
		pending = slot
		switch bindField(slot, inbound, s) {
		case BindApplied:
			s.CompletedFields[slot.ID] = true
			s.PendingField = ""
			s.RetryCount = 0
		case BindNeedsRetry:
			needsRetry = true
		}
	}

	// Safety takes precedence over completeness: a red verdict during
	// Symptoms jumps straight to Summary with fields left unanswered,
	// even when the triggering message failed to bind.
	if s.Phase == pkg.PhaseSymptoms && s.Alert.Level == pkg.AlertRed {
		s.Phase = pkg.PhaseSummary
		s.CompletedFields = map[string]bool{}
		s.PendingField = ""
		s.RetryCount = 0
		needsRetry = false
	}

	if needsRetry {
		s.RetryCount++
		kind := InstructionReask
		if s.RetryCount > m.rules.MaxReasks {
			kind = InstructionHandoff
		}
		m.finalize(s, now)
		return s, Instruction{
			Kind:  kind,
			Phase: s.Phase,
			Field: pending,
			Alert: s.Alert,
			Data:  s.PatientData,
		}, nil
	}

	for s.Phase != pkg.PhaseSummary && phaseComplete(m.rules, s) {
		s.Phase = s.Phase.Next()
		s.CompletedFields = map[string]bool{}
		s.PendingField = ""
		s.RetryCount = 0
	}

	if s.Phase == pkg.PhaseSummary {
		s.Phase = pkg.PhaseClosed
		m.finalize(s, now)
		return s, Instruction{
			Kind:  InstructionClose,
			Phase: pkg.PhaseClosed,
			Alert: s.Alert,
			Data:  s.PatientData,
		}, nil
	}

	slot, ok := NextField(m.rules, s)
	if !ok {
		// The advance loop only stops on a phase with an open field.
		return sess, Instruction{}, ErrInvariant
	}
	s.PendingField = slot.ID
	s.RetryCount = 0
	m.finalize(s, now)
	return s, Instruction{
		Kind:  InstructionAsk,
		Phase: s.Phase,
		Field: slot,
		Alert: s.Alert,
		Data:  s.PatientData,
	}, nil
}

func (m *Machine) finalize(s *pkg.Session, now time.Time) {
	s.Version++
	s.UpdatedAt = now
}

// pendingSlot resolves the kind of the session's pending field from the
// rules, since only the identifier is persisted.
func pendingSlot(rules Rules, s *pkg.Session) (FieldSlot, bool) {
	id := s.PendingField
	for _, f := range rules.OnboardingFields {
		if f.ID == id {
			return f, true
		}
	}
	for _, f := range rules.DemographicFields {
		if f.ID == id {
			return f, true
		}
	}
	if strings.HasPrefix(id, moreSymptomsPrefix) {
		return FieldSlot{ID: id, Kind: pkg.KindConfirm}, true
	}
	if strings.HasPrefix(id, "symptom_") {
		if dot := strings.IndexByte(id, '.'); dot > 0 {
			for _, f := range rules.SymptomSlots {
				if f.ID == id[dot+1:] {
					return FieldSlot{ID: id, Kind: f.Kind}, true
				}
			}
		}
	}
	return FieldSlot{}, false
}

// bindField validates the inbound text against the slot's schema and stores
// it in the session's patient data.  Unparseable or empty input leaves the
// data untouched and reports a retry; a duplicate answer to an
// already-completed field simply overwrites the value.
func bindField(slot FieldSlot, text string, s *pkg.Session) BindResult {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return BindNeedsRetry
	}
	switch slot.Kind {
	case pkg.KindNumber:
		n, ok := parseNumber(trimmed)
		if !ok {
			return BindNeedsRetry
		}
		s.PatientData[slot.ID] = pkg.FieldValue{Kind: pkg.KindNumber, Number: n}
	case pkg.KindConfirm:
		if !isAffirmative(trimmed) && !isNegative(trimmed) {
			return BindNeedsRetry
		}
		s.PatientData[slot.ID] = pkg.FieldValue{Kind: pkg.KindConfirm, Text: trimmed}
	default:
		s.PatientData[slot.ID] = pkg.FieldValue{Kind: pkg.KindText, Text: trimmed}
	}
	return BindApplied
}

// parseNumber accepts a bare integer or an integer embedded in a short
// sentence ("I am 35 years old").
func parseNumber(text string) (int, bool) {
	if n, err := strconv.Atoi(text); err == nil {
		return n, true
	}
	start := -1
	for i, r := range text {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n, err := strconv.Atoi(text[start:i])
			return n, err == nil
		}
	}
	if start >= 0 {
		n, err := strconv.Atoi(text[start:])
		return n, err == nil
	}
	return 0, false
}
