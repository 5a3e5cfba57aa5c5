package pkg

import "time"

// Phase identifies a stage of the intake dialogue.  Phases are ordered and a
// session only ever moves forward through them; Closed is terminal.
type Phase string

const (
	PhaseOnboarding   Phase = "onboarding"
	PhaseDemographics Phase = "demographics"
	PhaseSymptoms     Phase = "symptoms"
	PhaseSummary      Phase = "summary"
	PhaseClosed       Phase = "closed"
)

var phaseOrder = []Phase{
	PhaseOnboarding,
	PhaseDemographics,
	PhaseSymptoms,
	PhaseSummary,
	PhaseClosed,
}

// Ordinal returns the position of the phase in the fixed intake order.
// Unknown phases sort before Onboarding so they can never win a comparison.
func (p Phase) Ordinal() int {
	for i, ph := range phaseOrder {
		if ph == p {
			return i
		}
	}
	return -1
}

// Next returns the phase that follows p in the intake order.  Closed is its
// own successor.
func (p Phase) Next() Phase {
	i := p.Ordinal()
	if i < 0 || i >= len(phaseOrder)-1 {
		return PhaseClosed
	}
	return phaseOrder[i+1]
}

// AlertLevel is the coarse urgency classification derived from reported
// symptoms.
type AlertLevel string

const (
	AlertNone   AlertLevel = "none"
	AlertYellow AlertLevel = "yellow"
	AlertRed    AlertLevel = "red"
)

// Severity maps an alert level onto an integer for monotone comparisons.
func (l AlertLevel) Severity() int {
	switch l {
	case AlertYellow:
		return 1
	case AlertRed:
		return 2
	default:
		return 0
	}
}

// AlertStatus carries the current urgency verdict for a session.  The level
// only ever moves toward higher severity.
type AlertStatus struct {
	Level  AlertLevel `json:"level"`
	Reason string     `json:"reason,omitempty"`
}

// Merge raises the status to the given verdict if it is more severe.  A less
// severe verdict never overwrites an earlier one.
func (a *AlertStatus) Merge(level AlertLevel, reason string) {
	if level.Severity() > a.Level.Severity() {
		a.Level = level
		a.Reason = reason
	}
}

// MessageSender describes who authored a message.  There are only two
// senders on the intake channel: the patient and the bot.
type MessageSender string

const (
	SenderPatient MessageSender = "patient"
	SenderBot     MessageSender = "bot"
)

// Message is one entry in a session's append-only message log.
type Message struct {
	Sender    MessageSender `json:"sender"`
	Text      string        `json:"text"`
	CreatedAt time.Time     `json:"created_at"`
}

// ValueKind tags the variant stored in a FieldValue.
type ValueKind string

const (
	KindText    ValueKind = "text"
	KindNumber  ValueKind = "number"
	KindConfirm ValueKind = "confirm"
	KindSymptom ValueKind = "symptom"
)

// SymptomEntry is one reported symptom with its follow-up details.
type SymptomEntry struct {
	Name     string `json:"name"`
	Duration string `json:"duration,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// FieldValue is a tagged variant holding a collected answer.  The schema per
// field identifier is fixed by the intake rules; values are validated when
// the inbound text is bound to the field.
type FieldValue struct {
	Kind    ValueKind     `json:"kind"`
	Text    string        `json:"text,omitempty"`
	Number  int           `json:"number,omitempty"`
	Symptom *SymptomEntry `json:"symptom,omitempty"`
}

// Session is the per-patient conversation state persisted across turns.
// Version is an optimistic concurrency token: every successful mutation
// increments it, and the store only accepts a write whose expected version
// matches the stored one.
type Session struct {
	ID              string                `json:"id"`
	PatientID       string                `json:"patient_id"`
	Phase           Phase                 `json:"phase"`
	CompletedFields map[string]bool       `json:"completed_fields"`
	PatientData     map[string]FieldValue `json:"patient_data"`
	MessageLog      []Message             `json:"message_log"`
	Alert           AlertStatus           `json:"alert_status"`
	PendingField    string                `json:"pending_field,omitempty"`
	RetryCount      int                   `json:"retry_count"`
	Version         int64                 `json:"version"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// Clone returns a deep copy of the session.  The turn machinery mutates only
// copies so that a failed turn leaves the loaded snapshot untouched.
func (s *Session) Clone() *Session {
	c := *s
	c.CompletedFields = make(map[string]bool, len(s.CompletedFields))
	for k, v := range s.CompletedFields {
		c.CompletedFields[k] = v
	}
	c.PatientData = make(map[string]FieldValue, len(s.PatientData))
	for k, v := range s.PatientData {
		if v.Symptom != nil {
			entry := *v.Symptom
			v.Symptom = &entry
		}
		c.PatientData[k] = v
	}
	c.MessageLog = make([]Message, len(s.MessageLog))
	copy(c.MessageLog, s.MessageLog)
	return &c
}

// EMR is the finalized, immutable clinical record produced when a session
// closes.  It is written exactly once and never updated; a new intake
// produces a new EMR rather than editing an existing one.
type EMR struct {
	ID        string                `json:"id"`
	SessionID string                `json:"session_id"`
	PatientID string                `json:"patient_id"`
	Data      map[string]FieldValue `json:"data"`
	Alert     AlertStatus           `json:"alert_status"`
	Narrative string                `json:"narrative"`
	CreatedAt time.Time             `json:"created_at"`
}
