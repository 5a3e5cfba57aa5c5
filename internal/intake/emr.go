package intake

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ladywillingdontech-stack/healthai/pkg"
)

// NLG is the natural-language generation collaborator.  The engine supplies
// structured instructions and receives patient-facing prose back; it never
// writes prose itself.  Calls must be bounded by the caller's context.
type NLG interface {
	// Question phrases the next intake question for the given field slot.
	Question(ctx context.Context, phase pkg.Phase, field FieldSlot, data map[string]pkg.FieldValue) (string, error)
	// Narrative produces the clinical narrative for a finalized record
	// from the structured patient data, never from raw free text alone.
	Narrative(ctx context.Context, data map[string]pkg.FieldValue, alert pkg.AlertStatus) (string, error)
}

// fallbackNarrative is recorded when the NLG collaborator is unavailable at
// closing time and the alert still has to go out.
const fallbackNarrative = "Narrative unavailable; see structured intake data."

// Synthesizer freezes a closing session into an immutable EMR snapshot.
type Synthesizer struct {
	nlg NLG
	now func() time.Time
}

// NewSynthesizer constructs an EMR synthesizer over the given NLG
// collaborator.
func NewSynthesizer(nlg NLG) *Synthesizer {
	return &Synthesizer{nlg: nlg, now: time.Now}
}

// Synthesize builds the EMR for a session transitioning into Closed.  The
// patient data and alert status are frozen as of this instant and assigned a
// new unique identifier.  When the narrative call fails, the returned EMR is
// still complete (with a placeholder narrative) alongside the error, so the
// caller can choose to prioritise alert delivery over prose quality.
// Exactly-once semantics are enforced by the turn processor against the EMR
// store, not here.
func (sy *Synthesizer) Synthesize(ctx context.Context, sess *pkg.Session) (*pkg.EMR, error) {
	data := freezeData(sess)
	emr := &pkg.EMR{
		ID:        uuid.New().String(),
		SessionID: sess.ID,
		PatientID: sess.PatientID,
		Data:      data,
		Alert:     sess.Alert,
		CreatedAt: sy.now(),
	}
	narrative, err := sy.nlg.Narrative(ctx, data, sess.Alert)
	if err != nil {
		emr.Narrative = fallbackNarrative
		return emr, err
	}
	emr.Narrative = narrative
	return emr, nil
}

// freezeData copies the session's patient data and folds the per-slot
// symptom answers into structured symptom entries.
func freezeData(sess *pkg.Session) map[string]pkg.FieldValue {
	data := make(map[string]pkg.FieldValue, len(sess.PatientData))
	entries := map[string]*pkg.SymptomEntry{}
	for id, v := range sess.PatientData {
		if !strings.HasPrefix(id, "symptom_") {
			data[id] = v
			continue
		}
		dot := strings.IndexByte(id, '.')
		if dot < 0 {
			data[id] = v
			continue
		}
		key := id[:dot]
		entry := entries[key]
		if entry == nil {
			entry = &pkg.SymptomEntry{}
			entries[key] = entry
		}
		switch id[dot+1:] {
		case "symptom":
			entry.Name = v.Text
		case "duration":
			entry.Duration = v.Text
		case "detail":
			entry.Detail = v.Text
		}
	}
	for key, entry := range entries {
		data[key] = pkg.FieldValue{Kind: pkg.KindSymptom, Symptom: entry}
	}
	return data
}
