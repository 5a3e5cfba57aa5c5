package intake

import "github.com/ladywillingdontech-stack/healthai/pkg"

// replies.go holds the fixed patient-facing texts the engine may send
// without consulting the NLG collaborator: failure fallbacks and the closing
// advice per alert level.  Question phrasing always goes through NLG.

const (
	// RetryReply is sent when a turn fails for a transient reason.  The
	// inbound message was not applied, so the patient can simply resend.
	RetryReply = "Sorry, something went wrong on our side. Please send your message again."

	// HandoffReply is sent after the re-ask bound for a field is
	// exhausted.  A member of staff follows up on the open session.
	HandoffReply = "I'm having trouble understanding your answer. A member of our medical staff will contact you shortly to continue."

	// ClosedReply acknowledges messages that arrive after the intake has
	// already been finalized.
	ClosedReply = "Your intake is already complete and your record has been forwarded to the clinic. Please contact them directly for anything further."

	// closingRed is always delivered when a red alert closed the session,
	// even if record rendering or storage fails afterwards.
	closingRed = "Based on what you described, you should seek medical attention immediately. Please go to the nearest emergency department or call emergency services now. Your intake record has been forwarded to the clinic."

	closingYellow = "Thank you. Based on what you described, you should see a doctor soon, though this does not appear to be an emergency. Your intake record has been forwarded to the clinic."

	closingNone = "Thank you, that completes your intake. Your record has been forwarded to the clinic and they will be in touch."
)

// ClosingReply returns the closing summary cue for the given alert level.
func ClosingReply(level pkg.AlertLevel) string {
	switch level {
	case pkg.AlertRed:
		return closingRed
	case pkg.AlertYellow:
		return closingYellow
	default:
		return closingNone
	}
}
