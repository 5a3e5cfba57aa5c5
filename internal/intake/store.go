package intake

import (
	"context"

	"github.com/ladywillingdontech-stack/healthai/pkg"
)

// SessionStore is the durable mapping from patient identity to session
// state.  Writes go through compare-and-swap on the session version so a
// concurrent mutation is detected rather than silently overwritten.
type SessionStore interface {
	// Load returns the session for a patient, or ErrNotFound.
	Load(ctx context.Context, patientID string) (*pkg.Session, error)
	// Create stores a brand-new session.  ErrConflict is returned when a
	// session for the patient already exists (e.g. a duplicate first
	// delivery raced this one).
	Create(ctx context.Context, sess *pkg.Session) error
	// CompareAndSwap persists the session if the stored version still
	// equals expectedVersion, otherwise returns ErrConflict.
	CompareAndSwap(ctx context.Context, sess *pkg.Session, expectedVersion int64) error
}

// EMRStore is the write-once record store.  There is deliberately no update
// operation.
type EMRStore interface {
	// Put stores a new EMR.  A second record for the same session is
	// rejected with ErrConflict.
	Put(ctx context.Context, emr *pkg.EMR) error
	// GetBySession returns the EMR derived from the given session, or
	// ErrNotFound.
	GetBySession(ctx context.Context, sessionID string) (*pkg.EMR, error)
}

// EventSink receives out-of-band notifications the dialogue produces: a red
// alert that must reach clinical staff, and record finalization events for
// downstream rendering.  Delivery failures never block the patient-facing
// reply.
type EventSink interface {
	RedAlert(ctx context.Context, patientID, reason string) error
	EMRCreated(ctx context.Context, emr *pkg.EMR) error
}
