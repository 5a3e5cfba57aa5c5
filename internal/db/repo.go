package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/ladywillingdontech-stack/healthai/internal/intake"
	"github.com/ladywillingdontech-stack/healthai/pkg"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

// Repository wraps Postgres-backed session and EMR storage.  Sessions are
// written through compare-and-swap on the version column; EMRs are
// write-once, protected by a unique constraint per session.
type Repository struct {
	DB *sql.DB
}

// NewRepository constructs a new Repository from an existing sql.DB.
// The caller is responsible for managing the DB connection lifecycle.
func NewRepository(db *sql.DB) *Repository { return &Repository{DB: db} }

// Load retrieves the session for a patient.
func (r *Repository) Load(ctx context.Context, patientID string) (*pkg.Session, error) {
	var state []byte
	err := r.DB.QueryRowContext(ctx,
		`SELECT state FROM sessions WHERE patient_id = $1`,
		patientID,
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, intake.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess pkg.Session
	if err := json.Unmarshal(state, &sess); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	return &sess, nil
}

// Create inserts a brand-new session.  A concurrent insert for the same
// patient surfaces as ErrConflict so the caller can reload the winner.
func (r *Repository) Create(ctx context.Context, sess *pkg.Session) error {
	state, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO sessions (id, patient_id, phase, alert_level, state, version, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sess.ID, sess.PatientID, sess.Phase, sess.Alert.Level, state, sess.Version, sess.CreatedAt, sess.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return intake.ErrConflict
	}
	return err
}

// CompareAndSwap persists the session only if the stored version still
// matches the expected one.  Zero rows affected means a concurrent mutation
// won and the whole turn must be replayed from a fresh load.
func (r *Repository) CompareAndSwap(ctx context.Context, sess *pkg.Session, expectedVersion int64) error {
	state, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE sessions
         SET phase = $1, alert_level = $2, state = $3, version = $4, updated_at = $5
         WHERE patient_id = $6 AND version = $7`,
		sess.Phase, sess.Alert.Level, state, sess.Version, sess.UpdatedAt, sess.PatientID, expectedVersion,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return intake.ErrConflict
	}
	return nil
}

// Put stores a finalized EMR.  The unique constraint on session_id turns a
// duplicate finalization into ErrConflict instead of a second record.
func (r *Repository) Put(ctx context.Context, emr *pkg.EMR) error {
	payload, err := json.Marshal(emr)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO emrs (id, session_id, patient_id, alert_level, payload, created_at)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		emr.ID, emr.SessionID, emr.PatientID, emr.Alert.Level, payload, emr.CreatedAt,
	)
	if isUniqueViolation(err) {
		return intake.ErrConflict
	}
	return err
}

// GetBySession retrieves the EMR derived from the given session.
func (r *Repository) GetBySession(ctx context.Context, sessionID string) (*pkg.EMR, error) {
	var payload []byte
	err := r.DB.QueryRowContext(ctx,
		`SELECT payload FROM emrs WHERE session_id = $1`,
		sessionID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, intake.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var emr pkg.EMR
	if err := json.Unmarshal(payload, &emr); err != nil {
		return nil, fmt.Errorf("decode emr payload: %w", err)
	}
	return &emr, nil
}

// ListSessions returns every session ordered by last update, newest first.
// Consumed by the staff dashboard endpoints.
func (r *Repository) ListSessions(ctx context.Context) ([]*pkg.Session, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT state FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []*pkg.Session
	for rows.Next() {
		var state []byte
		if err := rows.Scan(&state); err != nil {
			return nil, err
		}
		var sess pkg.Session
		if err := json.Unmarshal(state, &sess); err != nil {
			return nil, fmt.Errorf("decode session state: %w", err)
		}
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
