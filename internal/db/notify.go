package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/ladywillingdontech-stack/healthai/pkg"
)

// Channel names for the Postgres LISTEN/NOTIFY fan-out consumed by the
// staff dashboard and downstream document rendering.
const (
	ChannelRedAlerts  = "red_alerts"
	ChannelEMRCreated = "emr_created"
)

// Notifier publishes engine events over Postgres NOTIFY.  It implements the
// engine's event sink; failures are reported to the caller but never block
// the patient-facing reply.
type Notifier struct {
	DB *sql.DB
}

// NewNotifier constructs a Notifier over an existing connection pool.
func NewNotifier(db *sql.DB) *Notifier { return &Notifier{DB: db} }

// RedAlert broadcasts an emergency verdict for a patient.
func (n *Notifier) RedAlert(ctx context.Context, patientID, reason string) error {
	payload, err := json.Marshal(map[string]string{
		"patient_id": patientID,
		"reason":     reason,
	})
	if err != nil {
		return err
	}
	_, err = n.DB.ExecContext(ctx, `SELECT pg_notify($1, $2)`, ChannelRedAlerts, string(payload))
	return err
}

// EMRCreated broadcasts that a record was finalized, so renderers can pick
// it up.
func (n *Notifier) EMRCreated(ctx context.Context, emr *pkg.EMR) error {
	payload, err := json.Marshal(map[string]string{
		"emr_id":      emr.ID,
		"session_id":  emr.SessionID,
		"patient_id":  emr.PatientID,
		"alert_level": string(emr.Alert.Level),
	})
	if err != nil {
		return err
	}
	_, err = n.DB.ExecContext(ctx, `SELECT pg_notify($1, $2)`, ChannelEMRCreated, string(payload))
	return err
}

// Listen subscribes to one of the notification channels and yields raw JSON
// payloads until the context is cancelled.  Each subscription uses its own
// pq listener connection so it does not interfere with pool queries.
func Listen(ctx context.Context, dsn, channel string, log zerolog.Logger) (<-chan string, error) {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn().Err(err).Str("channel", channel).Msg("listener event")
		}
	})
	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, err
	}
	out := make(chan string)
	go func() {
		defer func() {
			_ = listener.Close()
			close(out)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				if n == nil {
					// Reconnect marker from pq; nothing to deliver.
					continue
				}
				select {
				case out <- n.Extra:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
