package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ladywillingdontech-stack/healthai/pkg"
)

// Processor is the entry point invoked once per inbound patient message.  It
// wraps the phase machine in the locking and persistence discipline the
// engine guarantees: at most one turn in flight per session, optimistic
// compare-and-swap writes with bounded retry, NLG calls bounded by a
// timeout, and no stored-state mutation on a failed turn.
type Processor struct {
	machine  *Machine
	synth    *Synthesizer
	nlg      NLG
	sessions SessionStore
	emrs     EMRStore
	events   EventSink
	log      zerolog.Logger

	nlgTimeout time.Duration
	maxRetries int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// ProcessorOptions bundles the tunables for a Processor.
type ProcessorOptions struct {
	// NLGTimeout bounds every NLG call made while the session lock is
	// held.  Zero means 10 seconds.
	NLGTimeout time.Duration
	// MaxTurnRetries bounds how often a turn is replayed after a version
	// conflict before the patient sees a transient-failure reply.  Zero
	// means 3.
	MaxTurnRetries int
}

// NewProcessor wires a turn processor.  The event sink may be nil.
func NewProcessor(machine *Machine, nlg NLG, sessions SessionStore, emrs EMRStore, events EventSink, log zerolog.Logger, opts ProcessorOptions) *Processor {
	if opts.NLGTimeout <= 0 {
		opts.NLGTimeout = 10 * time.Second
	}
	if opts.MaxTurnRetries <= 0 {
		opts.MaxTurnRetries = 3
	}
	return &Processor{
		machine:    machine,
		synth:      NewSynthesizer(nlg),
		nlg:        nlg,
		sessions:   sessions,
		emrs:       emrs,
		events:     events,
		log:        log,
		nlgTimeout: opts.NLGTimeout,
		maxRetries: opts.MaxTurnRetries,
		locks:      map[string]*sync.Mutex{},
	}
}

// lockFor returns the exclusive critical-section lock for a patient.
// Cross-patient turns proceed fully in parallel.
func (p *Processor) lockFor(patientID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[patientID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[patientID] = l
	}
	return l
}

// HandleMessage runs one turn for an inbound (patient, text) pair and
// returns the outbound reply for delivery.  The transport may deliver
// duplicates; the phase and alert monotonicity invariants keep them from
// corrupting progress.
func (p *Processor) HandleMessage(ctx context.Context, patientID, text string) (string, error) {
	lock := p.lockFor(patientID)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		reply, err := p.runTurn(ctx, patientID, text)
		if errors.Is(err, ErrConflict) {
			lastErr = err
			continue
		}
		return reply, err
	}
	p.log.Error().Str("patient_id", patientID).Err(lastErr).Msg("turn retries exhausted")
	return RetryReply, fmt.Errorf("turn retries exhausted: %w", lastErr)
}

func (p *Processor) runTurn(ctx context.Context, patientID, text string) (string, error) {
	sess, err := p.sessions.Load(ctx, patientID)
	if errors.Is(err, ErrNotFound) {
		sess, err = p.createSession(ctx, patientID)
	}
	if err != nil {
		return RetryReply, err
	}

	log := p.log.With().
		Str("patient_id", patientID).
		Str("session_id", sess.ID).
		Str("phase", string(sess.Phase)).
		Int64("version", sess.Version).
		Logger()

	updated, inst, err := p.machine.ProcessTurn(sess, text)
	if err != nil {
		log.Error().Err(err).Msg("phase machine rejected turn")
		return RetryReply, err
	}

	var reply string
	switch inst.Kind {
	case InstructionAlreadyClosed:
		return ClosedReply, nil
	case InstructionAsk, InstructionReask:
		reply, err = p.phraseQuestion(ctx, inst)
		if err != nil {
			// Turn aborted with stored state untouched; the inbound
			// message is preserved on the transport for retry.
			log.Warn().Err(err).Str("field", inst.Field.ID).Msg("question phrasing failed, turn aborted")
			return RetryReply, err
		}
	case InstructionHandoff:
		reply = HandoffReply
	case InstructionClose:
		reply, err = p.finalizeSession(ctx, log, updated, inst)
		if err != nil {
			return reply, err
		}
	default:
		return RetryReply, ErrInvariant
	}

	updated.MessageLog = append(updated.MessageLog, pkg.Message{
		Sender:    pkg.SenderBot,
		Text:      reply,
		CreatedAt: updated.UpdatedAt,
	})

	if err := p.sessions.CompareAndSwap(ctx, updated, sess.Version); err != nil {
		if !errors.Is(err, ErrConflict) && inst.Alert.Level == pkg.AlertRed {
			// Alert delivery is prioritised over bookkeeping.
			log.Error().Err(err).Msg("persist failed after red alert, delivering alert anyway")
			return reply, nil
		}
		return RetryReply, err
	}

	log.Info().
		Str("next_phase", string(updated.Phase)).
		Str("alert", string(updated.Alert.Level)).
		Str("pending_field", updated.PendingField).
		Msg("turn complete")
	return reply, nil
}

func (p *Processor) createSession(ctx context.Context, patientID string) (*pkg.Session, error) {
	now := time.Now()
	sess := &pkg.Session{
		ID:              uuid.New().String(),
		PatientID:       patientID,
		Phase:           pkg.PhaseOnboarding,
		CompletedFields: map[string]bool{},
		PatientData:     map[string]pkg.FieldValue{},
		Alert:           pkg.AlertStatus{Level: pkg.AlertNone},
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := p.sessions.Create(ctx, sess); err != nil {
		if errors.Is(err, ErrConflict) {
			// A duplicate first delivery won the race; use its session.
			return p.sessions.Load(ctx, patientID)
		}
		return nil, err
	}
	return sess, nil
}

func (p *Processor) phraseQuestion(ctx context.Context, inst Instruction) (string, error) {
	nlgCtx, cancel := context.WithTimeout(ctx, p.nlgTimeout)
	defer cancel()
	return p.nlg.Question(nlgCtx, inst.Phase, inst.Field, inst.Data)
}

// finalizeSession enforces the exactly-one-EMR invariant and produces the
// closing reply.  If an EMR for this session already exists (a crashed or
// conflicted close turn got this far before), synthesis is skipped entirely.
func (p *Processor) finalizeSession(ctx context.Context, log zerolog.Logger, sess *pkg.Session, inst Instruction) (string, error) {
	red := inst.Alert.Level == pkg.AlertRed
	reply := ClosingReply(inst.Alert.Level)

	if _, err := p.emrs.GetBySession(ctx, sess.ID); err == nil {
		return reply, nil
	} else if !errors.Is(err, ErrNotFound) {
		if red {
			log.Error().Err(err).Msg("emr lookup failed on red alert, delivering alert anyway")
			return reply, nil
		}
		return RetryReply, err
	}

	nlgCtx, cancel := context.WithTimeout(ctx, p.nlgTimeout)
	defer cancel()
	emr, synthErr := p.synth.Synthesize(nlgCtx, sess)
	if synthErr != nil && !red {
		return RetryReply, synthErr
	}
	if synthErr != nil {
		log.Warn().Err(synthErr).Msg("narrative unavailable, recording placeholder")
	}

	if err := p.emrs.Put(ctx, emr); err != nil && !errors.Is(err, ErrConflict) {
		if red {
			log.Error().Err(err).Msg("emr store failed on red alert, delivering alert anyway")
			p.notifyRed(ctx, log, sess)
			return reply, nil
		}
		return RetryReply, err
	}

	log.Info().Str("emr_id", emr.ID).Str("alert", string(emr.Alert.Level)).Msg("emr finalized")
	if p.events != nil {
		if err := p.events.EMRCreated(ctx, emr); err != nil {
			log.Warn().Err(err).Msg("emr notification failed")
		}
	}
	if red {
		p.notifyRed(ctx, log, sess)
	}
	return reply, nil
}

func (p *Processor) notifyRed(ctx context.Context, log zerolog.Logger, sess *pkg.Session) {
	if p.events == nil {
		return
	}
	if err := p.events.RedAlert(ctx, sess.PatientID, sess.Alert.Reason); err != nil {
		log.Error().Err(err).Msg("red alert notification failed")
	}
}
