package intake_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ladywillingdontech-stack/healthai/internal/db"
	"github.com/ladywillingdontech-stack/healthai/internal/intake"
	"github.com/ladywillingdontech-stack/healthai/pkg"
)

// fakeNLG is a scriptable NLG collaborator.
type fakeNLG struct {
	mu             sync.Mutex
	questionErr    error
	narrativeErr   error
	narrativeCalls int
}

func (f *fakeNLG) Question(ctx context.Context, phase pkg.Phase, field intake.FieldSlot, data map[string]pkg.FieldValue) (string, error) {
	if f.questionErr != nil {
		return "", f.questionErr
	}
	return "Please tell me your " + field.ID + ".", nil
}

func (f *fakeNLG) Narrative(ctx context.Context, data map[string]pkg.FieldValue, alert pkg.AlertStatus) (string, error) {
	f.mu.Lock()
	f.narrativeCalls++
	f.mu.Unlock()
	if f.narrativeErr != nil {
		return "", f.narrativeErr
	}
	return "Structured intake narrative.", nil
}

// recordingSink captures event notifications.
type recordingSink struct {
	mu        sync.Mutex
	redAlerts []string
	emrs      []string
}

func (r *recordingSink) RedAlert(ctx context.Context, patientID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redAlerts = append(r.redAlerts, patientID)
	return nil
}

func (r *recordingSink) EMRCreated(ctx context.Context, emr *pkg.EMR) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emrs = append(r.emrs, emr.ID)
	return nil
}

func newProcessor(store *db.MemoryStore, nlg intake.NLG, sink intake.EventSink) *intake.Processor {
	machine := intake.NewMachine(intake.DefaultRules())
	return intake.NewProcessor(machine, nlg, store, store, sink, zerolog.Nop(), intake.ProcessorOptions{})
}

// runIntake walks a patient through the standard answers up to the first
// symptom question.
func runIntake(t *testing.T, p *intake.Processor, patientID string) {
	t.Helper()
	ctx := context.Background()
	for _, text := range []string{
		"Hello", "Fatima", "35", "female", "married", "nothing notable",
	} {
		if _, err := p.HandleMessage(ctx, patientID, text); err != nil {
			t.Fatalf("HandleMessage(%q) failed: %v", text, err)
		}
	}
}

func TestHandleMessageYellowIntakeProducesEMR(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	sink := &recordingSink{}
	p := newProcessor(store, &fakeNLG{}, sink)

	runIntake(t, p, "patient-1")
	for _, text := range []string{"mild headache", "three days", "worse at night"} {
		if _, err := p.HandleMessage(ctx, "patient-1", text); err != nil {
			t.Fatalf("HandleMessage(%q) failed: %v", text, err)
		}
	}
	reply, err := p.HandleMessage(ctx, "patient-1", "no, that's everything")
	if err != nil {
		t.Fatalf("closing turn failed: %v", err)
	}
	if !strings.Contains(reply, "see a doctor soon") {
		t.Fatalf("expected yellow closing advice, got %q", reply)
	}

	sess, err := store.Load(ctx, "patient-1")
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if sess.Phase != pkg.PhaseClosed {
		t.Fatalf("expected closed session, got %s", sess.Phase)
	}
	emr, err := store.GetBySession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("expected an EMR: %v", err)
	}
	if emr.Alert.Level != pkg.AlertYellow {
		t.Fatalf("EMR alert = %s, want yellow", emr.Alert.Level)
	}
	if v, ok := emr.Data["symptom_1"]; !ok || v.Symptom == nil || v.Symptom.Name != "mild headache" {
		t.Fatalf("EMR missing structured symptom entry: %+v", emr.Data)
	}
	if len(sink.emrs) != 1 {
		t.Fatalf("expected one EMR notification, got %d", len(sink.emrs))
	}

	// A message after closure gets the inert acknowledgement.
	reply, err = p.HandleMessage(ctx, "patient-1", "thank you")
	if err != nil {
		t.Fatalf("post-closure turn failed: %v", err)
	}
	if reply != intake.ClosedReply {
		t.Fatalf("expected closed reply, got %q", reply)
	}
}

func TestHandleMessageRedShortCircuit(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	sink := &recordingSink{}
	p := newProcessor(store, &fakeNLG{}, sink)

	runIntake(t, p, "patient-2")
	reply, err := p.HandleMessage(ctx, "patient-2", "chest pain and shortness of breath")
	if err != nil {
		t.Fatalf("red turn failed: %v", err)
	}
	if !strings.Contains(reply, "immediately") {
		t.Fatalf("expected emergency advice, got %q", reply)
	}

	sess, _ := store.Load(ctx, "patient-2")
	if sess.Phase != pkg.PhaseClosed || sess.Alert.Level != pkg.AlertRed {
		t.Fatalf("expected closed red session, got phase=%s alert=%s", sess.Phase, sess.Alert.Level)
	}
	emr, err := store.GetBySession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("expected an EMR: %v", err)
	}
	if emr.Alert.Level != pkg.AlertRed {
		t.Fatalf("EMR alert = %s, want red", emr.Alert.Level)
	}
	if len(sink.redAlerts) != 1 || sink.redAlerts[0] != "patient-2" {
		t.Fatalf("expected one red alert notification, got %+v", sink.redAlerts)
	}
}

// conflictingStore injects one version conflict on the first CompareAndSwap
// after arm() is called, without applying the write.
type conflictingStore struct {
	*db.MemoryStore
	mu    sync.Mutex
	armed bool
}

func (c *conflictingStore) CompareAndSwap(ctx context.Context, sess *pkg.Session, expectedVersion int64) error {
	c.mu.Lock()
	if c.armed {
		c.armed = false
		c.mu.Unlock()
		return intake.ErrConflict
	}
	c.mu.Unlock()
	return c.MemoryStore.CompareAndSwap(ctx, sess, expectedVersion)
}

func TestFinalizationRetryCreatesExactlyOneEMR(t *testing.T) {
	ctx := context.Background()
	store := &conflictingStore{MemoryStore: db.NewMemoryStore()}
	nlg := &fakeNLG{}
	machine := intake.NewMachine(intake.DefaultRules())
	p := intake.NewProcessor(machine, nlg, store, store.MemoryStore, nil, zerolog.Nop(), intake.ProcessorOptions{})

	runIntake(t, p, "patient-3")

	// The closing turn synthesizes the EMR, then loses the CAS and is
	// replayed.  The replay must find the existing record instead of
	// synthesizing a second one.
	store.mu.Lock()
	store.armed = true
	store.mu.Unlock()
	reply, err := p.HandleMessage(ctx, "patient-3", "chest pain")
	if err != nil {
		t.Fatalf("closing turn failed: %v", err)
	}
	if !strings.Contains(reply, "immediately") {
		t.Fatalf("expected emergency advice, got %q", reply)
	}

	if nlg.narrativeCalls != 1 {
		t.Fatalf("narrative synthesized %d times, want 1", nlg.narrativeCalls)
	}
	sess, _ := store.Load(ctx, "patient-3")
	if _, err := store.GetBySession(ctx, sess.ID); err != nil {
		t.Fatalf("expected exactly one EMR: %v", err)
	}
	if sess.Phase != pkg.PhaseClosed {
		t.Fatalf("session not closed after retry: %s", sess.Phase)
	}
}

func TestNLGFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	nlg := &fakeNLG{}
	p := newProcessor(store, nlg, nil)

	if _, err := p.HandleMessage(ctx, "patient-4", "Hello"); err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	before, _ := store.Load(ctx, "patient-4")

	nlg.questionErr = errors.New("nlg timeout")
	reply, err := p.HandleMessage(ctx, "patient-4", "Fatima")
	if err == nil {
		t.Fatal("expected an error from the aborted turn")
	}
	if reply != intake.RetryReply {
		t.Fatalf("expected retry reply, got %q", reply)
	}

	after, _ := store.Load(ctx, "patient-4")
	if after.Version != before.Version || len(after.MessageLog) != len(before.MessageLog) {
		t.Fatal("aborted turn mutated stored state")
	}
	if _, bound := after.PatientData["name"]; bound {
		t.Fatal("aborted turn bound a field")
	}

	// The same inbound message succeeds once the collaborator recovers.
	nlg.questionErr = nil
	if _, err := p.HandleMessage(ctx, "patient-4", "Fatima"); err != nil {
		t.Fatalf("retried turn failed: %v", err)
	}
	final, _ := store.Load(ctx, "patient-4")
	if final.PatientData["name"].Text != "Fatima" {
		t.Fatal("retried turn did not bind the field")
	}
}

func TestConcurrentTurnsSerializeOnVersion(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()

	// Two processor instances share the store but not the per-session
	// lock, like two replicas behind a load balancer.  The version CAS is
	// the only serialization between them.
	p1 := newProcessor(store, &fakeNLG{}, nil)
	p2 := newProcessor(store, &fakeNLG{}, nil)

	if _, err := p1.HandleMessage(ctx, "patient-5", "Hello"); err != nil {
		t.Fatalf("setup turn failed: %v", err)
	}
	base, _ := store.Load(ctx, "patient-5")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, p := range []*intake.Processor{p1, p2} {
		wg.Add(1)
		go func(i int, p *intake.Processor) {
			defer wg.Done()
			_, errs[i] = p.HandleMessage(ctx, "patient-5", fmt.Sprintf("Fatima %d", i))
		}(i, p)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("replica %d failed: %v", i, err)
		}
	}
	final, _ := store.Load(ctx, "patient-5")
	if final.Version != base.Version+2 {
		t.Fatalf("version = %d, want %d (both turns applied exactly once)", final.Version, base.Version+2)
	}
}
