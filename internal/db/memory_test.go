package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ladywillingdontech-stack/healthai/internal/intake"
	"github.com/ladywillingdontech-stack/healthai/pkg"
)

func sessionFixture(patientID string) *pkg.Session {
	now := time.Now()
	return &pkg.Session{
		ID:              "sess-" + patientID,
		PatientID:       patientID,
		Phase:           pkg.PhaseOnboarding,
		CompletedFields: map[string]bool{},
		PatientData:     map[string]pkg.FieldValue{},
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestMemoryStoreCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sess := sessionFixture("p-1")

	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, sess); !errors.Is(err, intake.ErrConflict) {
		t.Fatalf("duplicate create = %v, want conflict", err)
	}

	loaded, err := store.Load(ctx, "p-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// Writer A wins against version 1.
	a := loaded.Clone()
	a.Version = 2
	if err := store.CompareAndSwap(ctx, a, 1); err != nil {
		t.Fatalf("first cas: %v", err)
	}

	// Writer B still holds version 1 and must observe the conflict.
	b := loaded.Clone()
	b.Version = 2
	if err := store.CompareAndSwap(ctx, b, 1); !errors.Is(err, intake.ErrConflict) {
		t.Fatalf("stale cas = %v, want conflict", err)
	}

	current, _ := store.Load(ctx, "p-1")
	if current.Version != 2 {
		t.Fatalf("stored version = %d, want 2", current.Version)
	}
}

func TestMemoryStoreLoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Create(ctx, sessionFixture("p-2")); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, _ := store.Load(ctx, "p-2")
	first.PatientData["name"] = pkg.FieldValue{Kind: pkg.KindText, Text: "mutated"}
	first.Version = 99

	second, _ := store.Load(ctx, "p-2")
	if _, leaked := second.PatientData["name"]; leaked || second.Version != 1 {
		t.Fatal("load returned a shared reference")
	}
}

func TestMemoryStoreEMRWriteOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	emr := &pkg.EMR{ID: "emr-1", SessionID: "sess-1", PatientID: "p-1"}

	if err := store.Put(ctx, emr); err != nil {
		t.Fatalf("put: %v", err)
	}
	dup := &pkg.EMR{ID: "emr-2", SessionID: "sess-1", PatientID: "p-1"}
	if err := store.Put(ctx, dup); !errors.Is(err, intake.ErrConflict) {
		t.Fatalf("second put = %v, want conflict", err)
	}

	got, err := store.GetBySession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "emr-1" {
		t.Fatalf("stored EMR = %s, want emr-1", got.ID)
	}
	if _, err := store.GetBySession(ctx, "missing"); !errors.Is(err, intake.ErrNotFound) {
		t.Fatalf("missing emr = %v, want not found", err)
	}
}
