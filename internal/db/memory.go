package db

import (
	"context"
	"sort"
	"sync"

	"github.com/ladywillingdontech-stack/healthai/internal/intake"
	"github.com/ladywillingdontech-stack/healthai/pkg"
)

// MemoryStore is an in-memory session and EMR store with the same
// compare-and-swap semantics as the Postgres repository.  It backs tests and
// local development without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*pkg.Session // by patient ID
	emrs     map[string]*pkg.EMR     // by session ID
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*pkg.Session),
		emrs:     make(map[string]*pkg.EMR),
	}
}

func (m *MemoryStore) Load(ctx context.Context, patientID string) (*pkg.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[patientID]
	if !ok {
		return nil, intake.ErrNotFound
	}
	return sess.Clone(), nil
}

func (m *MemoryStore) Create(ctx context.Context, sess *pkg.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[sess.PatientID]; exists {
		return intake.ErrConflict
	}
	m.sessions[sess.PatientID] = sess.Clone()
	return nil
}

func (m *MemoryStore) CompareAndSwap(ctx context.Context, sess *pkg.Session, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sessions[sess.PatientID]
	if !ok || current.Version != expectedVersion {
		return intake.ErrConflict
	}
	m.sessions[sess.PatientID] = sess.Clone()
	return nil
}

func (m *MemoryStore) Put(ctx context.Context, emr *pkg.EMR) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.emrs[emr.SessionID]; exists {
		return intake.ErrConflict
	}
	copied := *emr
	m.emrs[emr.SessionID] = &copied
	return nil
}

func (m *MemoryStore) GetBySession(ctx context.Context, sessionID string) (*pkg.EMR, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	emr, ok := m.emrs[sessionID]
	if !ok {
		return nil, intake.ErrNotFound
	}
	copied := *emr
	return &copied, nil
}

func (m *MemoryStore) ListSessions(ctx context.Context) ([]*pkg.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*pkg.Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}
