package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mind-engage/mindengage-assess/internal/apperr"
)

// Store persists sessions. Create must be an atomic check-and-create: it
// fails with ActiveSessionExists (carrying the existing id) when the user
// already has an in-progress session for the test, and with StaleWrite when
// the attempt number is taken. Update succeeds only when s.Version matches
// the stored version and returns the stored copy with the version bumped.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	Update(ctx context.Context, s Session) (Session, error)
	ActiveFor(ctx context.Context, userID, testID string) (Session, bool, error)
	// LastAttempt is the highest attempt number used by the user, 0 if none.
	LastAttempt(ctx context.Context, userID, testID string) (int, error)
	// CountAttempts counts sessions of any user and status for a test.
	CountAttempts(ctx context.Context, testID string) (int, error)
	ListInProgress(ctx context.Context) ([]Session, error)
}

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewInMemoryStore() Store {
	return &memoryStore{sessions: map[string]Session{}}
}

func (m *memoryStore) Create(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.sessions {
		if cur.UserID != s.UserID || cur.TestID != s.TestID {
			continue
		}
		if cur.Status == StatusInProgress {
			return apperr.ActiveSessionExists(cur.ID)
		}
		if cur.AttemptNumber == s.AttemptNumber {
			return apperr.Conflict(apperr.CodeStaleWrite, fmt.Sprintf("attempt %d already exists", s.AttemptNumber))
		}
	}
	if _, ok := m.sessions[s.ID]; ok {
		return apperr.Conflict(apperr.CodeAlreadyExists, fmt.Sprintf("session %q already exists", s.ID))
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, apperr.NotFound("session", id)
	}
	return s.Clone(), nil
}

func (m *memoryStore) Update(_ context.Context, s Session) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.ID]
	if !ok {
		return Session{}, apperr.NotFound("session", s.ID)
	}
	if cur.Version != s.Version {
		return Session{}, apperr.Conflict(apperr.CodeStaleWrite, "session was modified concurrently")
	}
	s.Version++
	m.sessions[s.ID] = s.Clone()
	return s.Clone(), nil
}

func (m *memoryStore) ActiveFor(_ context.Context, userID, testID string) (Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.UserID == userID && s.TestID == testID && s.Status == StatusInProgress {
			return s.Clone(), true, nil
		}
	}
	return Session{}, false, nil
}

func (m *memoryStore) LastAttempt(_ context.Context, userID, testID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sessions {
		if s.UserID == userID && s.TestID == testID {
			n = max(n, s.AttemptNumber)
		}
	}
	return n, nil
}

func (m *memoryStore) CountAttempts(_ context.Context, testID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sessions {
		if s.TestID == testID {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) ListInProgress(_ context.Context) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Session
	for _, s := range m.sessions {
		if s.Status == StatusInProgress {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
