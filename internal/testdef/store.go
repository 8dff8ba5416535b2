package testdef

import (
	"context"
	"sort"
	"sync"

	"github.com/mind-engage/mindengage-assess/internal/apperr"
)

type Store interface {
	Put(ctx context.Context, t TestDefinition) error
	Get(ctx context.Context, id string) (TestDefinition, error)
	List(ctx context.Context, opts ListOpts) ([]Summary, error)
}

// AttemptCounter reports how many sessions exist for a test. The session
// store implements it.
type AttemptCounter interface {
	CountAttempts(ctx context.Context, testID string) (int, error)
}

type memoryStore struct {
	mu    sync.RWMutex
	tests map[string]TestDefinition
}

func NewInMemoryStore() Store {
	return &memoryStore{tests: map[string]TestDefinition{}}
}

func (m *memoryStore) Put(_ context.Context, t TestDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tests[t.ID] = t.Clone()
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (TestDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tests[id]
	if !ok {
		return TestDefinition{}, apperr.NotFound("test", id)
	}
	return t.Clone(), nil
}

func (m *memoryStore) List(_ context.Context, opts ListOpts) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Summary, 0, len(m.tests))
	for _, t := range m.tests {
		if opts.Status != "" && t.Status != opts.Status {
			continue
		}
		out = append(out, Summary{ID: t.ID, Title: t.Title, Status: t.Status, UpdatedAt: t.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, opts.Limit, opts.Offset), nil
}

func page[T any](xs []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(xs) {
			return []T{}
		}
		xs = xs[offset:]
	}
	if limit > 0 && limit < len(xs) {
		xs = xs[:limit]
	}
	return xs
}
