// Package catalog is the read side of the question bank.
package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/mind-engage/mindengage-assess/internal/apperr"
)

const (
	StatusActive  = "active"
	StatusRetired = "retired"
)

// AnswerKey holds what auto-grading needs. Manual types leave it empty.
type AnswerKey struct {
	Bool  *bool `json:"bool,omitempty" yaml:"bool,omitempty"`
	Index *int  `json:"index,omitempty" yaml:"index,omitempty"`
}

type QuestionRef struct {
	ID                   string       `json:"id" yaml:"id"`
	Type                 QuestionType `json:"type" yaml:"type"`
	Skill                string       `json:"skill" yaml:"skill"`
	Difficulty           Difficulty   `json:"difficulty" yaml:"difficulty"`
	Points               float64      `json:"points" yaml:"points"`
	EstimatedTimeSeconds int          `json:"estimated_time_seconds" yaml:"estimated_time_seconds"`
	Status               string       `json:"status" yaml:"status"`
	OptionCount          int          `json:"option_count,omitempty" yaml:"option_count,omitempty"`
	AnswerKey            AnswerKey    `json:"answer_key" yaml:"answer_key"`
}

func (q QuestionRef) TimeBucket() string {
	secs := q.EstimatedTimeSeconds
	if secs <= 0 {
		secs = q.Type.SuggestedSeconds()
	}
	return TimeBucket(secs)
}

// Filter narrows a catalog query. Empty slices mean "any".
type Filter struct {
	Status     string
	IDs        []string
	Types      []QuestionType
	Skills     []string
	Difficulty []Difficulty
}

func (f Filter) Match(q QuestionRef) bool {
	if f.Status != "" && q.Status != f.Status {
		return false
	}
	if len(f.IDs) > 0 && !contains(f.IDs, q.ID) {
		return false
	}
	if len(f.Types) > 0 && !contains(f.Types, q.Type) {
		return false
	}
	if len(f.Skills) > 0 && !contains(f.Skills, q.Skill) {
		return false
	}
	if len(f.Difficulty) > 0 && !contains(f.Difficulty, q.Difficulty) {
		return false
	}
	return true
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// Catalog must return a consistent snapshot for the duration of one call.
type Catalog interface {
	Query(ctx context.Context, f Filter) ([]QuestionRef, error)
	Get(ctx context.Context, id string) (QuestionRef, error)
}

// MemoryCatalog backs tests and the blueprint CLI.
type MemoryCatalog struct {
	mu        sync.RWMutex
	questions map[string]QuestionRef
}

func NewInMemory(qs ...QuestionRef) *MemoryCatalog {
	m := &MemoryCatalog{questions: make(map[string]QuestionRef, len(qs))}
	for _, q := range qs {
		m.questions[q.ID] = q
	}
	return m
}

func (m *MemoryCatalog) Put(q QuestionRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[q.ID] = q
}

func (m *MemoryCatalog) Query(_ context.Context, f Filter) ([]QuestionRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]QuestionRef, 0, len(m.questions))
	for _, q := range m.questions {
		if f.Match(q) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryCatalog) Get(_ context.Context, id string) (QuestionRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return QuestionRef{}, apperr.NotFound("question", id)
	}
	return q, nil
}
