package testdef

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-assess/internal/apperr"
	"github.com/mind-engage/mindengage-assess/internal/assembly"
)

// Service is the authoring side: it owns the definition lifecycle
// draft -> published -> archived.
type Service struct {
	store    Store
	resolver *Resolver
	attempts AttemptCounter
	now      func() time.Time
	rand     func() *rand.Rand
}

type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithRand sets the source used for assembly previews.
func WithRand(f func() *rand.Rand) ServiceOption {
	return func(s *Service) { s.rand = f }
}

// NewService wires the authoring service. attempts may be nil when no
// session store exists (every test then counts as unused).
func NewService(store Store, resolver *Resolver, attempts AttemptCounter, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		resolver: resolver,
		attempts: attempts,
		now:      time.Now,
		rand:     assembly.NewRand,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, t TestDefinition) (TestDefinition, error) {
	if err := t.Validate(); err != nil {
		return TestDefinition{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	} else if _, err := s.store.Get(ctx, t.ID); err == nil {
		return TestDefinition{}, apperr.Conflict(apperr.CodeAlreadyExists, fmt.Sprintf("test %q already exists", t.ID))
	} else if !apperr.IsKind(err, apperr.KindNotFound) {
		return TestDefinition{}, err
	}
	now := s.now().UTC()
	t.Status = StatusDraft
	t.CreatedAt, t.UpdatedAt = now, now
	if err := s.store.Put(ctx, t); err != nil {
		return TestDefinition{}, err
	}
	return t.Clone(), nil
}

func (s *Service) Get(ctx context.Context, id string) (TestDefinition, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, opts ListOpts) ([]Summary, error) {
	return s.store.List(ctx, opts)
}

// Update replaces the content of a test. A test is editable while draft, or
// while published with no attempts; afterwards it is locked so attempts
// stay comparable.
func (s *Service) Update(ctx context.Context, id string, t TestDefinition) (TestDefinition, error) {
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return TestDefinition{}, err
	}
	switch cur.Status {
	case StatusArchived:
		return TestDefinition{}, apperr.Conflict(apperr.CodeTestLocked, "archived tests cannot be edited")
	case StatusPublished:
		n, err := s.countAttempts(ctx, id)
		if err != nil {
			return TestDefinition{}, err
		}
		if n > 0 {
			return TestDefinition{}, apperr.Conflict(apperr.CodeTestLocked,
				fmt.Sprintf("test has %d attempt(s) and can no longer be edited", n))
		}
	}
	if err := t.Validate(); err != nil {
		return TestDefinition{}, err
	}
	t.ID = cur.ID
	t.Status = cur.Status
	t.CreatedAt = cur.CreatedAt
	t.UpdatedAt = s.now().UTC()
	if err := s.store.Put(ctx, t); err != nil {
		return TestDefinition{}, err
	}
	if cur.Status == StatusPublished {
		// A session may have started between the count and the write.
		n, err := s.countAttempts(ctx, id)
		if err != nil {
			return TestDefinition{}, err
		}
		if n > 0 {
			if err := s.store.Put(ctx, cur); err != nil {
				return TestDefinition{}, err
			}
			return TestDefinition{}, apperr.Conflict(apperr.CodeTestLocked,
				fmt.Sprintf("test has %d attempt(s) and can no longer be edited", n))
		}
	}
	return t.Clone(), nil
}

// ValidateSections resolves every section through the catalog and runs
// the section checks. The draw is a preview; sessions draw again.
func (s *Service) ValidateSections(ctx context.Context, id string) (ValidationResult, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return ValidationResult{}, err
	}
	return s.Check(ctx, t)
}

// Check runs the checks that gate publishing on a definition that need not
// be stored: structure, section rules and, for flat tests, unresolvable
// questions and pool shortfall.
func (s *Service) Check(ctx context.Context, t TestDefinition) (ValidationResult, error) {
	if err := t.Validate(); err != nil {
		return ValidationResult{}, err
	}
	blocks, err := s.resolver.Resolve(ctx, t, s.rand())
	if err != nil {
		return ValidationResult{}, err
	}
	res := ValidateSections(t, blocks)
	if !t.Settings.UseSections {
		res.Errors = append(res.Errors, flatProblems(blocks[0])...)
		if b := blocks[0]; b.Report != nil {
			res.Reports = map[string]assembly.Report{"": *b.Report}
			if n := b.Report.Shortfall(); n > 0 && len(b.Items) > 0 {
				res.Warnings = append(res.Warnings, fmt.Sprintf("question pool is short by %d question(s)", n))
			}
		}
		res.Valid = len(res.Errors) == 0
	}
	return res, nil
}

// Publish moves a draft to published when Check finds no errors. Warnings
// and pool shortfalls are returned with the published test.
func (s *Service) Publish(ctx context.Context, id string) (TestDefinition, ValidationResult, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return TestDefinition{}, ValidationResult{}, err
	}
	if t.Status != StatusDraft {
		return TestDefinition{}, ValidationResult{}, apperr.State(apperr.CodeInvalidTransition,
			fmt.Sprintf("cannot publish a %s test", t.Status))
	}
	res, err := s.Check(ctx, t)
	if err != nil {
		return TestDefinition{}, ValidationResult{}, err
	}
	if !res.Valid {
		return TestDefinition{}, res, apperr.Validation("test cannot be published", res.Errors...)
	}

	t.Status = StatusPublished
	t.UpdatedAt = s.now().UTC()
	if err := s.store.Put(ctx, t); err != nil {
		return TestDefinition{}, ValidationResult{}, err
	}
	return t, res, nil
}

func flatProblems(b Block) []string {
	var out []string
	for _, id := range b.Missing {
		out = append(out, fmt.Sprintf("question %q is missing or inactive", id))
	}
	if len(b.Items) == 0 {
		out = append(out, "test resolves to no questions")
	}
	return out
}

func (s *Service) Archive(ctx context.Context, id string) (TestDefinition, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return TestDefinition{}, err
	}
	if t.Status == StatusArchived {
		return TestDefinition{}, apperr.State(apperr.CodeInvalidTransition, "test is already archived")
	}
	t.Status = StatusArchived
	t.UpdatedAt = s.now().UTC()
	if err := s.store.Put(ctx, t); err != nil {
		return TestDefinition{}, err
	}
	return t, nil
}

func (s *Service) countAttempts(ctx context.Context, id string) (int, error) {
	if s.attempts == nil {
		return 0, nil
	}
	return s.attempts.CountAttempts(ctx, id)
}
