package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-assess/internal/apperr"
	"github.com/mind-engage/mindengage-assess/internal/assembly"
	"github.com/mind-engage/mindengage-assess/internal/catalog"
	"github.com/mind-engage/mindengage-assess/internal/grading"
	syncx "github.com/mind-engage/mindengage-assess/internal/sync"
	"github.com/mind-engage/mindengage-assess/internal/testdef"
)

// Event types appended to the event log.
const (
	EventStarted   = "SessionStarted"
	EventAnswered  = "AnswerRecorded"
	EventCompleted = "SessionCompleted"
	EventExpired   = "SessionExpired"
	EventAbandoned = "SessionAbandoned"
)

// Retries after a StaleWrite from the store.
const maxWriteAttempts = 3

// TestSource loads definitions; testdef.Store and testdef.Service both fit.
type TestSource interface {
	Get(ctx context.Context, id string) (testdef.TestDefinition, error)
}

// Materializer turns a definition into question blocks.
type Materializer interface {
	Resolve(ctx context.Context, t testdef.TestDefinition, rng *rand.Rand) ([]testdef.Block, error)
}

// Manager owns the session state machine. Expiry is lazy: every read or
// write of a session first applies a due in_progress -> expired transition.
type Manager struct {
	store    Store
	tests    TestSource
	resolver Materializer
	grader   grading.Grader
	events   syncx.Log
	onError  func(error)
	now      func() time.Time
	rand     func() *rand.Rand
	locks    *keyedMutex
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithRand(f func() *rand.Rand) Option { return func(m *Manager) { m.rand = f } }

func WithGrader(g grading.Grader) Option { return func(m *Manager) { m.grader = g } }

// WithEvents appends every transition to log. Append failures never undo a
// transition; they are passed to onError when it is non-nil.
func WithEvents(log syncx.Log, onError func(error)) Option {
	return func(m *Manager) {
		m.events = log
		m.onError = onError
	}
}

func NewManager(store Store, tests TestSource, resolver Materializer, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		tests:    tests,
		resolver: resolver,
		grader:   grading.NewDefaultGrader(),
		now:      time.Now,
		rand:     assembly.NewRand,
		locks:    newKeyedMutex(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) clock() time.Time {
	return m.now().UTC().Truncate(time.Second)
}

// Start opens a new attempt. Checks run in this order: availability, an
// existing in-progress session (returned with ActiveSessionExists so the
// client can resume), then the attempt limit.
func (m *Manager) Start(ctx context.Context, testID, userID string) (Session, error) {
	t, err := m.tests.Get(ctx, testID)
	if err != nil {
		return Session{}, err
	}

	for attempt := 1; ; attempt++ {
		now := m.clock()
		if !t.Available(now) {
			return Session{}, apperr.Conflict(apperr.CodeTestUnavailable, fmt.Sprintf("test %q is not available", testID))
		}

		active, ok, err := m.store.ActiveFor(ctx, userID, testID)
		if err != nil {
			return Session{}, err
		}
		if ok {
			s, err := m.load(ctx, active.ID)
			if err != nil {
				return Session{}, err
			}
			if s.Status == StatusInProgress {
				return Session{}, apperr.ActiveSessionExists(s.ID)
			}
		}

		last, err := m.store.LastAttempt(ctx, userID, testID)
		if err != nil {
			return Session{}, err
		}
		if limit := t.Settings.AttemptsAllowed; limit > 0 && last >= limit {
			return Session{}, apperr.Conflict(apperr.CodeAttemptLimitReached,
				fmt.Sprintf("all %d attempt(s) used", limit))
		}

		s, err := m.materialize(ctx, t, userID, last+1, now)
		if err != nil {
			return Session{}, err
		}
		err = m.store.Create(ctx, s)
		if apperr.IsCode(err, apperr.CodeStaleWrite) && attempt < maxWriteAttempts {
			continue
		}
		if err != nil {
			return Session{}, err
		}
		m.emit(ctx, EventStarted, s, map[string]any{"attempt_number": s.AttemptNumber, "questions": len(s.Questions)})
		return s, nil
	}
}

func (m *Manager) materialize(ctx context.Context, t testdef.TestDefinition, userID string, attemptNo int, now time.Time) (Session, error) {
	rng := m.rand()
	blocks, err := m.resolver.Resolve(ctx, t, rng)
	if err != nil {
		return Session{}, err
	}
	qs := snapshot(t.Settings, blocks, rng)
	if len(qs) == 0 {
		return Session{}, apperr.Conflict(apperr.CodeTestUnavailable, fmt.Sprintf("test %q resolves to no questions", t.ID))
	}
	s := Session{
		ID:                  uuid.NewString(),
		TestID:              t.ID,
		UserID:              userID,
		AttemptNumber:       attemptNo,
		Status:              StatusInProgress,
		StartedAt:           now,
		LastActivityAt:      now,
		TimeLimitSeconds:    int(t.TimeLimit() / time.Second),
		PassingScorePercent: t.Settings.PassingScorePercent,
		Questions:           qs,
	}
	s.rescore()
	return s, nil
}

// snapshot flattens blocks in section order. Static lists honour
// ShuffleQuestions; pool draws keep assembly order.
func snapshot(settings testdef.Settings, blocks []testdef.Block, rng *rand.Rand) []Question {
	ordered := append([]testdef.Block(nil), blocks...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	var out []Question
	for _, b := range ordered {
		items := append([]assembly.Selected(nil), b.Items...)
		if b.Static && settings.ShuffleQuestions {
			rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		}
		for _, it := range items {
			key := it.AnswerKey
			q := Question{
				QuestionID: it.ID,
				Type:       it.Type,
				SectionID:  b.SectionID,
				Order:      len(out) + 1,
				Points:     it.Points,
				AnswerKey:  &key,
			}
			if settings.ShuffleOptions && it.OptionCount > 1 {
				q.OptionOrder = rng.Perm(it.OptionCount)
			}
			out = append(out, q.clone())
		}
	}
	return out
}

// Get returns the session after applying any due expiry.
func (m *Manager) Get(ctx context.Context, id string) (Session, error) {
	return m.load(ctx, id)
}

func (m *Manager) load(ctx context.Context, id string) (Session, error) {
	unlock := m.locks.Lock(id)
	defer unlock()
	return m.loadLocked(ctx, id)
}

func (m *Manager) loadLocked(ctx context.Context, id string) (Session, error) {
	for attempt := 1; ; attempt++ {
		s, err := m.store.Get(ctx, id)
		if err != nil {
			return Session{}, err
		}
		if !s.Overdue(m.now()) {
			return s, nil
		}
		saved, err := m.expireLocked(ctx, s)
		if apperr.IsCode(err, apperr.CodeStaleWrite) && attempt < maxWriteAttempts {
			continue
		}
		return saved, err
	}
}

func (m *Manager) expireLocked(ctx context.Context, s Session) (Session, error) {
	deadline, _ := s.Deadline()
	s.Status = StatusExpired
	s.CompletedAt = &deadline
	s.TimeSpentSeconds = s.TimeLimitSeconds
	s.rescore()
	saved, err := m.store.Update(ctx, s)
	if err != nil {
		return Session{}, err
	}
	m.emit(ctx, EventExpired, saved, map[string]any{"score": saved.Score})
	return saved, nil
}

// RecordAnswer overwrites the answer for one question and grades it when
// the type is auto-gradable. Calls for one session are serialized.
func (m *Manager) RecordAnswer(ctx context.Context, in AnswerInput) (Session, error) {
	if in.TimeSpentSeconds < 0 || in.HintsUsed < 0 {
		return Session{}, apperr.Validation("time_spent_seconds and hints_used must be >= 0")
	}
	if a := bytes.TrimSpace(in.Answer); len(a) == 0 || bytes.Equal(a, []byte("null")) {
		return Session{}, apperr.InvalidAnswer("answer is required", nil)
	}

	unlock := m.locks.Lock(in.SessionID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		s, err := m.loadLocked(ctx, in.SessionID)
		if err != nil {
			return Session{}, err
		}
		if err := writable(s); err != nil {
			return Session{}, err
		}
		i, ok := s.question(in.QuestionID)
		if !ok {
			return Session{}, apperr.QuestionNotInSession(s.ID, in.QuestionID)
		}

		q := s.Questions[i]
		res, err := m.grader.Grade(ctx, grading.Q{Type: q.Type, Points: q.Points, Key: keyOf(q), OptionOrder: q.OptionOrder}, in.Answer)
		if err != nil {
			return Session{}, apperr.InvalidAnswer(fmt.Sprintf("answer for question %q rejected", q.QuestionID), err)
		}
		now := m.clock()
		q.Answer = append(json.RawMessage(nil), in.Answer...)
		q.IsCorrect = res.IsCorrect
		q.PointsAwarded = res.PointsAwarded
		q.TimeSpentSeconds += in.TimeSpentSeconds
		q.HintsUsed += in.HintsUsed
		q.AnsweredAt = &now
		s.Questions[i] = q
		s.LastActivityAt = now
		s.rescore()

		saved, err := m.store.Update(ctx, s)
		if apperr.IsCode(err, apperr.CodeStaleWrite) && attempt < maxWriteAttempts {
			continue
		}
		if err != nil {
			return Session{}, err
		}
		m.emit(ctx, EventAnswered, saved, map[string]any{"question_id": q.QuestionID, "is_correct": q.IsCorrect})
		return saved, nil
	}
}

func keyOf(q Question) catalog.AnswerKey {
	if q.AnswerKey == nil {
		return catalog.AnswerKey{}
	}
	return *q.AnswerKey
}

// Complete finalizes the score. It is irreversible.
func (m *Manager) Complete(ctx context.Context, id string) (Session, error) {
	return m.finish(ctx, id, StatusCompleted, EventCompleted)
}

// Abandon closes an idle session administratively. It is not reachable
// from the answer path.
func (m *Manager) Abandon(ctx context.Context, id string) (Session, error) {
	return m.finish(ctx, id, StatusAbandoned, EventAbandoned)
}

func (m *Manager) finish(ctx context.Context, id string, to Status, event string) (Session, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	for attempt := 1; ; attempt++ {
		s, err := m.loadLocked(ctx, id)
		if err != nil {
			return Session{}, err
		}
		if err := writable(s); err != nil {
			return Session{}, err
		}
		now := m.clock()
		s.Status = to
		s.CompletedAt = &now
		s.TimeSpentSeconds = int(now.Sub(s.StartedAt) / time.Second)
		s.rescore()

		saved, err := m.store.Update(ctx, s)
		if apperr.IsCode(err, apperr.CodeStaleWrite) && attempt < maxWriteAttempts {
			continue
		}
		if err != nil {
			return Session{}, err
		}
		m.emit(ctx, event, saved, map[string]any{"score": saved.Score, "time_spent_seconds": saved.TimeSpentSeconds})
		return saved, nil
	}
}

func writable(s Session) error {
	switch s.Status {
	case StatusInProgress:
		return nil
	case StatusExpired:
		return apperr.State(apperr.CodeSessionExpired, fmt.Sprintf("session %q has expired", s.ID))
	default:
		return apperr.State(apperr.CodeSessionNotActive, fmt.Sprintf("session %q is %s", s.ID, s.Status))
	}
}

// IdleCutoff turns an idle window into the SweepIdle argument. A window of
// zero or less disables idle abandonment.
func IdleCutoff(now time.Time, idle time.Duration) time.Time {
	if idle <= 0 {
		return time.Time{}
	}
	return now.Add(-idle)
}

// SweepIdle expires overdue sessions and abandons those with no activity
// since idleBefore. A zero idleBefore only expires.
func (m *Manager) SweepIdle(ctx context.Context, idleBefore time.Time) (SweepResult, error) {
	res := SweepResult{Expired: []string{}, Abandoned: []string{}}
	active, err := m.store.ListInProgress(ctx)
	if err != nil {
		return res, err
	}
	for _, cand := range active {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		s, err := m.load(ctx, cand.ID)
		if err != nil {
			return res, err
		}
		switch {
		case s.Status == StatusExpired && cand.Status == StatusInProgress:
			res.Expired = append(res.Expired, s.ID)
		case s.Status == StatusInProgress && !idleBefore.IsZero() && s.LastActivityAt.Before(idleBefore):
			_, err := m.Abandon(ctx, s.ID)
			if apperr.IsKind(err, apperr.KindState) {
				continue
			}
			if err != nil {
				return res, err
			}
			res.Abandoned = append(res.Abandoned, s.ID)
		}
	}
	return res, nil
}

// Results returns the session with its score, live while in progress and
// frozen afterwards, with answer keys removed.
func (m *Manager) Results(ctx context.Context, id string) (Session, error) {
	s, err := m.load(ctx, id)
	if err != nil {
		return Session{}, err
	}
	return s.Public(), nil
}

// CountAttempts lets the authoring service lock tests that were attempted.
func (m *Manager) CountAttempts(ctx context.Context, testID string) (int, error) {
	return m.store.CountAttempts(ctx, testID)
}

func (m *Manager) emit(ctx context.Context, typ string, s Session, extra map[string]any) {
	if m.events == nil {
		return
	}
	data := map[string]any{"test_id": s.TestID, "user_id": s.UserID, "status": s.Status}
	for k, v := range extra {
		data[k] = v
	}
	buf, err := json.Marshal(data)
	if err == nil {
		err = m.events.Append(ctx, syncx.Event{Type: typ, Key: s.ID, DataJSON: string(buf), CreatedAt: m.clock().Unix()})
	}
	if err != nil && m.onError != nil {
		m.onError(fmt.Errorf("session %s: %s event: %w", s.ID, typ, err))
	}
}
