package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/mindengage-assess/internal/apperr"
	"github.com/mind-engage/mindengage-assess/internal/assembly"
	"github.com/mind-engage/mindengage-assess/internal/catalog"
	"github.com/mind-engage/mindengage-assess/internal/db"
	syncx "github.com/mind-engage/mindengage-assess/internal/sync"
	"github.com/mind-engage/mindengage-assess/internal/testdef"
)

var t0 = time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func questionBank() *catalog.MemoryCatalog {
	c := catalog.NewInMemory(
		catalog.QuestionRef{ID: "b1", Type: catalog.TypeBoolean, Skill: "go", Difficulty: catalog.Beginner,
			Points: 1, Status: catalog.StatusActive, AnswerKey: catalog.AnswerKey{Bool: boolPtr(true)}},
		catalog.QuestionRef{ID: "c1", Type: catalog.TypeSingleChoice, Skill: "go", Difficulty: catalog.Intermediate,
			Points: 1, Status: catalog.StatusActive, OptionCount: 4, AnswerKey: catalog.AnswerKey{Index: intPtr(2)}},
		catalog.QuestionRef{ID: "o1", Type: catalog.TypeOpenEnded, Skill: "design", Difficulty: catalog.Advanced,
			Points: 10, Status: catalog.StatusActive},
	)
	for i := 0; i < 6; i++ {
		c.Put(catalog.QuestionRef{ID: fmt.Sprintf("p%d", i), Type: catalog.TypeBoolean, Skill: "pool",
			Difficulty: catalog.Difficulties[i%3], Points: 2, Status: catalog.StatusActive,
			AnswerKey: catalog.AnswerKey{Bool: boolPtr(i%2 == 0)}})
	}
	return c
}

type fixture struct {
	now    atomic.Pointer[time.Time]
	tests  testdef.Store
	store  Store
	events *syncx.MemoryLog
	mgr    *Manager
}

func (f *fixture) at(t time.Time) { f.now.Store(&t) }

func (f *fixture) advance(d time.Duration) { f.at(f.now.Load().Add(d)) }

// publish stores def as a published test and returns its id.
func (f *fixture) publish(t *testing.T, id string, def testdef.TestDefinition) string {
	t.Helper()
	def.ID = id
	def.Status = testdef.StatusPublished
	require.NoError(t, f.tests.Put(context.Background(), def))
	return id
}

func newFixture(t *testing.T, store Store) *fixture {
	t.Helper()
	f := &fixture{tests: testdef.NewInMemoryStore(), store: store, events: &syncx.MemoryLog{}}
	f.at(t0)
	f.mgr = NewManager(store, f.tests, testdef.NewResolver(questionBank()),
		WithClock(func() time.Time { return *f.now.Load() }),
		WithRand(func() *rand.Rand { return rand.New(rand.NewSource(7)) }),
		WithEvents(f.events, func(err error) { t.Errorf("event log: %v", err) }),
	)
	return f
}

// stores runs fn against the in-memory store and a sqlite-backed store.
func stores(t *testing.T, fn func(t *testing.T, f *fixture)) {
	t.Run("memory", func(t *testing.T) { fn(t, newFixture(t, NewInMemoryStore())) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newFixture(t, NewSQLStore(openTestDB(t)))) })
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.Open(context.Background(), db.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	// one connection keeps the shared in-memory database alive and avoids
	// shared-cache table locks
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func basicTest() testdef.TestDefinition {
	return testdef.TestDefinition{
		Title: "Go quiz",
		Settings: testdef.Settings{
			TimeLimitMinutes:    60,
			AttemptsAllowed:     1,
			PassingScorePercent: 70,
		},
		Questions: []testdef.QuestionEntry{
			{QuestionID: "b1", Points: 8, Order: 1},
			{QuestionID: "c1", Points: 2, Order: 2},
		},
	}
}

func answer(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func TestSingleAttemptScenario(t *testing.T) {
	stores(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		id := f.publish(t, "t1", basicTest())

		s, err := f.mgr.Start(ctx, id, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, s.AttemptNumber)
		assert.Equal(t, StatusInProgress, s.Status)
		require.Len(t, s.Questions, 2)
		assert.Equal(t, 10.0, s.Score.TotalPoints)

		_, err = f.mgr.RecordAnswer(ctx, AnswerInput{SessionID: s.ID, QuestionID: "b1", Answer: answer(true), TimeSpentSeconds: 20})
		require.NoError(t, err)
		_, err = f.mgr.RecordAnswer(ctx, AnswerInput{SessionID: s.ID, QuestionID: "c1", Answer: answer(0), TimeSpentSeconds: 15})
		require.NoError(t, err)

		f.advance(10 * time.Minute)
		done, err := f.mgr.Complete(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, done.Status)
		require.NotNil(t, done.CompletedAt)
		assert.Equal(t, 600, done.TimeSpentSeconds)
		assert.Equal(t, 8.0, done.Score.EarnedPoints)
		assert.Equal(t, 10.0, done.Score.TotalPoints)
		assert.Equal(t, 80, done.Score.Percentage)
		assert.True(t, done.Score.Passed)

		_, err = f.mgr.Start(ctx, id, "u1")
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindConflict))
		assert.True(t, apperr.IsCode(err, apperr.CodeAttemptLimitReached))

		assert.Equal(t, []string{EventStarted, EventAnswered, EventAnswered, EventCompleted}, f.events.Types(s.ID))
	})
}

func TestConcurrentStartCreatesOneSession(t *testing.T) {
	stores(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		def := basicTest()
		def.Settings.AttemptsAllowed = 0
		id := f.publish(t, "t1", def)

		const callers = 8
		ids := make([]string, callers)
		errs := make([]error, callers)
		var g errgroup.Group
		for i := 0; i < callers; i++ {
			g.Go(func() error {
				s, err := f.mgr.Start(ctx, id, "u1")
				ids[i], errs[i] = s.ID, err
				return nil
			})
		}
		require.NoError(t, g.Wait())

		var winner string
		for i, err := range errs {
			if err == nil {
				require.Empty(t, winner, "two sessions were created")
				winner = ids[i]
			}
		}
		require.NotEmpty(t, winner)
		for _, err := range errs {
			if err == nil {
				continue
			}
			e, ok := apperr.As(err)
			require.True(t, ok, "unexpected error %v", err)
			assert.Equal(t, apperr.CodeActiveSessionExists, e.Code)
			assert.Equal(t, winner, e.SessionID)
		}

		n, err := f.store.CountAttempts(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestActiveSessionReturnedForResume(t *testing.T) {
	stores(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		id := f.publish(t, "t1", basicTest())
		first, err := f.mgr.Start(ctx, id, "u1")
		require.NoError(t, err)

		// the in-progress session is reported before the attempt limit
		_, err = f.mgr.Start(ctx, id, "u1")
		e, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.CodeActiveSessionExists, e.Code)
		assert.Equal(t, first.ID, e.SessionID)

		other, err := f.mgr.Start(ctx, id, "u2")
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, other.ID)
	})
}

func TestLazyExpiry(t *testing.T) {
	stores(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		id := f.publish(t, "t1", basicTest())
		s, err := f.mgr.Start(ctx, id, "u1")
		require.NoError(t, err)
		_, err = f.mgr.RecordAnswer(ctx, AnswerInput{SessionID: s.ID, QuestionID: "b1", Answer: answer(true)})
		require.NoError(t, err)

		f.advance(61 * time.Minute)
		got, err := f.mgr.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusExpired, got.Status)
		assert.Equal(t, 3600, got.TimeSpentSeconds)
		assert.Equal(t, 8.0, got.Score.EarnedPoints, "score freezes with the answers captured so far")

		stored, err := f.store.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusExpired, stored.Status, "expiry is persisted")

		_, err = f.mgr.RecordAnswer(ctx, AnswerInput{SessionID: s.ID, QuestionID: "c1", Answer: answer(2)})
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindState))
		assert.True(t, apperr.IsCode(err, apperr.CodeSessionExpired))

		assert.Equal(t, []string{EventStarted, EventAnswered, EventExpired}, f.events.Types(s.ID))
	})
}

func TestExpiryAppliedBeforeWrite(t *testing.T) {
	f := newFixture(t, NewInMemoryStore())
	ctx := context.Background()
	id := f.publish(t, "t1", basicTest())
	s, err := f.mgr.Start(ctx, id, "u1")
	require.NoError(t, err)

	f.advance(61 * time.Minute)
	_, err = f.mgr.RecordAnswer(ctx, AnswerInput{SessionID: s.ID, QuestionID: "b1", Answer: answer(true)})
	assert.True(t, apperr.IsCode(err, apperr.CodeSessionExpired))
	_, err = f.mgr.Complete(ctx, s.ID)
	assert.True(t, apperr.IsCode(err, apperr.CodeSessionExpired))

	got, err := f.store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
	assert.Nil(t, got.Questions[0].Answer)
}

func TestUntimedSessionsNeverExpire(t *testing.T) {
	f := newFixture(t, NewInMemoryStore())
	def := basicTest()
	def.Settings.TimeLimitMinutes = 0
	id := f.publish(t, "t1", def)
	s, err := f.mgr.Start(context.Background(), id, "u1")
	require.NoError(t, err)

	f.advance(1000 * time.Hour)
	got, err := f.mgr.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got.Status)
}

func TestExpiredSessionDoesNotBlockNextAttempt(t *testing.T) {
	stores(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		def := basicTest()
		def.Settings.AttemptsAllowed = 2
		id := f.publish(t, "t1", def)

		first, err := f.mgr.Start(ctx, id, "u1")
		require.NoError(t, err)
		f.advance(61 * time.Minute)

		second, err := f.mgr.Start(ctx, id, "u1")
		require.NoError(t, err)
		assert.Equal(t, 2, second.AttemptNumber)

		old, err := f.store.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusExpired, old.Status)

		_, err = f.mgr.Complete(ctx, second.ID)
		require.NoError(t, err)
		_, err = f.mgr.Start(ctx, id, "u1")
		assert.True(t, apperr.IsCode(err, apperr.CodeAttemptLimitReached))
	})
}

func TestStartRejectsUnavailable(t *testing.T) {
	f := newFixture(t, NewInMemoryStore())
	ctx := context.Background()

	_, err := f.mgr.Start(ctx, "missing", "u1")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	draft := basicTest()
	draft.ID = "draft"
	draft.Status = testdef.StatusDraft
	require.NoError(t, f.tests.Put(ctx, draft))
	_, err = f.mgr.Start(ctx, "draft", "u1")
	assert.True(t, apperr.IsCode(err, apperr.CodeTestUnavailable))

	later := t0.Add(24 * time.Hour)
	windowed := basicTest()
	windowed.Settings.AvailableFrom = &later
	id := f.publish(t, "windowed", windowed)
	_, err = f.mgr.Start(ctx, id, "u1")
	assert.True(t, apperr.IsCode(err, apperr.CodeTestUnavailable))

	f.at(later.Add(time.Minute))
	_, err = f.mgr.Start(ctx, id, "u1")
	require.NoError(t, err)

	n, err := f.store.CountAttempts(ctx, "draft")
	require.NoError(t, err)
	assert.Zero(t, n, "rejected starts leave nothing behind")
}

func TestRecordAnswer(t *testing.T) {
	stores(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		def := basicTest()
		def.Questions = append(def.Questions, testdef.QuestionEntry{QuestionID: "o1", Order: 3})
		id := f.publish(t, "t1", def)
		s, err := f.mgr.Start(ctx, id, "u1")
		require.NoError(t, err)

		_, err = f.mgr.RecordAnswer(ctx, AnswerInput{SessionID: s.ID, QuestionID: "zz", Answer: answer(true)})
		assert.True(t, apperr.IsCode(err, apperr.CodeQuestionNotInSession))

		_, err = f.mgr.RecordAnswer(ctx, AnswerInput{SessionID: s.ID, QuestionID: "b1", Answer: answer("yes")})
		assert.True(t, apperr.IsCode(err, apperr.CodeInvalidAnswer))
		_, err = f.mgr.RecordAnswer(ctx, AnswerInput{SessionID: s.ID, QuestionID: "b1", Answer: json.RawMessage("null")})
		assert.True(t, apperr.IsCode(err, apperr.CodeInvalidAnswer))
		_, err = f.mgr.RecordAnswer(ctx, AnswerInput{SessionID: s.ID, QuestionID: "b1", Answer: answer(true), TimeSpentSeconds: -1})
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))

		_, err = f.mgr.RecordAnswer(ctx, AnswerInput{SessionID: s.ID, QuestionID: "b1", Answer: answer(false), TimeSpentSeconds: 30, HintsUsed: 1})
		require.NoError(t, err)
		got, err := f.mgr.RecordAnswer(ctx, AnswerInput{SessionID: s.ID, QuestionID: "b1", Answer: answer(true), TimeSpentSeconds: 12})
		require.NoError(t, err)

		b1 := got.Questions[0]
		require.NotNil(t, b1.IsCorrect)
		assert.True(t, *b1.IsCorrect, "the latest answer replaces the earlier one")
		assert.Equal(t, 8.0, b1.PointsAwarded)
		assert.Equal(t, 42, b1.TimeSpentSeconds)
		assert.Equal(t, 1, b1.HintsUsed)
		assert.JSONEq(t, `true`, string(b1.Answer))

		got, err = f.mgr.RecordAnswer(ctx, AnswerInput{SessionID: s.ID, QuestionID: "o1", Answer: answer("goroutines are cheap")})
		require.NoError(t, err)
		o1 := got.Questions[2]
		assert.Nil(t, o1.IsCorrect, "open-ended answers wait for manual grading")
		assert.Zero(t, o1.PointsAwarded)

		assert.Equal(t, 20.0, got.Score.TotalPoints)
		assert.Equal(t, 8.0, got.Score.EarnedPoints)
		assert.Equal(t, 40, got.Score.Percentage)
	})
}

func TestTerminalSessionsRejectWrites(t *testing.T) {
	stores(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		id := f.publish(t, "t1", basicTest())
		s, err := f.mgr.Start(ctx, id, "u1")
		require.NoError(t, err)
		done, err := f.mgr.Complete(ctx, s.ID)
		require.NoError(t, err)

		_, err = f.mgr.Complete(ctx, s.ID)
		assert.True(t, apperr.IsCode(err, apperr.CodeSessionNotActive))
		_, err = f.mgr.RecordAnswer(ctx, AnswerInput{SessionID: s.ID, QuestionID: "b1", Answer: answer(true)})
		assert.True(t, apperr.IsKind(err, apperr.KindState))
		_, err = f.mgr.Abandon(ctx, s.ID)
		assert.True(t, apperr.IsKind(err, apperr.KindState))

		f.advance(5 * time.Hour)
		again, err := f.mgr.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, again.Status, "completed sessions never expire")
		assert.Equal(t, done.Score, again.Score)
	})
}

func TestSnapshotIgnoresLaterEdits(t *testing.T) {
	f := newFixture(t, NewInMemoryStore())
	ctx := context.Background()
	id := f.publish(t, "t1", basicTest())
	s, err := f.mgr.Start(ctx, id, "u1")
	require.NoError(t, err)

	edited := basicTest()
	edited.Settings.TimeLimitMinutes = 5
	edited.Questions[0].Points = 100
	f.publish(t, id, edited)

	f.advance(30 * time.Minute)
	got, err := f.mgr.RecordAnswer(ctx, AnswerInput{SessionID: s.ID, QuestionID: "b1", Answer: answer(true)})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got.Status)
	assert.Equal(t, 8.0, got.Questions[0].Points)
	assert.Equal(t, 3600, got.TimeLimitSeconds)
}

func TestShuffleOptionsGradesAgainstCatalogIndex(t *testing.T) {
	f := newFixture(t, NewInMemoryStore())
	ctx := context.Background()
	def := basicTest()
	def.Settings.ShuffleOptions = true
	id := f.publish(t, "t1", def)
	s, err := f.mgr.Start(ctx, id, "u1")
	require.NoError(t, err)

	c1 := s.Questions[1]
	require.Equal(t, "c1", c1.QuestionID)
	require.Len(t, c1.OptionOrder, 4)
	assert.ElementsMatch(t, []int{0, 1, 2, 3}, c1.OptionOrder)
	assert.Nil(t, s.Questions[0].OptionOrder, "boolean questions have no options to shuffle")

	shown := -1
	for pos, idx := range c1.OptionOrder {
		if idx == 2 {
			shown = pos
		}
	}
	got, err := f.mgr.RecordAnswer(ctx, AnswerInput{SessionID: s.ID, QuestionID: "c1", Answer: answer(shown)})
	require.NoError(t, err)
	require.NotNil(t, got.Questions[1].IsCorrect)
	assert.True(t, *got.Questions[1].IsCorrect)
}

func TestShuffleQuestionsKeepsSet(t *testing.T) {
	f := newFixture(t, NewInMemoryStore())
	def := basicTest()
	def.Settings.ShuffleQuestions = true
	def.Questions = append(def.Questions, testdef.QuestionEntry{QuestionID: "o1", Order: 3})
	id := f.publish(t, "t1", def)
	s, err := f.mgr.Start(context.Background(), id, "u1")
	require.NoError(t, err)

	var ids []string
	for i, q := range s.Questions {
		assert.Equal(t, i+1, q.Order)
		ids = append(ids, q.QuestionID)
	}
	assert.ElementsMatch(t, []string{"b1", "c1", "o1"}, ids)
}

func TestPoolSessionsAreDrawnAtStart(t *testing.T) {
	stores(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		def := basicTest()
		def.Settings.AttemptsAllowed = 0
		def.Questions = nil
		def.QuestionPool = &assembly.Pool{
			TotalQuestions: 4,
			Strategy:       assembly.StrategyProgressive,
			AvailableQuestions: []assembly.Available{
				{QuestionID: "p0"}, {QuestionID: "p1"}, {QuestionID: "p2"},
				{QuestionID: "p3"}, {QuestionID: "p4", Points: 6}, {QuestionID: "p5"},
			},
		}
		id := f.publish(t, "t1", def)
		s, err := f.mgr.Start(ctx, id, "u1")
		require.NoError(t, err)
		require.Len(t, s.Questions, 4)

		seen := map[string]bool{}
		for _, q := range s.Questions {
			assert.True(t, strings.HasPrefix(q.QuestionID, "p"))
			assert.False(t, seen[q.QuestionID])
			seen[q.QuestionID] = true
			if q.QuestionID == "p4" {
				assert.Equal(t, 6.0, q.Points)
			}
		}
	})
}

func TestSweepIdle(t *testing.T) {
	stores(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		long := f.publish(t, "long", basicTest())
		short := basicTest()
		short.Settings.TimeLimitMinutes = 10
		shortID := f.publish(t, "short", short)

		idle, err := f.mgr.Start(ctx, long, "idle")
		require.NoError(t, err)
		busy, err := f.mgr.Start(ctx, long, "busy")
		require.NoError(t, err)
		overdue, err := f.mgr.Start(ctx, shortID, "late")
		require.NoError(t, err)

		f.advance(40 * time.Minute)
		_, err = f.mgr.RecordAnswer(ctx, AnswerInput{SessionID: busy.ID, QuestionID: "b1", Answer: answer(true)})
		require.NoError(t, err)

		f.advance(10 * time.Minute)
		res, err := f.mgr.SweepIdle(ctx, t0.Add(20*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, []string{idle.ID}, res.Abandoned)
		assert.Equal(t, []string{overdue.ID}, res.Expired)

		got, err := f.store.Get(ctx, idle.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusAbandoned, got.Status)
		assert.Equal(t, 3000, got.TimeSpentSeconds)

		got, err = f.store.Get(ctx, busy.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusInProgress, got.Status)

		again, err := f.mgr.SweepIdle(ctx, time.Time{})
		require.NoError(t, err)
		assert.Empty(t, again.Abandoned)
		assert.Empty(t, again.Expired)
	})
}

func TestIdleCutoff(t *testing.T) {
	cases := []struct {
		name string
		idle time.Duration
		want time.Time
	}{
		{"zero disables abandonment", 0, time.Time{}},
		{"negative disables abandonment", -time.Minute, time.Time{}},
		{"window", 30 * time.Minute, t0.Add(-30 * time.Minute)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IdleCutoff(t0, tc.idle))
		})
	}
}

func TestResultsStripAnswerKeys(t *testing.T) {
	f := newFixture(t, NewInMemoryStore())
	ctx := context.Background()
	id := f.publish(t, "t1", basicTest())
	s, err := f.mgr.Start(ctx, id, "u1")
	require.NoError(t, err)
	require.NotNil(t, s.Questions[0].AnswerKey)

	_, err = f.mgr.RecordAnswer(ctx, AnswerInput{SessionID: s.ID, QuestionID: "c1", Answer: answer(2)})
	require.NoError(t, err)

	res, err := f.mgr.Results(ctx, s.ID)
	require.NoError(t, err)
	for _, q := range res.Questions {
		assert.Nil(t, q.AnswerKey)
	}
	assert.Equal(t, 2.0, res.Score.EarnedPoints, "in-progress results carry the live score")

	stored, err := f.store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.Questions[0].AnswerKey, "stripping never touches the stored snapshot")

	_, err = f.mgr.Results(ctx, "nope")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestConcurrentAnswersAreSerialized(t *testing.T) {
	stores(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		id := f.publish(t, "t1", basicTest())
		s, err := f.mgr.Start(ctx, id, "u1")
		require.NoError(t, err)

		const writers = 20
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < writers; i++ {
			qid := []string{"b1", "c1"}[i%2]
			g.Go(func() error {
				_, err := f.mgr.RecordAnswer(gctx, AnswerInput{SessionID: s.ID, QuestionID: qid, Answer: answer(true), TimeSpentSeconds: 1})
				if qid == "c1" && apperr.IsCode(err, apperr.CodeInvalidAnswer) {
					// a boolean is not an option index; the time still must not count
					return nil
				}
				return err
			})
		}
		require.NoError(t, g.Wait())

		got, err := f.mgr.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, writers/2, got.Questions[0].TimeSpentSeconds, "no update is lost")
		assert.Zero(t, got.Questions[1].TimeSpentSeconds, "rejected writes change nothing")
	})
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")
	done := make(chan struct{})
	go func() {
		defer close(done)
		k.Lock("a")()
	}()
	unlock()
	<-done
	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}
