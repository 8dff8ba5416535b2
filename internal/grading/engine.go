package grading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mind-engage/mindengage-assess/internal/catalog"
)

// Q is the view of a session question needed for grading. OptionOrder maps
// a displayed option position to the catalog option index.
type Q struct {
	Type        catalog.QuestionType
	Points      float64
	Key         catalog.AnswerKey
	OptionOrder []int
}

// Result is the outcome of grading a single answer. IsCorrect is nil when
// the type needs grading outside this engine.
type Result struct {
	IsCorrect     *bool
	PointsAwarded float64
	NeedsManual   bool
}

// ErrMalformedAnswer marks a payload that does not fit the question type.
var ErrMalformedAnswer = errors.New("malformed answer")

// Strategy grades a single question type.
type Strategy interface {
	Grade(ctx context.Context, q Q, answer json.RawMessage) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, answer json.RawMessage) (Result, error)
}

type defaultGrader struct {
	strategies map[catalog.QuestionType]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, answer json.RawMessage) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{NeedsManual: true}, nil
	}
	return s.Grade(ctx, q, answer)
}

type Option func(*config)

type config struct {
	extra map[catalog.QuestionType]Strategy
}

// WithStrategy installs or replaces the strategy for one type.
func WithStrategy(t catalog.QuestionType, s Strategy) Option {
	return func(c *config) { c.extra[t] = s }
}

// NewDefaultGrader installs the built-in strategies: exact-match for
// boolean and single choice, deferred grading for the manual types.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{extra: map[catalog.QuestionType]Strategy{}}
	for _, o := range opts {
		o(cfg)
	}
	strategies := map[catalog.QuestionType]Strategy{
		catalog.TypeBoolean:       booleanStrategy{},
		catalog.TypeSingleChoice:  singleChoiceStrategy{},
		catalog.TypeOpenEnded:     manualStrategy{},
		catalog.TypeCodeChallenge: manualStrategy{},
		catalog.TypeDebugFix:      manualStrategy{},
	}
	for t, s := range cfg.extra {
		strategies[t] = s
	}
	return &defaultGrader{strategies: strategies}
}

// --- Strategies ---

type booleanStrategy struct{}

func (booleanStrategy) Grade(_ context.Context, q Q, answer json.RawMessage) (Result, error) {
	var got bool
	if err := json.Unmarshal(answer, &got); err != nil {
		return Result{}, fmt.Errorf("%w: boolean expected", ErrMalformedAnswer)
	}
	if q.Key.Bool == nil {
		return Result{NeedsManual: true}, nil
	}
	return exact(q, got == *q.Key.Bool), nil
}

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Grade(_ context.Context, q Q, answer json.RawMessage) (Result, error) {
	var shown int
	if err := json.Unmarshal(answer, &shown); err != nil {
		return Result{}, fmt.Errorf("%w: option index expected", ErrMalformedAnswer)
	}
	idx := shown
	if len(q.OptionOrder) > 0 {
		if shown < 0 || shown >= len(q.OptionOrder) {
			return Result{}, fmt.Errorf("%w: option %d out of range", ErrMalformedAnswer, shown)
		}
		idx = q.OptionOrder[shown]
	} else if shown < 0 {
		return Result{}, fmt.Errorf("%w: option %d out of range", ErrMalformedAnswer, shown)
	}
	if q.Key.Index == nil {
		return Result{NeedsManual: true}, nil
	}
	return exact(q, idx == *q.Key.Index), nil
}

type manualStrategy struct{}

func (manualStrategy) Grade(context.Context, Q, json.RawMessage) (Result, error) {
	return Result{NeedsManual: true}, nil
}

func exact(q Q, ok bool) Result {
	res := Result{IsCorrect: &ok}
	if ok {
		res.PointsAwarded = q.Points
	}
	return res
}
