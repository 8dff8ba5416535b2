// Package session runs one user's timed attempt at a test: start, answer
// capture, lazy expiry, completion and scoring.
package session

import (
	"encoding/json"
	"time"

	"github.com/mind-engage/mindengage-assess/internal/catalog"
	"github.com/mind-engage/mindengage-assess/internal/grading"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusExpired    Status = "expired"
	StatusAbandoned  Status = "abandoned"
)

func (s Status) Terminal() bool { return s != StatusInProgress }

// Question is the snapshot of one question inside a session.
type Question struct {
	QuestionID string               `json:"question_id"`
	Type       catalog.QuestionType `json:"type"`
	SectionID  string               `json:"section_id,omitempty"`
	Order      int                  `json:"order"`
	Points     float64              `json:"points"`
	// OptionOrder[i] is the catalog index of the option shown at position i.
	OptionOrder []int              `json:"option_order,omitempty"`
	AnswerKey   *catalog.AnswerKey `json:"answer_key,omitempty"`

	Answer           json.RawMessage `json:"answer,omitempty"`
	IsCorrect        *bool           `json:"is_correct"`
	PointsAwarded    float64         `json:"points_awarded"`
	TimeSpentSeconds int             `json:"time_spent_seconds"`
	HintsUsed        int             `json:"hints_used"`
	AnsweredAt       *time.Time      `json:"answered_at,omitempty"`
}

func (q Question) MaxPoints() float64     { return q.Points }
func (q Question) AwardedPoints() float64 { return q.PointsAwarded }

type Session struct {
	ID            string `json:"id"`
	TestID        string `json:"test_id"`
	UserID        string `json:"user_id"`
	AttemptNumber int    `json:"attempt_number"`
	Status        Status `json:"status"`

	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	LastActivityAt   time.Time  `json:"last_activity_at"`
	TimeSpentSeconds int        `json:"time_spent_seconds"`

	// Copied from the test at start so later edits cannot change the rules.
	TimeLimitSeconds    int `json:"time_limit_seconds"`
	PassingScorePercent int `json:"passing_score_percent"`

	Questions []Question    `json:"questions"`
	Score     grading.Score `json:"score"`
	Version   int           `json:"version"`
}

// Deadline returns when the session expires; ok is false for untimed ones.
func (s Session) Deadline() (deadline time.Time, ok bool) {
	if s.TimeLimitSeconds <= 0 {
		return time.Time{}, false
	}
	return s.StartedAt.Add(time.Duration(s.TimeLimitSeconds) * time.Second), true
}

// Overdue reports an in-progress session past its deadline at now.
func (s Session) Overdue(now time.Time) bool {
	if s.Status != StatusInProgress {
		return false
	}
	d, ok := s.Deadline()
	return ok && now.After(d)
}

func (s Session) question(id string) (int, bool) {
	for i, q := range s.Questions {
		if q.QuestionID == id {
			return i, true
		}
	}
	return -1, false
}

func (s *Session) rescore() {
	s.Score = grading.Finalize(s.Questions, s.PassingScorePercent)
}

func (s Session) Clone() Session {
	out := s
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	if s.Questions != nil {
		out.Questions = make([]Question, len(s.Questions))
		for i, q := range s.Questions {
			out.Questions[i] = q.clone()
		}
	}
	return out
}

func (q Question) clone() Question {
	out := q
	if q.OptionOrder != nil {
		out.OptionOrder = append([]int(nil), q.OptionOrder...)
	}
	if q.AnswerKey != nil {
		k := *q.AnswerKey
		if k.Bool != nil {
			b := *k.Bool
			k.Bool = &b
		}
		if k.Index != nil {
			i := *k.Index
			k.Index = &i
		}
		out.AnswerKey = &k
	}
	if q.Answer != nil {
		out.Answer = append(json.RawMessage(nil), q.Answer...)
	}
	if q.IsCorrect != nil {
		b := *q.IsCorrect
		out.IsCorrect = &b
	}
	if q.AnsweredAt != nil {
		t := *q.AnsweredAt
		out.AnsweredAt = &t
	}
	return out
}

// Public is the client view: answer keys removed.
func (s Session) Public() Session {
	out := s.Clone()
	for i := range out.Questions {
		out.Questions[i].AnswerKey = nil
	}
	return out
}

// AnswerInput is one recordAnswer call.
type AnswerInput struct {
	SessionID        string          `json:"-"`
	QuestionID       string          `json:"question_id"`
	Answer           json.RawMessage `json:"answer"`
	TimeSpentSeconds int             `json:"time_spent_seconds"`
	HintsUsed        int             `json:"hints_used"`
}

type SweepResult struct {
	Expired   []string `json:"expired"`
	Abandoned []string `json:"abandoned"`
}
