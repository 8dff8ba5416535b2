// Package testdef holds test blueprints: their model, structural checks,
// section validation, pool resolution and the authoring service.
package testdef

import (
	"time"

	"github.com/mind-engage/mindengage-assess/internal/assembly"
	"github.com/mind-engage/mindengage-assess/internal/catalog"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

type Settings struct {
	TimeLimitMinutes int `json:"time_limit_minutes" yaml:"time_limit_minutes"`
	// AttemptsAllowed of 0 means unlimited.
	AttemptsAllowed     int        `json:"attempts_allowed" yaml:"attempts_allowed"`
	ShuffleQuestions    bool       `json:"shuffle_questions" yaml:"shuffle_questions"`
	ShuffleOptions      bool       `json:"shuffle_options" yaml:"shuffle_options"`
	PassingScorePercent int        `json:"passing_score_percent" yaml:"passing_score_percent"`
	AvailableFrom       *time.Time `json:"available_from,omitempty" yaml:"available_from,omitempty"`
	AvailableUntil      *time.Time `json:"available_until,omitempty" yaml:"available_until,omitempty"`
	UseSections         bool       `json:"use_sections" yaml:"use_sections"`
}

// QuestionEntry references a catalog question. Zero Points keeps the
// catalog default.
type QuestionEntry struct {
	QuestionID string  `json:"question_id" yaml:"question_id"`
	Points     float64 `json:"points,omitempty" yaml:"points,omitempty"`
	Order      int     `json:"order" yaml:"order"`
}

type Section struct {
	ID               string              `json:"id" yaml:"id"`
	Title            string              `json:"title" yaml:"title"`
	Order            int                 `json:"order" yaml:"order"`
	TimeLimitMinutes int                 `json:"time_limit_minutes" yaml:"time_limit_minutes"`
	SectionType      catalog.SectionType `json:"section_type" yaml:"section_type"`
	Questions        []QuestionEntry     `json:"questions,omitempty" yaml:"questions,omitempty"`
	Pool             *assembly.Pool      `json:"pool,omitempty" yaml:"pool,omitempty"`
}

type TestDefinition struct {
	ID           string          `json:"id" yaml:"id"`
	Title        string          `json:"title" yaml:"title"`
	Settings     Settings        `json:"settings" yaml:"settings"`
	Questions    []QuestionEntry `json:"questions,omitempty" yaml:"questions,omitempty"`
	Sections     []Section       `json:"sections,omitempty" yaml:"sections,omitempty"`
	QuestionPool *assembly.Pool  `json:"question_pool,omitempty" yaml:"question_pool,omitempty"`
	Status       Status          `json:"status" yaml:"status"`
	CreatedAt    time.Time       `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time       `json:"updated_at" yaml:"-"`
}

// Available reports whether a session may start at now.
func (t TestDefinition) Available(now time.Time) bool {
	if t.Status != StatusPublished {
		return false
	}
	s := t.Settings
	if s.AvailableFrom != nil && now.Before(*s.AvailableFrom) {
		return false
	}
	if s.AvailableUntil != nil && now.After(*s.AvailableUntil) {
		return false
	}
	return true
}

// TimeLimit is the server-enforced session duration; zero means untimed.
// Section limits are not summed here.
func (t TestDefinition) TimeLimit() time.Duration {
	return time.Duration(t.Settings.TimeLimitMinutes) * time.Minute
}

// Clone returns a deep copy so callers never share slices or pointers with
// a stored definition.
func (t TestDefinition) Clone() TestDefinition {
	out := t
	out.Settings.AvailableFrom = cloneTime(t.Settings.AvailableFrom)
	out.Settings.AvailableUntil = cloneTime(t.Settings.AvailableUntil)
	out.Questions = cloneEntries(t.Questions)
	out.QuestionPool = clonePool(t.QuestionPool)
	if t.Sections != nil {
		out.Sections = make([]Section, len(t.Sections))
		for i, s := range t.Sections {
			s.Questions = cloneEntries(s.Questions)
			s.Pool = clonePool(s.Pool)
			out.Sections[i] = s
		}
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneEntries(es []QuestionEntry) []QuestionEntry {
	if es == nil {
		return nil
	}
	return append([]QuestionEntry(nil), es...)
}

func clonePool(p *assembly.Pool) *assembly.Pool {
	if p == nil {
		return nil
	}
	v := *p
	v.AvailableQuestions = append([]assembly.Available(nil), p.AvailableQuestions...)
	if p.Distribution != nil {
		d := assembly.Distribution{
			ByType:       append([]assembly.Target(nil), p.Distribution.ByType...),
			ByDifficulty: append([]assembly.Target(nil), p.Distribution.ByDifficulty...),
			BySkill:      append([]assembly.Target(nil), p.Distribution.BySkill...),
			ByTimeBucket: append([]assembly.Target(nil), p.Distribution.ByTimeBucket...),
		}
		v.Distribution = &d
	}
	return &v
}

// Summary is the list view.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
