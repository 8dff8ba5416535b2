package testdef

import (
	"fmt"

	"github.com/mind-engage/mindengage-assess/internal/apperr"
)

// Validate checks the structure of a definition without touching the
// catalog. It returns a validation *apperr.Error listing every problem.
func (t TestDefinition) Validate() error {
	if problems := t.problems(); len(problems) > 0 {
		return apperr.Validation("invalid test definition", problems...)
	}
	return nil
}

func (t TestDefinition) problems() []string {
	var out []string
	add := func(format string, args ...any) { out = append(out, fmt.Sprintf(format, args...)) }

	if t.Title == "" {
		add("title is required")
	}

	s := t.Settings
	if s.TimeLimitMinutes < 0 {
		add("time_limit_minutes must be >= 0")
	}
	if s.AttemptsAllowed < 0 {
		add("attempts_allowed must be >= 0")
	}
	if s.PassingScorePercent < 0 || s.PassingScorePercent > 100 {
		add("passing_score_percent must be within 0..100")
	}
	if s.AvailableFrom != nil && s.AvailableUntil != nil && !s.AvailableFrom.Before(*s.AvailableUntil) {
		add("available_from must be before available_until")
	}

	if s.UseSections {
		if len(t.Sections) == 0 {
			add("use_sections is set but no sections are defined")
		}
		if len(t.Questions) > 0 || t.QuestionPool != nil {
			add("flat questions and question_pool must be empty when use_sections is set")
		}
		out = append(out, sectionProblems(t.Sections)...)
		return out
	}

	if len(t.Sections) > 0 {
		add("sections are defined but use_sections is not set")
	}
	switch {
	case len(t.Questions) > 0 && t.QuestionPool != nil:
		add("use either questions or question_pool, not both")
	case len(t.Questions) == 0 && t.QuestionPool == nil:
		add("questions or question_pool is required")
	}
	out = append(out, entryProblems("", t.Questions)...)
	if t.QuestionPool != nil {
		for _, p := range t.QuestionPool.Problems() {
			add("question_pool: %s", p)
		}
	}
	return out
}

func sectionProblems(sections []Section) []string {
	var out []string
	ids := map[string]bool{}
	for i, sec := range sections {
		name := sec.ID
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
			out = append(out, fmt.Sprintf("section %s: id is required", name))
		} else if ids[sec.ID] {
			out = append(out, fmt.Sprintf("section %s: duplicate id", name))
		}
		ids[sec.ID] = true

		if sec.TimeLimitMinutes <= 0 {
			out = append(out, fmt.Sprintf("section %s: time_limit_minutes must be positive", name))
		}
		if !sec.SectionType.Valid() {
			out = append(out, fmt.Sprintf("section %s: unknown section_type %q", name, sec.SectionType))
		}
		switch {
		case len(sec.Questions) > 0 && sec.Pool != nil:
			out = append(out, fmt.Sprintf("section %s: use either questions or pool, not both", name))
		case len(sec.Questions) == 0 && sec.Pool == nil:
			out = append(out, fmt.Sprintf("section %s: questions or pool is required", name))
		}
		out = append(out, entryProblems("section "+name+": ", sec.Questions)...)
		if sec.Pool != nil {
			for _, p := range sec.Pool.Problems() {
				out = append(out, fmt.Sprintf("section %s: %s", name, p))
			}
		}
	}
	// order uniqueness is reported by the section validator
	return out
}

func entryProblems(prefix string, entries []QuestionEntry) []string {
	var out []string
	ids := map[string]bool{}
	orders := map[int]bool{}
	for _, e := range entries {
		if e.QuestionID == "" {
			out = append(out, prefix+"question entry without question_id")
			continue
		}
		if ids[e.QuestionID] {
			out = append(out, fmt.Sprintf("%squestion %q listed twice", prefix, e.QuestionID))
		}
		ids[e.QuestionID] = true
		if orders[e.Order] {
			out = append(out, fmt.Sprintf("%sduplicate question order %d", prefix, e.Order))
		}
		orders[e.Order] = true
		if e.Points < 0 {
			out = append(out, fmt.Sprintf("%squestion %q has negative points", prefix, e.QuestionID))
		}
	}
	return out
}
