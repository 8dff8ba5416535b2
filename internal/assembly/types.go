package assembly

import (
	"fmt"

	"github.com/mind-engage/mindengage-assess/internal/catalog"
)

type Strategy string

const (
	StrategyRandom      Strategy = "random"
	StrategyBalanced    Strategy = "balanced"
	StrategyProgressive Strategy = "progressive"
	StrategyWeighted    Strategy = "weighted"
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategyRandom, StrategyBalanced, StrategyProgressive, StrategyWeighted:
		return true
	}
	return false
}

// Target asks for Count items of one category value. Percent is used when
// Count is zero and is resolved against Pool.TotalQuestions.
type Target struct {
	Value   string  `json:"value" yaml:"value"`
	Count   int     `json:"count,omitempty" yaml:"count,omitempty"`
	Percent float64 `json:"percent,omitempty" yaml:"percent,omitempty"`
}

// Distribution lists targets per dimension. Slice order is processing order.
type Distribution struct {
	ByType       []Target `json:"by_type,omitempty" yaml:"by_type,omitempty"`
	ByDifficulty []Target `json:"by_difficulty,omitempty" yaml:"by_difficulty,omitempty"`
	BySkill      []Target `json:"by_skill,omitempty" yaml:"by_skill,omitempty"`
	ByTimeBucket []Target `json:"by_time_bucket,omitempty" yaml:"by_time_bucket,omitempty"`
}

func (d *Distribution) empty() bool {
	return d == nil || len(d.ByType)+len(d.ByDifficulty)+len(d.BySkill)+len(d.ByTimeBucket) == 0
}

type Constraints struct {
	MaxConsecutiveSameDifficulty int  `json:"max_consecutive_same_difficulty,omitempty" yaml:"max_consecutive_same_difficulty,omitempty"`
	SpreadSkills                 bool `json:"spread_skills,omitempty" yaml:"spread_skills,omitempty"`
}

// Available is one entry of a pool's eligible superset. Zero Points keeps
// the catalog default; zero Weight means 1.
type Available struct {
	QuestionID string  `json:"question_id" yaml:"question_id"`
	Points     float64 `json:"points,omitempty" yaml:"points,omitempty"`
	Weight     float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// Pool is a selection specification, not a materialized list.
type Pool struct {
	TotalQuestions     int           `json:"total_questions" yaml:"total_questions"`
	Strategy           Strategy      `json:"selection_strategy" yaml:"selection_strategy"`
	AvailableQuestions []Available   `json:"available_questions,omitempty" yaml:"available_questions,omitempty"`
	Distribution       *Distribution `json:"distribution,omitempty" yaml:"distribution,omitempty"`
	Constraints        Constraints   `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// MaxPoolQuestions caps how many questions one pool may ask for.
const MaxPoolQuestions = 500

// Problems lists what makes the pool unusable; nil means valid.
func (p Pool) Problems() []string {
	var out []string
	if p.TotalQuestions < 1 || p.TotalQuestions > MaxPoolQuestions {
		out = append(out, fmt.Sprintf("pool total_questions must be within 1..%d", MaxPoolQuestions))
	}
	if p.Strategy != "" && !p.Strategy.Valid() {
		out = append(out, fmt.Sprintf("unknown selection strategy %q", p.Strategy))
	}
	seen := map[string]bool{}
	for _, a := range p.AvailableQuestions {
		if a.QuestionID == "" {
			out = append(out, "pool entry without question_id")
			continue
		}
		if seen[a.QuestionID] {
			out = append(out, fmt.Sprintf("question %q listed twice in pool", a.QuestionID))
		}
		seen[a.QuestionID] = true
		if a.Points < 0 || a.Weight < 0 {
			out = append(out, fmt.Sprintf("question %q has negative points or weight", a.QuestionID))
		}
	}
	if p.Constraints.MaxConsecutiveSameDifficulty < 0 {
		out = append(out, "max_consecutive_same_difficulty must be >= 0")
	}
	if p.Distribution != nil {
		for _, dim := range p.Distribution.dimensions() {
			for _, t := range dim.targets {
				if t.Value == "" {
					out = append(out, fmt.Sprintf("%s target without value", dim.name))
				}
				if t.Count < 0 || t.Percent < 0 || t.Percent > 100 {
					out = append(out, fmt.Sprintf("%s target %q out of range", dim.name, t.Value))
				}
			}
		}
	}
	return out
}

// Candidate is a catalog question eligible for a draw, with its resolved
// point value and weight.
type Candidate struct {
	catalog.QuestionRef
	Weight float64
}

// Candidates joins a pool's available list with catalog records. When the
// pool lists no questions every ref is eligible at catalog defaults.
func Candidates(p Pool, refs []catalog.QuestionRef) []Candidate {
	if len(p.AvailableQuestions) == 0 {
		out := make([]Candidate, len(refs))
		for i, r := range refs {
			out[i] = Candidate{QuestionRef: r, Weight: 1}
		}
		return out
	}
	byID := make(map[string]Available, len(p.AvailableQuestions))
	for _, a := range p.AvailableQuestions {
		byID[a.QuestionID] = a
	}
	out := make([]Candidate, 0, len(p.AvailableQuestions))
	for _, r := range refs {
		a, ok := byID[r.ID]
		if !ok {
			continue
		}
		c := Candidate{QuestionRef: r, Weight: a.Weight}
		if a.Points > 0 {
			c.Points = a.Points
		}
		if c.Weight <= 0 {
			c.Weight = 1
		}
		out = append(out, c)
	}
	return out
}

// Selected is one drawn question with its 1-based position.
type Selected struct {
	catalog.QuestionRef
	Order int `json:"order"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type Report struct {
	Requested int `json:"requested"`
	Selected  int `json:"selected"`
	// UnmetTargets is the raw gap per targeted category, before fill.
	UnmetTargets []CategoryCount `json:"unmet_targets,omitempty"`
	// ShortfallByCategory attributes Requested-Selected to categories and
	// always sums to it.
	ShortfallByCategory map[string]int `json:"shortfall_by_category,omitempty"`
}

func (r Report) Shortfall() int { return r.Requested - r.Selected }

// Untargeted keys deficit that no target accounts for.
const Untargeted = "untargeted"
