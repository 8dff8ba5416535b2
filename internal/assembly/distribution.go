package assembly

import (
	"math"

	"github.com/mind-engage/mindengage-assess/internal/catalog"
)

type dimension struct {
	name    string
	targets []Target
	value   func(Candidate) string
}

func (d *Distribution) dimensions() []dimension {
	return []dimension{
		{name: "type", targets: d.ByType, value: func(c Candidate) string { return string(c.Type) }},
		{name: "difficulty", targets: d.ByDifficulty, value: func(c Candidate) string { return string(c.Difficulty) }},
		{name: "skill", targets: d.BySkill, value: func(c Candidate) string { return c.Skill }},
		{name: "time", targets: d.ByTimeBucket, value: func(c Candidate) string { return c.TimeBucket() }},
	}
}

type category struct {
	key   string
	count int
	match func(Candidate) bool
}

func resolveCount(t Target, total int) int {
	if t.Count > 0 {
		return t.Count
	}
	if t.Percent > 0 {
		return int(math.Round(t.Percent * float64(total) / 100))
	}
	return 0
}

func (d *Distribution) categories(total int) []category {
	var out []category
	for _, dim := range d.dimensions() {
		for _, t := range dim.targets {
			n := resolveCount(t, total)
			if n <= 0 {
				continue
			}
			value, get := t.Value, dim.value
			out = append(out, category{
				key:   dim.name + ":" + value,
				count: n,
				match: func(c Candidate) bool { return get(c) == value },
			})
		}
	}
	return out
}

// evenDifficulty splits total across the three levels, remainder to the
// easier levels first.
func evenDifficulty(total int) *Distribution {
	base, rem := total/3, total%3
	d := &Distribution{}
	for i, lvl := range catalog.Difficulties {
		n := base
		if i < rem {
			n++
		}
		d.ByDifficulty = append(d.ByDifficulty, Target{Value: string(lvl), Count: n})
	}
	return d
}
