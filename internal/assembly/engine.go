// Package assembly turns a Pool specification into a concrete ordered
// selection of questions.
package assembly

import (
	"math/rand"
	"sort"
	"time"
)

// NewRand returns a time-seeded source for callers that do not need
// reproducible draws.
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Assemble draws up to pool.TotalQuestions items from candidates. It keeps
// no state; all randomness comes from rng. Candidates are expected to be
// pre-filtered (active status, section type). A scarce pool yields fewer
// items and a Report describing the shortfall, never an error.
func Assemble(pool Pool, candidates []Candidate, rng *rand.Rand) ([]Selected, Report) {
	total := pool.TotalQuestions
	rep := Report{Requested: total}
	if total < 1 {
		return nil, rep
	}
	if rng == nil {
		rng = NewRand()
	}

	remaining := normalize(candidates)
	draw := drawUniform
	if pool.Strategy == StrategyWeighted {
		draw = drawWeighted
	}

	var cats []category
	switch {
	case !pool.Distribution.empty():
		cats = pool.Distribution.categories(total)
	case pool.Strategy == StrategyBalanced:
		cats = evenDifficulty(total).categories(total)
	}

	picked := make([]Candidate, 0, min(total, len(remaining)))
	for _, cat := range cats {
		var inCat []Candidate
		for _, c := range remaining {
			if cat.match(c) {
				inCat = append(inCat, c)
			}
		}
		k := min(cat.count, len(inCat))
		chosen := draw(rng, inCat, k)
		picked = append(picked, chosen...)
		remaining = without(remaining, chosen)
		if k < cat.count {
			rep.UnmetTargets = append(rep.UnmetTargets, CategoryCount{Category: cat.key, Count: cat.count - k})
		}
	}

	if need := total - len(picked); need > 0 {
		fill := draw
		if pool.Strategy == StrategyProgressive && len(cats) == 0 {
			fill = drawProgressive
		}
		picked = append(picked, fill(rng, remaining, need)...)
	}
	if len(picked) > total {
		picked = picked[:total]
	}

	if pool.Strategy == StrategyProgressive {
		sortByDifficulty(picked)
	} else {
		picked = applyConstraints(picked, pool.Constraints)
	}

	out := make([]Selected, len(picked))
	for i, c := range picked {
		out[i] = Selected{QuestionRef: c.QuestionRef, Order: i + 1}
	}
	rep.Selected = len(out)
	rep.ShortfallByCategory = attribute(rep.Shortfall(), rep.UnmetTargets)
	return out, rep
}

// normalize sorts by id and drops duplicate ids so a fixed seed always
// yields the same draw.
func normalize(cs []Candidate) []Candidate {
	out := append([]Candidate(nil), cs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	n := 0
	for i, c := range out {
		if i > 0 && c.ID == out[n-1].ID {
			continue
		}
		out[n] = c
		n++
	}
	return out[:n]
}

// attribute spreads deficit over unmet targets in processing order; the
// rest is keyed Untargeted.
func attribute(deficit int, unmet []CategoryCount) map[string]int {
	if deficit <= 0 {
		return nil
	}
	out := map[string]int{}
	for _, u := range unmet {
		if deficit == 0 {
			break
		}
		n := min(u.Count, deficit)
		out[u.Category] += n
		deficit -= n
	}
	if deficit > 0 {
		out[Untargeted] += deficit
	}
	return out
}
