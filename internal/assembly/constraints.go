package assembly

import "github.com/mind-engage/mindengage-assess/internal/catalog"

func applyConstraints(cs []Candidate, c Constraints) []Candidate {
	if c.SpreadSkills {
		cs = spreadSkills(cs)
	}
	if c.MaxConsecutiveSameDifficulty > 0 {
		cs = limitRuns(cs, c.MaxConsecutiveSameDifficulty)
	}
	return cs
}

// spreadSkills interleaves items round-robin by skill, skills taken in
// order of first appearance.
func spreadSkills(cs []Candidate) []Candidate {
	var order []string
	groups := map[string][]Candidate{}
	for _, c := range cs {
		if _, ok := groups[c.Skill]; !ok {
			order = append(order, c.Skill)
		}
		groups[c.Skill] = append(groups[c.Skill], c)
	}
	out := make([]Candidate, 0, len(cs))
	for len(out) < len(cs) {
		for _, s := range order {
			if g := groups[s]; len(g) > 0 {
				out = append(out, g[0])
				groups[s] = g[1:]
			}
		}
	}
	return out
}

// limitRuns reorders so no more than max consecutive items share a
// difficulty. Each step takes the level with the most items left among the
// levels allowed next, earliest item first on ties. A run is extended past
// max only when no other level remains.
func limitRuns(cs []Candidate, max int) []Candidate {
	rest := append([]Candidate(nil), cs...)
	left := map[catalog.Difficulty]int{}
	for _, c := range rest {
		left[c.Difficulty]++
	}
	out := make([]Candidate, 0, len(cs))
	for len(rest) > 0 {
		blocked := catalog.Difficulty("")
		if len(out) > 0 && runLen(out) >= max {
			blocked = out[len(out)-1].Difficulty
		}
		pick := -1
		for i, c := range rest {
			if len(out) > 0 && runLen(out) >= max && c.Difficulty == blocked {
				continue
			}
			if pick < 0 || left[c.Difficulty] > left[rest[pick].Difficulty] {
				pick = i
			}
		}
		if pick < 0 {
			pick = 0
		}
		left[rest[pick].Difficulty]--
		out = append(out, rest[pick])
		rest = append(rest[:pick], rest[pick+1:]...)
	}
	return out
}

func runLen(cs []Candidate) int {
	if len(cs) == 0 {
		return 0
	}
	last := cs[len(cs)-1].Difficulty
	n := 0
	for i := len(cs) - 1; i >= 0 && cs[i].Difficulty == last; i-- {
		n++
	}
	return n
}
