package assembly

import (
	"math"
	"math/rand"
	"sort"
)

type drawFunc func(rng *rand.Rand, from []Candidate, k int) []Candidate

// drawUniform is a partial Fisher-Yates shuffle over a copy of from.
func drawUniform(rng *rand.Rand, from []Candidate, k int) []Candidate {
	if k <= 0 {
		return nil
	}
	pool := append([]Candidate(nil), from...)
	if k > len(pool) {
		k = len(pool)
	}
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

// drawWeighted samples k items without replacement where each successive
// draw picks an item with probability weight/remaining-weight. It uses
// Efraimidis-Spirakis exponential keys: the k smallest -ln(u)/w win.
func drawWeighted(rng *rand.Rand, from []Candidate, k int) []Candidate {
	if k <= 0 {
		return nil
	}
	if k > len(from) {
		k = len(from)
	}
	type keyed struct {
		c   Candidate
		key float64
	}
	ks := make([]keyed, len(from))
	for i, c := range from {
		w := c.Weight
		if w <= 0 {
			w = 1
		}
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		ks[i] = keyed{c: c, key: -math.Log(u) / w}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].key != ks[j].key {
			return ks[i].key < ks[j].key
		}
		return ks[i].c.ID < ks[j].c.ID
	})
	out := make([]Candidate, k)
	for i := range out {
		out[i] = ks[i].c
	}
	return out
}

// drawProgressive shuffles, then orders by difficulty rank and takes a
// prefix: the easiest items win, random within a level.
func drawProgressive(rng *rand.Rand, from []Candidate, k int) []Candidate {
	if k <= 0 {
		return nil
	}
	shuffled := drawUniform(rng, from, len(from))
	sortByDifficulty(shuffled)
	if k > len(shuffled) {
		k = len(shuffled)
	}
	return shuffled[:k]
}

func sortByDifficulty(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].Difficulty.Rank() < cs[j].Difficulty.Rank()
	})
}

func without(from []Candidate, drawn []Candidate) []Candidate {
	if len(drawn) == 0 {
		return from
	}
	gone := make(map[string]struct{}, len(drawn))
	for _, d := range drawn {
		gone[d.ID] = struct{}{}
	}
	out := make([]Candidate, 0, len(from)-len(drawn))
	for _, c := range from {
		if _, ok := gone[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}
