package assembly

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-assess/internal/catalog"
)

func bank(spec map[catalog.Difficulty]int) []Candidate {
	var out []Candidate
	for _, lvl := range catalog.Difficulties {
		for i := 0; i < spec[lvl]; i++ {
			out = append(out, Candidate{
				QuestionRef: catalog.QuestionRef{
					ID:         fmt.Sprintf("%s-%02d", lvl, i),
					Type:       catalog.TypeSingleChoice,
					Skill:      "go",
					Difficulty: lvl,
					Points:     1,
					Status:     catalog.StatusActive,
				},
				Weight: 1,
			})
		}
	}
	return out
}

func ids(sel []Selected) []string {
	out := make([]string, len(sel))
	for i, s := range sel {
		out[i] = s.ID
	}
	return out
}

func TestAssembleReturnsExactlyNDistinctCandidates(t *testing.T) {
	cands := bank(map[catalog.Difficulty]int{catalog.Beginner: 8, catalog.Intermediate: 8, catalog.Advanced: 8})
	inPool := map[string]bool{}
	for _, c := range cands {
		inPool[c.ID] = true
	}

	for _, strategy := range []Strategy{StrategyRandom, StrategyBalanced, StrategyProgressive, StrategyWeighted} {
		for seed := int64(0); seed < 20; seed++ {
			t.Run(fmt.Sprintf("%s/%d", strategy, seed), func(t *testing.T) {
				sel, rep := Assemble(Pool{TotalQuestions: 10, Strategy: strategy}, cands, rand.New(rand.NewSource(seed)))
				require.Len(t, sel, 10)
				seen := map[string]bool{}
				for i, s := range sel {
					assert.True(t, inPool[s.ID], "unknown id %s", s.ID)
					assert.False(t, seen[s.ID], "duplicate id %s", s.ID)
					seen[s.ID] = true
					assert.Equal(t, i+1, s.Order)
				}
				assert.Equal(t, 0, rep.Shortfall())
				assert.Empty(t, rep.ShortfallByCategory)
			})
		}
	}
}

func TestAssembleScarcePoolReturnsEverything(t *testing.T) {
	cands := bank(map[catalog.Difficulty]int{catalog.Beginner: 2, catalog.Intermediate: 1, catalog.Advanced: 1})

	cases := []struct {
		name string
		pool Pool
	}{
		{"random", Pool{TotalQuestions: 10, Strategy: StrategyRandom}},
		{"weighted", Pool{TotalQuestions: 10, Strategy: StrategyWeighted}},
		{"balanced implied split", Pool{TotalQuestions: 10, Strategy: StrategyBalanced}},
		{"explicit targets", Pool{TotalQuestions: 10, Strategy: StrategyRandom, Distribution: &Distribution{
			ByDifficulty: []Target{{Value: "advanced", Count: 9}},
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sel, rep := Assemble(tc.pool, cands, rand.New(rand.NewSource(7)))
			assert.Len(t, sel, len(cands))
			assert.Equal(t, 10, rep.Requested)
			assert.Equal(t, len(cands), rep.Selected)

			sum := 0
			for _, n := range rep.ShortfallByCategory {
				sum += n
			}
			assert.Equal(t, 10-len(cands), sum)
		})
	}
}

func TestAssembleShortfallAttribution(t *testing.T) {
	cands := bank(map[catalog.Difficulty]int{catalog.Beginner: 6, catalog.Advanced: 1})
	pool := Pool{TotalQuestions: 10, Distribution: &Distribution{
		ByDifficulty: []Target{{Value: "advanced", Count: 4}, {Value: "intermediate", Count: 2}},
	}}

	sel, rep := Assemble(pool, cands, rand.New(rand.NewSource(1)))
	assert.Len(t, sel, 7)
	assert.Equal(t, []CategoryCount{
		{Category: "difficulty:advanced", Count: 3},
		{Category: "difficulty:intermediate", Count: 2},
	}, rep.UnmetTargets)
	assert.Equal(t, map[string]int{"difficulty:advanced": 3}, rep.ShortfallByCategory)
}

func TestBalancedExplicitSplit(t *testing.T) {
	cands := bank(map[catalog.Difficulty]int{catalog.Beginner: 9, catalog.Intermediate: 6, catalog.Advanced: 4})
	pool := Pool{TotalQuestions: 10, Strategy: StrategyBalanced, Distribution: &Distribution{
		ByDifficulty: []Target{
			{Value: "beginner", Count: 5},
			{Value: "intermediate", Count: 3},
			{Value: "advanced", Count: 2},
		},
	}}

	for seed := int64(0); seed < 25; seed++ {
		sel, _ := Assemble(pool, cands, rand.New(rand.NewSource(seed)))
		counts := map[catalog.Difficulty]int{}
		for _, s := range sel {
			counts[s.Difficulty]++
		}
		assert.Equal(t, map[catalog.Difficulty]int{
			catalog.Beginner: 5, catalog.Intermediate: 3, catalog.Advanced: 2,
		}, counts)
	}
}

func TestBalancedImpliedEvenSplit(t *testing.T) {
	cands := bank(map[catalog.Difficulty]int{catalog.Beginner: 5, catalog.Intermediate: 5, catalog.Advanced: 5})
	sel, _ := Assemble(Pool{TotalQuestions: 7, Strategy: StrategyBalanced}, cands, rand.New(rand.NewSource(3)))

	counts := map[catalog.Difficulty]int{}
	for _, s := range sel {
		counts[s.Difficulty]++
	}
	assert.Equal(t, 3, counts[catalog.Beginner])
	assert.Equal(t, 2, counts[catalog.Intermediate])
	assert.Equal(t, 2, counts[catalog.Advanced])
}

func TestProgressiveIsNonDecreasing(t *testing.T) {
	cands := bank(map[catalog.Difficulty]int{catalog.Beginner: 3, catalog.Intermediate: 4, catalog.Advanced: 5})

	for seed := int64(0); seed < 20; seed++ {
		sel, _ := Assemble(Pool{TotalQuestions: 9, Strategy: StrategyProgressive}, cands, rand.New(rand.NewSource(seed)))
		require.Len(t, sel, 9)
		for i := 1; i < len(sel); i++ {
			assert.LessOrEqual(t, sel[i-1].Difficulty.Rank(), sel[i].Difficulty.Rank())
		}
		// easiest items win the prefix
		assert.Equal(t, catalog.Beginner, sel[0].Difficulty)
		assert.Equal(t, catalog.Advanced, sel[8].Difficulty)
	}
}

func TestProgressiveWithTargetsStillSorted(t *testing.T) {
	cands := bank(map[catalog.Difficulty]int{catalog.Beginner: 4, catalog.Intermediate: 4, catalog.Advanced: 4})
	pool := Pool{TotalQuestions: 6, Strategy: StrategyProgressive, Distribution: &Distribution{
		ByDifficulty: []Target{{Value: "advanced", Count: 3}, {Value: "beginner", Count: 3}},
	}}
	sel, _ := Assemble(pool, cands, rand.New(rand.NewSource(11)))
	require.Len(t, sel, 6)
	for i, s := range sel {
		if i < 3 {
			assert.Equal(t, catalog.Beginner, s.Difficulty)
		} else {
			assert.Equal(t, catalog.Advanced, s.Difficulty)
		}
	}
}

func TestWeightedDrawIsProportional(t *testing.T) {
	cands := []Candidate{
		{QuestionRef: catalog.QuestionRef{ID: "heavy"}, Weight: 9},
		{QuestionRef: catalog.QuestionRef{ID: "light"}, Weight: 1},
	}
	rng := rand.New(rand.NewSource(42))
	const trials = 20000
	heavy := 0
	for i := 0; i < trials; i++ {
		sel, _ := Assemble(Pool{TotalQuestions: 1, Strategy: StrategyWeighted}, cands, rng)
		if sel[0].ID == "heavy" {
			heavy++
		}
	}
	assert.InDelta(t, 0.9, float64(heavy)/trials, 0.02)
}

func TestUniformDrawIgnoresWeight(t *testing.T) {
	cands := []Candidate{
		{QuestionRef: catalog.QuestionRef{ID: "a"}, Weight: 50},
		{QuestionRef: catalog.QuestionRef{ID: "b"}, Weight: 1},
	}
	rng := rand.New(rand.NewSource(5))
	const trials = 20000
	a := 0
	for i := 0; i < trials; i++ {
		sel, _ := Assemble(Pool{TotalQuestions: 1, Strategy: StrategyRandom}, cands, rng)
		if sel[0].ID == "a" {
			a++
		}
	}
	assert.InDelta(t, 0.5, float64(a)/trials, 0.02)
}

func TestAssembleIsReproducibleForSeed(t *testing.T) {
	cands := bank(map[catalog.Difficulty]int{catalog.Beginner: 6, catalog.Intermediate: 6, catalog.Advanced: 6})
	reversed := make([]Candidate, len(cands))
	for i, c := range cands {
		reversed[len(cands)-1-i] = c
	}
	pool := Pool{TotalQuestions: 8, Strategy: StrategyWeighted}

	a, _ := Assemble(pool, cands, rand.New(rand.NewSource(99)))
	b, _ := Assemble(pool, reversed, rand.New(rand.NewSource(99)))
	assert.Equal(t, ids(a), ids(b), "input order must not matter for a fixed seed")
}

func TestEarlierCategoriesAreProtected(t *testing.T) {
	// Three advanced coding items; both targets want them.
	var cands []Candidate
	for i := 0; i < 3; i++ {
		cands = append(cands, Candidate{QuestionRef: catalog.QuestionRef{
			ID: fmt.Sprintf("c%d", i), Type: catalog.TypeCodeChallenge, Difficulty: catalog.Advanced,
		}})
	}
	pool := Pool{TotalQuestions: 6, Distribution: &Distribution{
		ByType:       []Target{{Value: string(catalog.TypeCodeChallenge), Count: 3}},
		ByDifficulty: []Target{{Value: string(catalog.Advanced), Count: 3}},
	}}
	sel, rep := Assemble(pool, cands, rand.New(rand.NewSource(1)))
	assert.Len(t, sel, 3)
	assert.Equal(t, []CategoryCount{{Category: "difficulty:advanced", Count: 3}}, rep.UnmetTargets)
	assert.Equal(t, map[string]int{"difficulty:advanced": 3}, rep.ShortfallByCategory)
}

func TestPercentTargetsTruncate(t *testing.T) {
	cands := bank(map[catalog.Difficulty]int{catalog.Beginner: 5, catalog.Intermediate: 5, catalog.Advanced: 5})
	// 50% and 50% of 3 both round to 2: four drawn, truncated to three.
	pool := Pool{TotalQuestions: 3, Distribution: &Distribution{
		ByDifficulty: []Target{{Value: "beginner", Percent: 50}, {Value: "advanced", Percent: 50}},
	}}
	sel, rep := Assemble(pool, cands, rand.New(rand.NewSource(2)))
	require.Len(t, sel, 3)
	assert.Equal(t, catalog.Beginner, sel[0].Difficulty)
	assert.Equal(t, catalog.Beginner, sel[1].Difficulty)
	assert.Equal(t, 0, rep.Shortfall())
}

func TestTimeBucketTargets(t *testing.T) {
	cands := []Candidate{
		{QuestionRef: catalog.QuestionRef{ID: "q1", EstimatedTimeSeconds: 30}},
		{QuestionRef: catalog.QuestionRef{ID: "q2", EstimatedTimeSeconds: 30}},
		{QuestionRef: catalog.QuestionRef{ID: "q3", EstimatedTimeSeconds: 600}},
		{QuestionRef: catalog.QuestionRef{ID: "q4", EstimatedTimeSeconds: 120}},
	}
	pool := Pool{TotalQuestions: 2, Distribution: &Distribution{
		ByTimeBucket: []Target{{Value: catalog.BucketExtended, Count: 1}, {Value: catalog.BucketStandard, Count: 1}},
	}}
	sel, _ := Assemble(pool, cands, rand.New(rand.NewSource(4)))
	assert.ElementsMatch(t, []string{"q3", "q4"}, ids(sel))
}

func TestAssembleIgnoresNonPositiveTotal(t *testing.T) {
	sel, rep := Assemble(Pool{TotalQuestions: 0}, bank(map[catalog.Difficulty]int{catalog.Beginner: 2}), nil)
	assert.Empty(t, sel)
	assert.Equal(t, 0, rep.Selected)
}

func TestCandidatesJoin(t *testing.T) {
	refs := []catalog.QuestionRef{
		{ID: "a", Points: 2},
		{ID: "b", Points: 2},
		{ID: "c", Points: 2},
	}
	pool := Pool{AvailableQuestions: []Available{
		{QuestionID: "a", Points: 5, Weight: 3},
		{QuestionID: "c"},
	}}
	got := Candidates(pool, refs)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, 5.0, got[0].Points)
	assert.Equal(t, 3.0, got[0].Weight)
	assert.Equal(t, 2.0, got[1].Points)
	assert.Equal(t, 1.0, got[1].Weight)

	all := Candidates(Pool{}, refs)
	assert.Len(t, all, 3)
}

func TestPoolProblems(t *testing.T) {
	assert.Empty(t, Pool{TotalQuestions: 1, Strategy: StrategyWeighted}.Problems())

	bad := Pool{
		TotalQuestions:     0,
		Strategy:           "lottery",
		AvailableQuestions: []Available{{QuestionID: "a"}, {QuestionID: "a"}},
		Distribution:       &Distribution{BySkill: []Target{{Value: "go", Percent: 120}}},
	}
	assert.Len(t, bad.Problems(), 4)
}
