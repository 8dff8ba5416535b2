package grading

import "math"

type Score struct {
	TotalPoints  float64 `json:"total_points"`
	EarnedPoints float64 `json:"earned_points"`
	Percentage   int     `json:"percentage"`
	Passed       bool    `json:"passed"`
}

// Scorable is anything that contributes possible and awarded points.
type Scorable interface {
	MaxPoints() float64
	AwardedPoints() float64
}

// Finalize derives the aggregate score. Every item counts toward the total,
// answered or not. It is pure: equal input gives an equal Score.
func Finalize[T Scorable](items []T, passingPercent int) Score {
	var s Score
	for _, it := range items {
		s.TotalPoints += it.MaxPoints()
		s.EarnedPoints += it.AwardedPoints()
	}
	if s.TotalPoints > 0 {
		s.Percentage = int(math.Round(100 * s.EarnedPoints / s.TotalPoints))
	}
	s.Passed = s.Percentage >= passingPercent
	return s
}
