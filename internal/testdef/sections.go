package testdef

import (
	"fmt"
	"sort"

	"github.com/mind-engage/mindengage-assess/internal/assembly"
)

const (
	// A section whose estimate exceeds its limit by this factor gets a warning.
	timeOverrunFactor = 2
	// Sum of section limits above this gets a warning.
	maxTotalMinutes = 240
)

type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	// Reports holds the assembly preview per pool-backed section.
	Reports map[string]assembly.Report `json:"reports,omitempty"`
}

// ValidateSections checks a sectioned test against its resolved blocks.
// Errors block publishing; warnings never do. Tests without sections pass
// unchecked.
func ValidateSections(t TestDefinition, blocks []Block) ValidationResult {
	res := ValidationResult{Errors: []string{}, Warnings: []string{}}
	if !t.Settings.UseSections {
		res.Valid = true
		return res
	}

	byOrder := map[int][]string{}
	for _, s := range t.Sections {
		byOrder[s.Order] = append(byOrder[s.Order], s.ID)
	}
	orders := make([]int, 0, len(byOrder))
	for o := range byOrder {
		orders = append(orders, o)
	}
	sort.Ints(orders)
	for _, o := range orders {
		if ids := byOrder[o]; len(ids) > 1 {
			res.Errors = append(res.Errors, fmt.Sprintf("sections %v share order %d", ids, o))
		}
	}

	totalMinutes := 0
	for _, b := range blocks {
		totalMinutes += b.TimeLimitMinutes
		name := b.SectionID

		for _, id := range b.Missing {
			res.Errors = append(res.Errors, fmt.Sprintf("section %s: question %q is missing or inactive", name, id))
		}
		for _, id := range b.Rejected {
			res.Errors = append(res.Errors, fmt.Sprintf("section %s: question %q is not allowed in a %s section", name, id, b.SectionType))
		}
		if len(b.Items) == 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("section %s: resolves to no questions", name))
		}
		if b.Report != nil {
			if res.Reports == nil {
				res.Reports = map[string]assembly.Report{}
			}
			res.Reports[name] = *b.Report
			if n := b.Report.Shortfall(); n > 0 && b.Report.Selected > 0 {
				res.Warnings = append(res.Warnings, fmt.Sprintf("section %s: pool is short by %d question(s)", name, n))
			}
		}

		if est := EstimatedSeconds(b.Items); b.TimeLimitMinutes > 0 && est > timeOverrunFactor*b.TimeLimitMinutes*60 {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"section %s: estimated %d min against a %d min limit, may need more time",
				name, (est+59)/60, b.TimeLimitMinutes))
		}
	}
	if totalMinutes > maxTotalMinutes {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"sections total %d min, consider splitting into multiple tests", totalMinutes))
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// EstimatedSeconds sums the per-type suggested time of items.
func EstimatedSeconds(items []assembly.Selected) int {
	n := 0
	for _, it := range items {
		n += it.Type.SuggestedSeconds()
	}
	return n
}
