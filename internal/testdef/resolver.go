package testdef

import (
	"context"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/mindengage-assess/internal/assembly"
	"github.com/mind-engage/mindengage-assess/internal/catalog"
)

// Block is one resolved unit of a test: a section, or the whole test when
// sections are not used (SectionID empty).
type Block struct {
	SectionID        string
	Order            int
	SectionType      catalog.SectionType
	TimeLimitMinutes int
	// Items are in delivery order with resolved points.
	Items []assembly.Selected
	// Report is set for pool-backed blocks.
	Report *assembly.Report
	// Missing lists static ids absent from the catalog or not active.
	Missing []string
	// Rejected lists static ids whose type the section does not admit.
	Rejected []string
	Static   bool
}

// Resolver materializes question lists through the catalog and the
// assembly engine. It keeps no state between calls.
type Resolver struct {
	Catalog catalog.Catalog
}

func NewResolver(c catalog.Catalog) *Resolver {
	return &Resolver{Catalog: c}
}

// Resolve materializes every block of t. Blocks resolve in parallel, each
// with its own source seeded from rng in block order, so a fixed seed
// reproduces the whole result.
func (r *Resolver) Resolve(ctx context.Context, t TestDefinition, rng *rand.Rand) ([]Block, error) {
	if rng == nil {
		rng = assembly.NewRand()
	}
	specs := blocksOf(t)
	seeds := make([]int64, len(specs))
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	out := make([]Block, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	for i := range specs {
		g.Go(func() error {
			b, err := r.resolveBlock(gctx, specs[i], rand.New(rand.NewSource(seeds[i])))
			if err != nil {
				return err
			}
			out[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type blockSpec struct {
	sectionID   string
	order       int
	sectionType catalog.SectionType
	minutes     int
	entries     []QuestionEntry
	pool        *assembly.Pool
}

func blocksOf(t TestDefinition) []blockSpec {
	if !t.Settings.UseSections {
		return []blockSpec{{
			sectionType: catalog.SectionMixed,
			minutes:     t.Settings.TimeLimitMinutes,
			entries:     t.Questions,
			pool:        t.QuestionPool,
		}}
	}
	out := make([]blockSpec, len(t.Sections))
	for i, s := range t.Sections {
		out[i] = blockSpec{
			sectionID:   s.ID,
			order:       s.Order,
			sectionType: s.SectionType,
			minutes:     s.TimeLimitMinutes,
			entries:     s.Questions,
			pool:        s.Pool,
		}
	}
	return out
}

func (r *Resolver) resolveBlock(ctx context.Context, bs blockSpec, rng *rand.Rand) (Block, error) {
	b := Block{
		SectionID:        bs.sectionID,
		Order:            bs.order,
		SectionType:      bs.sectionType,
		TimeLimitMinutes: bs.minutes,
	}
	if bs.pool == nil {
		b.Static = true
		return r.resolveStatic(ctx, b, bs.entries)
	}

	f := catalog.Filter{Status: catalog.StatusActive, Types: bs.sectionType.AllowedTypes()}
	for _, a := range bs.pool.AvailableQuestions {
		f.IDs = append(f.IDs, a.QuestionID)
	}
	refs, err := r.Catalog.Query(ctx, f)
	if err != nil {
		return Block{}, errors.Wrapf(err, "query candidates for section %q", bs.sectionID)
	}
	items, rep := assembly.Assemble(*bs.pool, assembly.Candidates(*bs.pool, refs), rng)
	b.Items = items
	b.Report = &rep
	return b, nil
}

func (r *Resolver) resolveStatic(ctx context.Context, b Block, entries []QuestionEntry) (Block, error) {
	if len(entries) == 0 {
		return b, nil
	}
	ordered := append([]QuestionEntry(nil), entries...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Order != ordered[j].Order {
			return ordered[i].Order < ordered[j].Order
		}
		return ordered[i].QuestionID < ordered[j].QuestionID
	})

	ids := make([]string, len(ordered))
	for i, e := range ordered {
		ids[i] = e.QuestionID
	}
	refs, err := r.Catalog.Query(ctx, catalog.Filter{Status: catalog.StatusActive, IDs: ids})
	if err != nil {
		return Block{}, errors.Wrapf(err, "query questions for section %q", b.SectionID)
	}
	byID := make(map[string]catalog.QuestionRef, len(refs))
	for _, q := range refs {
		byID[q.ID] = q
	}

	for _, e := range ordered {
		q, ok := byID[e.QuestionID]
		switch {
		case !ok:
			b.Missing = append(b.Missing, e.QuestionID)
			continue
		case !b.SectionType.Admits(q.Type):
			b.Rejected = append(b.Rejected, e.QuestionID)
			continue
		}
		if e.Points > 0 {
			q.Points = e.Points
		}
		b.Items = append(b.Items, assembly.Selected{QuestionRef: q, Order: len(b.Items) + 1})
	}
	return b, nil
}
