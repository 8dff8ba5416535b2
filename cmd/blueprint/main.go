// Command blueprint works with test blueprints offline.
//
//	blueprint check  -bank bank.yaml [-seed 42] test.yaml
//	blueprint import -driver sqlite -dsn file:assess.db bank.yaml
//
// check validates a blueprint against a question bank and prints a JSON
// report with a sample draw; import loads a question bank into the
// database the gateway serves from.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mind-engage/mindengage-assess/internal/catalog"
	"github.com/mind-engage/mindengage-assess/internal/db"
	"github.com/mind-engage/mindengage-assess/internal/testdef"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		log.Fatal("usage: blueprint check|import [flags] file")
	}
	ctx := context.Background()
	var err error
	switch os.Args[1] {
	case "check":
		err = runCheck(ctx, os.Args[2:], os.Stdout)
	case "import":
		err = runImport(ctx, os.Args[2:])
	default:
		err = fmt.Errorf("unknown command %q", os.Args[1])
	}
	if err != nil {
		log.Fatal(err)
	}
}

func runCheck(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	bankPath := fs.String("bank", "bank.yaml", "question bank YAML")
	seed := fs.Int64("seed", 1, "seed for the sample draw")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("check needs exactly one blueprint file")
	}
	bank, err := loadBank(*bankPath)
	if err != nil {
		return err
	}
	t, err := loadBlueprint(fs.Arg(0))
	if err != nil {
		return err
	}
	rep, err := check(ctx, t, catalog.NewInMemory(bank...), *seed)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func runImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	driver := fs.String("driver", "sqlite", "sqlite|postgres")
	dsn := fs.String("dsn", "", "database DSN (driver default when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("import needs exactly one bank file")
	}
	bank, err := loadBank(fs.Arg(0))
	if err != nil {
		return err
	}
	conn, err := db.Open(ctx, db.Driver(*driver), *dsn)
	if err != nil {
		return err
	}
	defer conn.Close()
	n, err := importBank(ctx, catalog.NewSQLCatalog(conn), bank)
	log.Printf("imported %d question(s)", n)
	return err
}

type upserter interface {
	Upsert(ctx context.Context, q catalog.QuestionRef) error
}

func importBank(ctx context.Context, c upserter, bank []catalog.QuestionRef) (int, error) {
	for i, q := range bank {
		if err := c.Upsert(ctx, q); err != nil {
			return i, err
		}
	}
	return len(bank), nil
}

type drawnBlock struct {
	SectionID     string   `json:"section_id,omitempty"`
	QuestionIDs   []string `json:"question_ids"`
	Points        float64  `json:"points"`
	EstimatedMins float64  `json:"estimated_minutes"`
	TimeLimitMins int      `json:"time_limit_minutes,omitempty"`
	PoolShortfall int      `json:"pool_shortfall,omitempty"`
	MissingIDs    []string `json:"missing_ids,omitempty"`
	RejectedIDs   []string `json:"rejected_ids,omitempty"`
}

type report struct {
	TestID     string                   `json:"test_id,omitempty"`
	Title      string                   `json:"title"`
	Validation testdef.ValidationResult `json:"validation"`
	Sample     []drawnBlock             `json:"sample"`
}

// check runs the publish checks and one seeded draw.
func check(ctx context.Context, t testdef.TestDefinition, c catalog.Catalog, seed int64) (report, error) {
	resolver := testdef.NewResolver(c)
	svc := testdef.NewService(testdef.NewInMemoryStore(), resolver, nil,
		testdef.WithRand(func() *rand.Rand { return rand.New(rand.NewSource(seed)) }))
	res, err := svc.Check(ctx, t)
	if err != nil {
		return report{}, err
	}
	blocks, err := resolver.Resolve(ctx, t, rand.New(rand.NewSource(seed)))
	if err != nil {
		return report{}, err
	}
	rep := report{TestID: t.ID, Title: t.Title, Validation: res}
	for _, b := range blocks {
		d := drawnBlock{
			SectionID:     b.SectionID,
			QuestionIDs:   make([]string, 0, len(b.Items)),
			EstimatedMins: float64(testdef.EstimatedSeconds(b.Items)) / 60,
			TimeLimitMins: b.TimeLimitMinutes,
			MissingIDs:    b.Missing,
			RejectedIDs:   b.Rejected,
		}
		for _, it := range b.Items {
			d.QuestionIDs = append(d.QuestionIDs, it.ID)
			d.Points += it.Points
		}
		if b.Report != nil {
			d.PoolShortfall = b.Report.Shortfall()
		}
		rep.Sample = append(rep.Sample, d)
	}
	return rep, nil
}

func loadBank(path string) ([]catalog.QuestionRef, error) {
	var doc struct {
		Questions []catalog.QuestionRef `yaml:"questions"`
	}
	if err := readYAML(path, &doc); err != nil {
		return nil, err
	}
	for i := range doc.Questions {
		if doc.Questions[i].Status == "" {
			doc.Questions[i].Status = catalog.StatusActive
		}
	}
	return doc.Questions, nil
}

func loadBlueprint(path string) (testdef.TestDefinition, error) {
	var t testdef.TestDefinition
	if err := readYAML(path, &t); err != nil {
		return t, err
	}
	return t, nil
}

func readYAML(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	return nil
}
