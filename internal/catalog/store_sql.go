package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-assess/internal/apperr"
)

type SQLCatalog struct {
	db *sql.DB
}

func NewSQLCatalog(db *sql.DB) *SQLCatalog {
	return &SQLCatalog{db: db}
}

// Upsert writes a question record; authoring lives outside this service but
// seeding and tests need a way in.
func (s *SQLCatalog) Upsert(ctx context.Context, q QuestionRef) error {
	key, err := json.Marshal(q.AnswerKey)
	if err != nil {
		return errors.Wrapf(err, "marshal answer key %s", q.ID)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO questions
		(id,type,skill,difficulty,points,estimated_time_seconds,status,option_count,answer_key_json)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET type=EXCLUDED.type, skill=EXCLUDED.skill,
			difficulty=EXCLUDED.difficulty, points=EXCLUDED.points,
			estimated_time_seconds=EXCLUDED.estimated_time_seconds, status=EXCLUDED.status,
			option_count=EXCLUDED.option_count, answer_key_json=EXCLUDED.answer_key_json`,
		q.ID, string(q.Type), q.Skill, string(q.Difficulty), q.Points, q.EstimatedTimeSeconds,
		q.Status, q.OptionCount, string(key))
	return errors.Wrapf(err, "upsert question %s", q.ID)
}

const questionColumns = `id,type,skill,difficulty,points,estimated_time_seconds,status,option_count,answer_key_json`

func (s *SQLCatalog) Get(ctx context.Context, id string) (QuestionRef, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id=$1`, id)
	q, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return QuestionRef{}, apperr.NotFound("question", id)
		}
		return QuestionRef{}, errors.Wrapf(err, "get question %s", id)
	}
	return q, nil
}

// Query is a single statement, so one call sees one snapshot.
func (s *SQLCatalog) Query(ctx context.Context, f Filter) ([]QuestionRef, error) {
	where, args := buildWhere(f)
	query := `SELECT ` + questionColumns + ` FROM questions` + where + ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query questions")
	}
	defer rows.Close()

	var out []QuestionRef
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan question")
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate questions")
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuestion(sc scanner) (QuestionRef, error) {
	var (
		q          QuestionRef
		typ, diff  string
		answerJSON string
	)
	if err := sc.Scan(&q.ID, &typ, &q.Skill, &diff, &q.Points, &q.EstimatedTimeSeconds,
		&q.Status, &q.OptionCount, &answerJSON); err != nil {
		return QuestionRef{}, err
	}
	q.Type = QuestionType(typ)
	q.Difficulty = Difficulty(diff)
	if answerJSON != "" {
		if err := json.Unmarshal([]byte(answerJSON), &q.AnswerKey); err != nil {
			return QuestionRef{}, err
		}
	}
	return q, nil
}

// buildWhere numbers placeholders in order of appearance; sqlite binds $N by
// first occurrence.
func buildWhere(f Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	in := func(col string, vals []string) {
		if len(vals) == 0 {
			return
		}
		ph := make([]string, len(vals))
		for i, v := range vals {
			args = append(args, v)
			ph[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, col+" IN ("+strings.Join(ph, ",")+")")
	}
	if f.Status != "" {
		in("status", []string{f.Status})
	}
	in("id", f.IDs)
	in("type", toStrings(f.Types))
	in("skill", f.Skills)
	in("difficulty", toStrings(f.Difficulty))
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func toStrings[T ~string](xs []T) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = string(x)
	}
	return out
}
