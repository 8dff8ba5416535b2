package testdef

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-assess/internal/apperr"
)

// SQLStore keeps the definition as a JSON document next to the columns
// used for listing.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Put(ctx context.Context, t TestDefinition) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "marshal test definition")
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO test_definitions (id,title,status,definition_json,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, status=EXCLUDED.status,
			definition_json=EXCLUDED.definition_json, updated_at=EXCLUDED.updated_at`,
		t.ID, t.Title, string(t.Status), string(doc), t.CreatedAt.Unix(), t.UpdatedAt.Unix())
	return errors.Wrapf(err, "put test %s", t.ID)
}

func (s *SQLStore) Get(ctx context.Context, id string) (TestDefinition, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT definition_json FROM test_definitions WHERE id=$1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TestDefinition{}, apperr.NotFound("test", id)
		}
		return TestDefinition{}, errors.Wrapf(err, "get test %s", id)
	}
	var t TestDefinition
	if err := json.Unmarshal([]byte(doc), &t); err != nil {
		return TestDefinition{}, errors.Wrapf(err, "decode test %s", id)
	}
	return t, nil
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]Summary, error) {
	q := `SELECT id,title,status,updated_at FROM test_definitions`
	var args []any
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		q += ` WHERE status=$1`
	}
	q += ` ORDER BY updated_at DESC, id ASC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
		if opts.Offset > 0 {
			args = append(args, opts.Offset)
			q += fmt.Sprintf(` OFFSET $%d`, len(args))
		}
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list tests")
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			sum     Summary
			status  string
			updated int64
		)
		if err := rows.Scan(&sum.ID, &sum.Title, &status, &updated); err != nil {
			return nil, errors.Wrap(err, "scan test")
		}
		sum.Status = Status(status)
		sum.UpdatedAt = time.Unix(updated, 0).UTC()
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate tests")
	}
	if opts.Limit <= 0 {
		out = page(out, 0, opts.Offset)
	}
	return out, nil
}
