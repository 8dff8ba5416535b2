package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mind-engage/mindengage-assess/internal/apperr"
	"github.com/mind-engage/mindengage-assess/internal/grading"
)

// SQLStore relies on two unique indexes: one in-progress session per
// (user_id, test_id), and unique (user_id, test_id, attempt_number).
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const sessionColumns = `id,test_id,user_id,attempt_number,status,started_at,completed_at,last_activity_at,
	time_spent_seconds,time_limit_seconds,passing_score_percent,total_points,earned_points,percentage,passed,
	questions_json,version`

func (s *SQLStore) Create(ctx context.Context, sess Session) error {
	qj, err := json.Marshal(sess.Questions)
	if err != nil {
		return errors.Wrap(err, "marshal session questions")
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO test_sessions (`+sessionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		sess.ID, sess.TestID, sess.UserID, sess.AttemptNumber, string(sess.Status),
		sess.StartedAt.Unix(), unixOrNull(sess.CompletedAt), sess.LastActivityAt.Unix(),
		sess.TimeSpentSeconds, sess.TimeLimitSeconds, sess.PassingScorePercent,
		sess.Score.TotalPoints, sess.Score.EarnedPoints, sess.Score.Percentage, sess.Score.Passed,
		string(qj), sess.Version)
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return errors.Wrapf(err, "insert session %s", sess.ID)
	}
	// Find out which index fired.
	active, ok, aerr := s.ActiveFor(ctx, sess.UserID, sess.TestID)
	if aerr != nil {
		return aerr
	}
	if ok {
		return apperr.ActiveSessionExists(active.ID)
	}
	return apperr.Conflict(apperr.CodeStaleWrite, fmt.Sprintf("attempt %d already exists", sess.AttemptNumber))
}

func (s *SQLStore) Get(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM test_sessions WHERE id=$1`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, apperr.NotFound("session", id)
		}
		return Session{}, errors.Wrapf(err, "get session %s", id)
	}
	return sess, nil
}

func (s *SQLStore) Update(ctx context.Context, sess Session) (Session, error) {
	qj, err := json.Marshal(sess.Questions)
	if err != nil {
		return Session{}, errors.Wrap(err, "marshal session questions")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE test_sessions SET status=$1, completed_at=$2, last_activity_at=$3,
		time_spent_seconds=$4, total_points=$5, earned_points=$6, percentage=$7, passed=$8,
		questions_json=$9, version=$10
		WHERE id=$11 AND version=$12`,
		string(sess.Status), unixOrNull(sess.CompletedAt), sess.LastActivityAt.Unix(),
		sess.TimeSpentSeconds, sess.Score.TotalPoints, sess.Score.EarnedPoints, sess.Score.Percentage,
		sess.Score.Passed, string(qj), sess.Version+1, sess.ID, sess.Version)
	if err != nil {
		return Session{}, errors.Wrapf(err, "update session %s", sess.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Session{}, errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		if _, err := s.Get(ctx, sess.ID); err != nil {
			return Session{}, err
		}
		return Session{}, apperr.Conflict(apperr.CodeStaleWrite, "session was modified concurrently")
	}
	sess.Version++
	return sess, nil
}

func (s *SQLStore) ActiveFor(ctx context.Context, userID, testID string) (Session, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM test_sessions
		WHERE user_id=$1 AND test_id=$2 AND status='in_progress'`, userID, testID)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, false, nil
		}
		return Session{}, false, errors.Wrap(err, "find active session")
	}
	return sess, true, nil
}

func (s *SQLStore) LastAttempt(ctx context.Context, userID, testID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(attempt_number),0) FROM test_sessions
		WHERE user_id=$1 AND test_id=$2`, userID, testID).Scan(&n)
	return n, errors.Wrap(err, "last attempt")
}

func (s *SQLStore) CountAttempts(ctx context.Context, testID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM test_sessions WHERE test_id=$1`, testID).Scan(&n)
	return n, errors.Wrap(err, "count attempts")
}

func (s *SQLStore) ListInProgress(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM test_sessions
		WHERE status='in_progress' ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list in-progress sessions")
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan session")
		}
		out = append(out, sess)
	}
	return out, errors.Wrap(rows.Err(), "iterate sessions")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (Session, error) {
	var (
		sess              Session
		status, qjson     string
		started, activity int64
		completed         sql.NullInt64
		total, earned     float64
		percentage        int
		passed            bool
	)
	if err := sc.Scan(&sess.ID, &sess.TestID, &sess.UserID, &sess.AttemptNumber, &status,
		&started, &completed, &activity, &sess.TimeSpentSeconds, &sess.TimeLimitSeconds,
		&sess.PassingScorePercent, &total, &earned, &percentage, &passed, &qjson, &sess.Version); err != nil {
		return Session{}, err
	}
	sess.Status = Status(status)
	sess.StartedAt = time.Unix(started, 0).UTC()
	sess.LastActivityAt = time.Unix(activity, 0).UTC()
	if completed.Valid {
		t := time.Unix(completed.Int64, 0).UTC()
		sess.CompletedAt = &t
	}
	sess.Score = grading.Score{TotalPoints: total, EarnedPoints: earned, Percentage: percentage, Passed: passed}
	if err := json.Unmarshal([]byte(qjson), &sess.Questions); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func unixOrNull(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

// isUniqueViolation recognizes unique-constraint failures from both drivers.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
