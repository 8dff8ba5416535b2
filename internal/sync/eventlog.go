// Package syncx is the append-only event log that records session
// transitions for audit and downstream consumers.
package syncx

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type Event struct {
	Seq       int64
	SiteID    string
	Type      string
	Key       string // natural key, e.g. session id
	DataJSON  string
	CreatedAt int64
}

// Log is what producers need.
type Log interface {
	Append(ctx context.Context, e Event) error
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.SiteID == "" {
		e.SiteID = "local"
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, e.CreatedAt)
	return errors.Wrapf(err, "append %s event", e.Type)
}

// ByKey returns the events for one key in append order.
func (r *EventRepo) ByKey(ctx context.Context, key string) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log WHERE key=$1 ORDER BY seq`, key)
	if err != nil {
		return nil, errors.Wrap(err, "query events")
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "iterate events")
}

// MemoryLog keeps events in process; used when no database is configured
// and in tests.
type MemoryLog struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemoryLog) Append(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Seq = int64(len(m.events) + 1)
	if e.SiteID == "" {
		e.SiteID = "local"
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	m.events = append(m.events, e)
	return nil
}

func (m *MemoryLog) ByKey(_ context.Context, key string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.Key == key {
			out = append(out, e)
		}
	}
	return out, nil
}

// Types returns the event types recorded for key, in order.
func (m *MemoryLog) Types(key string) []string {
	evs, _ := m.ByKey(context.Background(), key)
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Type
	}
	return out
}
