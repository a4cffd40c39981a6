// Package sqlite stores audit events in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/toolgate/toolgate/pkg/types"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			ts_unix_ns INTEGER NOT NULL,
			session_id TEXT NOT NULL,
			call_id TEXT,
			type TEXT NOT NULL,
			tool TEXT,
			policy_decision TEXT,
			effective_decision TEXT,
			policy_rule TEXT,
			server_id TEXT,
			block_type TEXT,
			outcome TEXT,
			payload_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_session_ts ON events(session_id, ts_unix_ns);`,
		`CREATE INDEX IF NOT EXISTS idx_events_call_ts ON events(call_id, ts_unix_ns);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_ts ON events(type, ts_unix_ns);`,
		`CREATE INDEX IF NOT EXISTS idx_events_server ON events(server_id);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) AppendEvent(ctx context.Context, ev types.Event) error {
	if ev.ID == "" {
		return fmt.Errorf("event missing id")
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var policyDecision, effectiveDecision, policyRule string
	if ev.Policy != nil {
		policyDecision = string(ev.Policy.Decision)
		effectiveDecision = string(ev.Policy.EffectiveDecision)
		policyRule = ev.Policy.Rule
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events(
			event_id, ts_unix_ns, session_id, call_id, type, tool,
			policy_decision, effective_decision, policy_rule,
			server_id, block_type, outcome, payload_json
		) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?);`,
		ev.ID,
		ev.Timestamp.UTC().UnixNano(),
		ev.SessionID,
		nullable(ev.CallID),
		ev.Type,
		nullable(ev.Tool),
		nullable(policyDecision),
		nullable(effectiveDecision),
		nullable(policyRule),
		nullable(ev.ServerID),
		nullable(ev.BlockType),
		nullable(ev.Outcome),
		string(b),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *Store) QueryEvents(ctx context.Context, q types.EventQuery) ([]types.Event, error) {
	where := []string{"1=1"}
	var args []any

	if q.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, q.SessionID)
	}
	if q.CallID != "" {
		where = append(where, "call_id = ?")
		args = append(args, q.CallID)
	}
	if len(q.Types) > 0 {
		place := make([]string, 0, len(q.Types))
		for _, t := range q.Types {
			place = append(place, "?")
			args = append(args, t)
		}
		where = append(where, "type IN ("+strings.Join(place, ",")+")")
	}
	if q.Since != nil {
		where = append(where, "ts_unix_ns >= ?")
		args = append(args, q.Since.UTC().UnixNano())
	}
	if q.Until != nil {
		where = append(where, "ts_unix_ns <= ?")
		args = append(args, q.Until.UTC().UnixNano())
	}
	if q.Decision != nil {
		where = append(where, "effective_decision = ?")
		args = append(args, string(*q.Decision))
	}

	order := "DESC"
	if q.Asc {
		order = "ASC"
	}
	limit := q.Limit
	if limit <= 0 || limit > 5000 {
		limit = 200
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload_json FROM events WHERE `+strings.Join(where, " AND ")+` ORDER BY ts_unix_ns `+order+` LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []types.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev types.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query events rows: %w", err)
	}
	return out, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
