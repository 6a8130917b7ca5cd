package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	chatotel "github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/otel"
)

var tracer = chatotel.Tracer("github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/audit")

// Sink receives audit events. Implementations must tolerate being called
// from a single background worker goroutine.
type Sink interface {
	Record(ctx context.Context, ev *Event) error
}

// Store persists audit events in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the audit database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		turn_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		decision TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		event_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_events(session_id);
	CREATE INDEX IF NOT EXISTS idx_audit_turn ON audit_events(turn_id);
	CREATE INDEX IF NOT EXISTS idx_audit_stage ON audit_events(stage);
	CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp);
	`

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record implements Sink.
func (s *Store) Record(ctx context.Context, ev *Event) error {
	ctx, span := tracer.Start(ctx, "audit.record",
		trace.WithAttributes(
			attribute.String("audit.event_id", ev.ID),
			attribute.String("audit.stage", string(ev.Stage)),
		))
	defer span.End()

	eventJSON, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}

	query := `INSERT INTO audit_events (id, turn_id, session_id, stage, decision, timestamp, event_json)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		ev.ID, ev.TurnID, ev.SessionID, string(ev.Stage), ev.Decision, ev.Timestamp, string(eventJSON),
	)
	if err != nil {
		return fmt.Errorf("storing audit event: %w", err)
	}

	return nil
}

// List returns events matching the filters, newest first.
func (s *Store) List(ctx context.Context, sessionID string, stage Stage, from, to time.Time, limit int) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "audit.list",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	query := `SELECT event_json FROM audit_events WHERE 1=1`
	args := []interface{}{}

	if sessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}
	if stage != "" {
		query += ` AND stage = ?`
		args = append(args, string(stage))
	}
	if !from.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, from)
	}
	if !to.IsZero() {
		query += ` AND timestamp <= ?`
		args = append(args, to)
	}

	query += ` ORDER BY timestamp DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var results []Event
	for rows.Next() {
		var eventJSON string
		if err := rows.Scan(&eventJSON); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		var ev Event
		if err := json.Unmarshal([]byte(eventJSON), &ev); err != nil {
			return nil, fmt.Errorf("unmarshaling audit event: %w", err)
		}
		results = append(results, ev)
	}
	return results, rows.Err()
}

// ByTurn returns all events for one turn in insertion order, so a turn's
// decision sequence reads top to bottom.
func (s *Store) ByTurn(ctx context.Context, turnID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_json FROM audit_events WHERE turn_id = ? ORDER BY timestamp ASC, rowid ASC`, turnID)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var results []Event
	for rows.Next() {
		var eventJSON string
		if err := rows.Scan(&eventJSON); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		var ev Event
		if err := json.Unmarshal([]byte(eventJSON), &ev); err != nil {
			return nil, fmt.Errorf("unmarshaling audit event: %w", err)
		}
		results = append(results, ev)
	}
	return results, rows.Err()
}
