package calllog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the call log tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS calls (
    session_id TEXT PRIMARY KEY,
    call_sid   TEXT NOT NULL DEFAULT '',
    caller     TEXT NOT NULL DEFAULT '',
    started_at TIMESTAMPTZ NOT NULL,
    ended_at   TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS call_turns (
    id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES calls(session_id) ON DELETE CASCADE,
    transcript TEXT NOT NULL,
    reply      TEXT NOT NULL,
    latency_ms BIGINT NOT NULL DEFAULT 0,
    at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_call_turns_session ON call_turns(session_id);
CREATE INDEX IF NOT EXISTS idx_calls_started ON calls(started_at);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given
// database connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing
// queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the call
// log tables and indexes if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("calllog: migrate: %w", err)
	}
	return nil
}

// Begin implements Store. Re-inserting the same session replaces the start
// metadata rather than failing; transports may retry the start event.
func (s *PostgresStore) Begin(ctx context.Context, rec CallRecord) error {
	const query = `
		INSERT INTO calls (session_id, call_sid, caller, started_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE SET
			call_sid = EXCLUDED.call_sid,
			caller = EXCLUDED.caller,
			started_at = EXCLUDED.started_at`
	if _, err := s.db.Exec(ctx, query, rec.SessionID, rec.CallSid, rec.Caller, rec.StartedAt); err != nil {
		return fmt.Errorf("calllog: begin %q: %w", rec.SessionID, err)
	}
	return nil
}

// AppendTurn implements Store.
func (s *PostgresStore) AppendTurn(ctx context.Context, sessionID string, turn Turn) error {
	const query = `
		INSERT INTO call_turns (session_id, transcript, reply, latency_ms, at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.db.Exec(ctx, query,
		sessionID, turn.Transcript, turn.Reply, turn.Latency.Milliseconds(), turn.At,
	); err != nil {
		return fmt.Errorf("calllog: append turn for %q: %w", sessionID, err)
	}
	return nil
}

// End implements Store. Only the first End for a session writes; repeated
// stop events leave the recorded end time untouched.
func (s *PostgresStore) End(ctx context.Context, sessionID string, endedAt time.Time) error {
	const query = `
		UPDATE calls SET ended_at = $2
		WHERE session_id = $1 AND ended_at IS NULL`
	if _, err := s.db.Exec(ctx, query, sessionID, endedAt); err != nil {
		return fmt.Errorf("calllog: end %q: %w", sessionID, err)
	}
	return nil
}
