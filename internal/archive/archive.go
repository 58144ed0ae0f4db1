// Package archive persists completed conversation turns to PostgreSQL.
//
// The archive is write-mostly: the session controller appends each turn as it
// happens, and the History and SearchContent queries exist for after-the-fact
// inspection of past dialogues. Writes are best-effort by contract; a failing
// archive degrades to logging, never to a broken dialogue.
//
// All operations share a single [pgxpool.Pool] and are safe for concurrent
// use. [Migrate] installs the schema idempotently and runs on every startup.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/auriclehq/auricle/internal/session"
	"github.com/auriclehq/auricle/pkg/types"
)

// ErrPersistence is the root cause wrapped by every archive read or write
// failure. Callers match it with errors.Is and treat it as non-fatal.
var ErrPersistence = errors.New("archive: persistence failure")

// Compile-time check: the store feeds the session controller's turn sink.
var _ session.TurnSink = (*Store)(nil)

// Entry is one archived conversation turn as returned by SearchContent.
type Entry struct {
	// SessionID identifies the dialogue the turn belongs to.
	SessionID uuid.UUID

	// Seq is the zero-based position of the turn within its dialogue.
	Seq int

	// Role is "user" or "assistant".
	Role string

	// Content is the turn text.
	Content string

	// CreatedAt is when the turn was archived.
	CreatedAt time.Time
}

// Store is the PostgreSQL-backed conversation archive.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database at dsn, verifies the connection, and runs
// [Migrate] so the schema is in place before the first write.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("archive: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool}, nil
}

// WriteTurn appends one turn of a dialogue. (sessionID, seq) is unique, so a
// retried write of the same turn fails rather than duplicating it.
func (s *Store) WriteTurn(ctx context.Context, sessionID uuid.UUID, seq int, turn types.Turn) error {
	const q = `
		INSERT INTO conversation_turns (session_id, seq, role, content)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.pool.Exec(ctx, q, sessionID, seq, turn.Role, turn.Content); err != nil {
		return fmt.Errorf("archive: write turn: %w: %w", ErrPersistence, err)
	}
	return nil
}

// History returns every archived turn of one dialogue in sequence order.
func (s *Store) History(ctx context.Context, sessionID uuid.UUID) ([]types.Turn, error) {
	const q = `
		SELECT role, content
		FROM   conversation_turns
		WHERE  session_id = $1
		ORDER  BY seq`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("archive: history: %w: %w", ErrPersistence, err)
	}
	turns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Turn, error) {
		var t types.Turn
		err := row.Scan(&t.Role, &t.Content)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("archive: scan history: %w: %w", ErrPersistence, err)
	}
	if turns == nil {
		turns = []types.Turn{}
	}
	return turns, nil
}

// SearchContent performs a full-text search over turn content across all
// dialogues, newest first. The query goes through plainto_tsquery so no
// operator syntax is required. limit <= 0 means no limit.
//
// The index uses the 'simple' text search configuration: transcripts mix
// Chinese and English, and language-specific stemming would mangle both.
func (s *Store) SearchContent(ctx context.Context, query string, limit int) ([]Entry, error) {
	q := `
		SELECT session_id, seq, role, content, created_at
		FROM   conversation_turns
		WHERE  to_tsvector('simple', content) @@ plainto_tsquery('simple', $1)
		ORDER  BY created_at DESC, seq DESC`

	args := []any{query}
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: search: %w: %w", ErrPersistence, err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.SessionID, &e.Seq, &e.Role, &e.Content, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("archive: scan search: %w: %w", ErrPersistence, err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Ping verifies database connectivity, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("archive: ping: %w", err)
	}
	return nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
