package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schema creates the tables on first start. Kept minimal on purpose; a real
// migration tool takes over once the schema stops being two tables.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         UUID PRIMARY KEY,
	title      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS messages (
	id         BIGSERIAL PRIMARY KEY,
	session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	text       TEXT NOT NULL,
	is_user    BOOLEAN NOT NULL,
	timestamp  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS messages_session_idx ON messages (session_id, timestamp);
`

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects to the database, applies the schema, and returns the
// store. The pool is sized modestly; the gateway's write rate is one row per
// finished utterance.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	cfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// CreateSession implements Store.
func (p *Postgres) CreateSession(ctx context.Context) (*Session, error) {
	s := &Session{ID: uuid.NewString(), Title: DefaultTitle}
	err := p.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, title) VALUES ($1, $2) RETURNING created_at, updated_at`,
		s.ID, s.Title,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: create session: %w", err)
	}
	return s, nil
}

// EnsureSession implements Store.
func (p *Postgres) EnsureSession(ctx context.Context, id string) (*Session, error) {
	s := &Session{ID: id}
	err := p.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, title) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET updated_at = now()
		 RETURNING title, created_at, updated_at`,
		id, DefaultTitle,
	).Scan(&s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: ensure session: %w", err)
	}
	return s, nil
}

// ListSessions implements Store.
func (p *Postgres) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT s.id, s.title, s.created_at, s.updated_at, count(m.id)
		 FROM sessions s
		 LEFT JOIN messages m ON m.session_id = s.id
		 GROUP BY s.id
		 ORDER BY s.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.CreatedAt, &s.UpdatedAt, &s.MessageCount); err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Messages implements Store.
func (p *Postgres) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	var exists bool
	if err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, sessionID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("store: check session: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := p.pool.Query(ctx,
		`SELECT text, is_user, timestamp FROM messages
		 WHERE session_id = $1 ORDER BY timestamp ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Text, &m.IsUser, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddMessage implements Store.
func (p *Postgres) AddMessage(ctx context.Context, sessionID, text string, isUser bool) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO messages (session_id, text, is_user) VALUES ($1, $2, $3)`,
		sessionID, text, isUser,
	); err != nil {
		return fmt.Errorf("store: add message: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE sessions SET updated_at = now() WHERE id = $1`, sessionID,
	); err != nil {
		return fmt.Errorf("store: touch session: %w", err)
	}
	return tx.Commit(ctx)
}

// MessageCount implements Store.
func (p *Postgres) MessageCount(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx,
		`SELECT count(*) FROM messages WHERE session_id = $1`, sessionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count messages: %w", err)
	}
	return n, nil
}

// SetTitle implements Store.
func (p *Postgres) SetTitle(ctx context.Context, sessionID, title string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE sessions SET title = $1 WHERE id = $2`, title, sessionID)
	if err != nil {
		return fmt.Errorf("store: set title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSession implements Store.
func (p *Postgres) DeleteSession(ctx context.Context, sessionID string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("store: delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
