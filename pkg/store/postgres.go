package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/medabroad/consult/pkg/core/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres is a Store backed by PostgreSQL. Sessions are rows with jsonb
// message arrays; the idempotent append is a single upsert statement.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, applies pending migrations, and returns the store.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if err := migrate(dsn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

const appendSQL = `
INSERT INTO chat_sessions (thread_id, owner_email, title, kind, state, messages)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (thread_id, owner_email) DO UPDATE SET
    updated_at = now(),
    title = EXCLUDED.title,
    kind = EXCLUDED.kind,
    state = COALESCE(EXCLUDED.state, chat_sessions.state),
    messages = chat_sessions.messages || (
        SELECT COALESCE(jsonb_agg(t.elem ORDER BY t.ord), '[]'::jsonb)
        FROM jsonb_array_elements(EXCLUDED.messages) WITH ORDINALITY AS t(elem, ord)
        WHERE NOT EXISTS (
            SELECT 1
            FROM jsonb_array_elements(chat_sessions.messages) AS existing(elem)
            WHERE existing.elem->>'id' = t.elem->>'id'))`

func (p *Postgres) AppendMessages(ctx context.Context, params AppendParams) error {
	messages, err := json.Marshal(params.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	var state []byte
	if params.State != nil {
		state, err = json.Marshal(params.State)
		if err != nil {
			return fmt.Errorf("marshal state: %w", err)
		}
	}
	_, err = p.pool.Exec(ctx, appendSQL,
		params.ThreadID, params.OwnerEmail, params.Title, params.Kind, state, messages)
	if err != nil {
		return fmt.Errorf("append messages: %w", err)
	}
	return nil
}

func (p *Postgres) GetSession(ctx context.Context, threadID, ownerEmail string) (*Session, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT thread_id, owner_email, title, kind, hidden, messages, summaries, state,
		       created_at, updated_at
		FROM chat_sessions
		WHERE thread_id = $1 AND owner_email = $2`, threadID, ownerEmail)

	var (
		sess           Session
		messages, sums []byte
		state          []byte
	)
	err := row.Scan(&sess.ThreadID, &sess.OwnerEmail, &sess.Title, &sess.Kind, &sess.Hidden,
		&messages, &sums, &state, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if err := json.Unmarshal(messages, &sess.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	if err := json.Unmarshal(sums, &sess.Summaries); err != nil {
		return nil, fmt.Errorf("decode summaries: %w", err)
	}
	if len(state) > 0 {
		sess.State = &types.ChatState{}
		if err := json.Unmarshal(state, sess.State); err != nil {
			return nil, fmt.Errorf("decode state: %w", err)
		}
	}
	return &sess, nil
}

func (p *Postgres) ListSessions(ctx context.Context, ownerEmail string, opts ListOptions) ([]SessionSummary, error) {
	q := `
		SELECT thread_id, title, kind, hidden, jsonb_array_length(messages),
		       created_at, updated_at
		FROM chat_sessions
		WHERE owner_email = $1`
	if !opts.IncludeHidden {
		q += ` AND NOT hidden`
	}
	q += ` ORDER BY updated_at DESC`
	args := []any{ownerEmail}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(&s.ThreadID, &s.Title, &s.Kind, &s.Hidden,
			&s.MessageCount, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) HideSession(ctx context.Context, threadID, ownerEmail string) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE chat_sessions SET hidden = TRUE, updated_at = now()
		WHERE thread_id = $1 AND owner_email = $2`, threadID, ownerEmail)
	if err != nil {
		return fmt.Errorf("hide session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) AppendSummary(ctx context.Context, threadID, ownerEmail string, s types.Summary) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	tag, err := p.pool.Exec(ctx, `
		UPDATE chat_sessions
		SET summaries = summaries || jsonb_build_array($3::jsonb), updated_at = now()
		WHERE thread_id = $1 AND owner_email = $2`, threadID, ownerEmail, payload)
	if err != nil {
		return fmt.Errorf("append summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close(context.Context) error {
	p.pool.Close()
	return nil
}
