package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"aiplatform/pkg/platform/sentinel"
)

// DB is the subset of pgxpool.Pool the backend needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const sessionSchema = `
	CREATE TABLE IF NOT EXISTS client_sessions (
		namespace  TEXT        NOT NULL,
		key        TEXT        NOT NULL,
		value      TEXT        NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (namespace, key)
	)
`

// PostgresBackend stores token and user as two rows of one namespace,
// written in a single transaction. Useful when the client runs inside a
// server process that should survive restarts.
type PostgresBackend struct {
	db        DB
	namespace string
}

func NewPostgresBackend(db DB, namespace string) *PostgresBackend {
	if namespace == "" {
		namespace = "default"
	}
	return &PostgresBackend{db: db, namespace: namespace}
}

// EnsureSchema creates the sessions table if missing.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	if _, err := b.db.Exec(ctx, sessionSchema); err != nil {
		return fmt.Errorf("create session schema: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Load(ctx context.Context) (Session, error) {
	rows, err := b.db.Query(ctx,
		`SELECT key, value FROM client_sessions WHERE namespace = $1 AND key IN ('token', 'user')`,
		b.namespace,
	)
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string, 2)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Session{}, fmt.Errorf("scan session row: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return Session{}, fmt.Errorf("iterate session rows: %w", err)
	}

	token, hasToken := values["token"]
	rawUser, hasUser := values["user"]
	if !hasToken && !hasUser {
		return Session{}, sentinel.ErrNotFound
	}
	if !hasToken || !hasUser {
		return Session{}, fmt.Errorf("partial session in postgres: %w", sentinel.ErrCorrupt)
	}

	s := Session{Token: token}
	if err := json.Unmarshal([]byte(rawUser), &s.User); err != nil || s.User == nil {
		return Session{}, fmt.Errorf("decode session user: %w", sentinel.ErrCorrupt)
	}
	return s, nil
}

func (b *PostgresBackend) Save(ctx context.Context, s Session) error {
	rawUser, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}
	const upsert = `
		INSERT INTO client_sessions (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (namespace, key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`
	err = pgx.BeginFunc(ctx, b.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsert, b.namespace, "token", s.Token); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, upsert, b.namespace, "user", string(rawUser))
		return err
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context) error {
	if _, err := b.db.Exec(ctx, `DELETE FROM client_sessions WHERE namespace = $1`, b.namespace); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
