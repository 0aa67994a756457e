package session

import (
	"context"
	"database/sql"
	"errors"

	"estate-inbox/pkg/utils"
)

var _ Store = (*PostgresStore)(nil)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS session_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps session values in a single key/value table. The *sql.DB
// is expected to use the pgx stdlib driver (see utils.OpenPostgres).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

// EnsureSchema creates the backing table if it does not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	return utils.Migrate(ctx, p.db, sessionSchema)
}

func (p *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM session_kv WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return v, err
}

func (p *PostgresStore) Set(ctx context.Context, key, value string) error {
	return utils.WithTx(ctx, p.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session_kv (key, value, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
		`, key, value)
		return err
	})
}

func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM session_kv WHERE key = $1`, key)
	return err
}
