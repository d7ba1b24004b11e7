package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/roach88/shopstate/internal/model"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS favorites (
    id         BIGSERIAL PRIMARY KEY,
    user_id    TEXT NOT NULL,
    product_id TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (user_id, product_id)
)`

// Postgres stores favorites in a Postgres table through sqlx.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an existing connection. The driver name must be
// "postgres".
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// EnsureSchema creates the favorites table if it does not exist.
func (r *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("ensure favorites schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (r *Postgres) Close() error {
	return r.db.Close()
}

func (r *Postgres) List(ctx context.Context, id model.Identity) ([]model.FavoriteEntry, error) {
	if !id.Present() {
		return nil, fail(OpList, id, ErrNoIdentity)
	}

	ids := []string{}
	err := r.db.SelectContext(ctx, &ids, `
		SELECT product_id FROM favorites
		WHERE user_id = $1
		ORDER BY id ASC`, string(id))
	if err != nil {
		return nil, fail(OpList, id, err)
	}
	return toEntries(ids), nil
}

func (r *Postgres) InsertMany(ctx context.Context, id model.Identity, entries []model.FavoriteEntry) (InsertResult, error) {
	return insertEach(ctx, id, entries, func(ctx context.Context, productID string) (bool, error) {
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO favorites (user_id, product_id)
			VALUES ($1, $2)
			ON CONFLICT (user_id, product_id) DO NOTHING`, string(id), productID)
		if err != nil {
			// Older deployments have the unique index without the ON CONFLICT
			// target matching; treat the violation as a duplicate.
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return false, nil
			}
			return false, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("rows affected: %w", err)
		}
		return n > 0, nil
	})
}

func (r *Postgres) Delete(ctx context.Context, id model.Identity, productID string) error {
	if !id.Present() {
		return fail(OpDelete, id, ErrNoIdentity)
	}
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM favorites WHERE user_id = $1 AND product_id = $2`,
		string(id), model.NormalizeKey(productID))
	if err != nil {
		return fail(OpDelete, id, err)
	}
	return nil
}
