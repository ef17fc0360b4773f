package sessioncache

import (
	"context"
	"encoding/json"
	"errors"

	"storefront-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Put(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(entry.User)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO session_cache (token, user_json, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (token) DO UPDATE SET
    user_json = EXCLUDED.user_json,
    expires_at = EXCLUDED.expires_at
`
	_, err = r.pool.Exec(ctx, q, entry.Token, payload, entry.ExpiresAt)
	return err
}

func (r *postgresRepo) Get(ctx context.Context, token string) (*Entry, error) {
	const q = `
SELECT token, user_json, expires_at, created_at
FROM session_cache
WHERE token = $1
LIMIT 1
`
	var out Entry
	var payload []byte
	if err := r.pool.QueryRow(ctx, q, token).Scan(&out.Token, &payload, &out.ExpiresAt, &out.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(payload, &out.User); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *postgresRepo) Delete(ctx context.Context, token string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM session_cache WHERE token = $1`, token)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
