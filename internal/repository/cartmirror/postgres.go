package cartmirror

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"

	"storefront-api/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) Replace(ctx context.Context, userID string, lines []domain.CartLine) error {
	payload, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO cart_mirrors (id, user_id, lines, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (user_id) DO UPDATE SET
    lines = EXCLUDED.lines,
    updated_at = now()
`
	if _, err := r.pool.Exec(ctx, q, uuid.NewString(), userID, payload); err != nil {
		r.logger.Printf("cart mirror repo: replace user_id=%s error=%v", userID, err)
		return err
	}
	r.logger.Printf("cart mirror repo: replaced user_id=%s lines=%d", userID, len(lines))
	return nil
}

func (r *postgresRepo) Get(ctx context.Context, userID string) ([]domain.CartLine, error) {
	const q = `
SELECT lines
FROM cart_mirrors
WHERE user_id = $1
`
	var payload []byte
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("cart mirror repo: get user_id=%s error=%v", userID, err)
		return nil, err
	}
	var lines []domain.CartLine
	if err := json.Unmarshal(payload, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *postgresRepo) Delete(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM cart_mirrors WHERE user_id = $1`, userID); err != nil {
		r.logger.Printf("cart mirror repo: delete user_id=%s error=%v", userID, err)
		return err
	}
	return nil
}
