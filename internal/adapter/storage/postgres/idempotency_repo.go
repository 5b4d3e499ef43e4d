package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Create inserts an idempotency record within a database transaction.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, key string, entryID uuid.UUID, responseJSON []byte) error {
	query := `INSERT INTO vault_idempotency (key, entry_id, response_json, created_at)
		VALUES ($1, $2, $3, NOW())`

	if _, err := tx.Exec(ctx, query, key, entryID, responseJSON); err != nil {
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	return nil
}

// Get fetches the recorded response for a key, or nil when unseen.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT response_json FROM vault_idempotency WHERE key = $1`

	var responseJSON []byte
	err := r.pool.QueryRow(ctx, query, key).Scan(&responseJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	return responseJSON, nil
}
