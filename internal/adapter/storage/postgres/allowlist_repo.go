package postgres

import (
	"context"
	"errors"
	"fmt"

	"settlement-vault/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AllowlistRepo implements ports.AllowlistRepository.
type AllowlistRepo struct {
	pool Pool
}

// NewAllowlistRepo creates a new AllowlistRepo.
func NewAllowlistRepo(pool Pool) *AllowlistRepo {
	return &AllowlistRepo{pool: pool}
}

// Set upserts the allowlist flag for a destination domain within a database
// transaction.
func (r *AllowlistRepo) Set(ctx context.Context, tx pgx.Tx, vaultID uuid.UUID, dom domain.Selector, allowed bool) error {
	query := `INSERT INTO vault_allowlist (vault_id, destination_domain, allowed, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (vault_id, destination_domain) DO UPDATE SET allowed = $3, updated_at = NOW()`

	if _, err := tx.Exec(ctx, query, vaultID, int64(dom), allowed); err != nil {
		return fmt.Errorf("set allowlist: %w", err)
	}
	return nil
}

// IsAllowlisted reports whether the destination domain is currently allowed.
func (r *AllowlistRepo) IsAllowlisted(ctx context.Context, vaultID uuid.UUID, dom domain.Selector) (bool, error) {
	query := `SELECT allowed FROM vault_allowlist WHERE vault_id = $1 AND destination_domain = $2`

	var allowed bool
	err := r.pool.QueryRow(ctx, query, vaultID, int64(dom)).Scan(&allowed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("get allowlist flag: %w", err)
	}
	return allowed, nil
}

// List returns the currently allowed destination domains.
func (r *AllowlistRepo) List(ctx context.Context, vaultID uuid.UUID) ([]domain.Selector, error) {
	query := `SELECT destination_domain FROM vault_allowlist
		WHERE vault_id = $1 AND allowed = TRUE ORDER BY destination_domain`

	rows, err := r.pool.Query(ctx, query, vaultID)
	if err != nil {
		return nil, fmt.Errorf("list allowlist: %w", err)
	}
	defer rows.Close()

	var domains []domain.Selector
	for rows.Next() {
		var d int64
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan allowlist row: %w", err)
		}
		domains = append(domains, domain.Selector(d))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allowlist rows: %w", err)
	}
	return domains, nil
}
