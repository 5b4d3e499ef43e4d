package ports

import (
	"context"
	"time"

	"settlement-vault/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// VaultRepository defines persistence operations for the vault singleton.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic
// locking of the vault row.
type VaultRepository interface {
	Create(ctx context.Context, vault *domain.Vault) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Vault, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Vault, error)
	UpdateBalances(ctx context.Context, tx pgx.Tx, vaultID uuid.UUID, principal, fee string) error
	MarkInitialized(ctx context.Context, tx pgx.Tx, vault *domain.Vault) error
	SetPaused(ctx context.Context, tx pgx.Tx, vaultID uuid.UUID, paused bool) error
	SetOwner(ctx context.Context, tx pgx.Tx, vaultID uuid.UUID, owner string) error
}

// AllowlistRepository defines persistence for the destination-domain allowlist.
type AllowlistRepository interface {
	Set(ctx context.Context, tx pgx.Tx, vaultID uuid.UUID, dom domain.Selector, allowed bool) error
	IsAllowlisted(ctx context.Context, vaultID uuid.UUID, dom domain.Selector) (bool, error)
	List(ctx context.Context, vaultID uuid.UUID) ([]domain.Selector, error)
}

// EntryRepository defines persistence for immutable ledger entries.
type EntryRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)
	List(ctx context.Context, params EntryListParams) ([]domain.LedgerEntry, int64, error)
}

// EntryListParams holds filter + pagination for listing ledger entries.
type EntryListParams struct {
	VaultID  uuid.UUID
	Type     *domain.EntryType
	Page     int
	PageSize int
}

// IdempotencyRepository defines persistence for pay idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, key string, entryID uuid.UUID, responseJSON []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
