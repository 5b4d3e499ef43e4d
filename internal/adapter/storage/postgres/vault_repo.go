package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"settlement-vault/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const vaultColumns = `id, account, owner, payment_controller, principal_asset, fee_asset, router,
		local_domain, principal_balance, fee_balance, initialized, paused, created_at, updated_at`

// VaultRepo implements ports.VaultRepository. Addresses are stored as hex
// text; balances as decimal text so arbitrary-precision amounts survive.
type VaultRepo struct {
	pool Pool
}

// NewVaultRepo creates a new VaultRepo.
func NewVaultRepo(pool Pool) *VaultRepo {
	return &VaultRepo{pool: pool}
}

// Create inserts a new vault row.
func (r *VaultRepo) Create(ctx context.Context, v *domain.Vault) error {
	query := `INSERT INTO vaults (` + vaultColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		v.ID, v.Account.Hex(), v.Owner.Hex(), v.PaymentController.Hex(),
		v.PrincipalAsset.Hex(), v.FeeAsset.Hex(), v.Router.Hex(),
		int64(v.LocalDomain), v.PrincipalBalance.String(), v.FeeBalance.String(),
		v.Initialized, v.Paused, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert vault: %w", err)
	}
	return nil
}

// GetByID fetches a vault by its UUID (without locking).
func (r *VaultRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE id = $1`
	return scanVault(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a vault by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *VaultRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE id = $1 FOR UPDATE`
	return scanVault(tx.QueryRow(ctx, query, id))
}

// UpdateBalances persists both balances within a database transaction.
func (r *VaultRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, vaultID uuid.UUID, principal, fee string) error {
	query := `UPDATE vaults SET principal_balance = $2, fee_balance = $3, updated_at = NOW() WHERE id = $1`

	tag, err := tx.Exec(ctx, query, vaultID, principal, fee)
	if err != nil {
		return fmt.Errorf("update vault balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update vault balances: vault %s not found", vaultID)
	}
	return nil
}

// MarkInitialized persists the full post-initialization configuration and
// latches the initialized flag.
func (r *VaultRepo) MarkInitialized(ctx context.Context, tx pgx.Tx, v *domain.Vault) error {
	query := `UPDATE vaults SET
			account = $2, payment_controller = $3, principal_asset = $4, fee_asset = $5,
			router = $6, local_domain = $7, initialized = TRUE, updated_at = NOW()
		WHERE id = $1 AND initialized = FALSE`

	tag, err := tx.Exec(ctx, query,
		v.ID, v.Account.Hex(), v.PaymentController.Hex(), v.PrincipalAsset.Hex(),
		v.FeeAsset.Hex(), v.Router.Hex(), int64(v.LocalDomain),
	)
	if err != nil {
		return fmt.Errorf("mark vault initialized: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark vault initialized: vault %s already initialized or missing", v.ID)
	}
	return nil
}

// SetPaused flips the pause flag within a database transaction.
func (r *VaultRepo) SetPaused(ctx context.Context, tx pgx.Tx, vaultID uuid.UUID, paused bool) error {
	query := `UPDATE vaults SET paused = $2, updated_at = NOW() WHERE id = $1`

	if _, err := tx.Exec(ctx, query, vaultID, paused); err != nil {
		return fmt.Errorf("set vault paused: %w", err)
	}
	return nil
}

// SetOwner replaces the owner address within a database transaction.
func (r *VaultRepo) SetOwner(ctx context.Context, tx pgx.Tx, vaultID uuid.UUID, owner string) error {
	query := `UPDATE vaults SET owner = $2, updated_at = NOW() WHERE id = $1`

	if _, err := tx.Exec(ctx, query, vaultID, owner); err != nil {
		return fmt.Errorf("set vault owner: %w", err)
	}
	return nil
}

func scanVault(row pgx.Row) (*domain.Vault, error) {
	var (
		v                                                     domain.Vault
		account, owner, controller, principal, fee, router    string
		localDomain                                           int64
		principalBalance, feeBalance                          string
	)
	err := row.Scan(
		&v.ID, &account, &owner, &controller, &principal, &fee, &router,
		&localDomain, &principalBalance, &feeBalance,
		&v.Initialized, &v.Paused, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan vault: %w", err)
	}

	v.Account = common.HexToAddress(account)
	v.Owner = common.HexToAddress(owner)
	v.PaymentController = common.HexToAddress(controller)
	v.PrincipalAsset = common.HexToAddress(principal)
	v.FeeAsset = common.HexToAddress(fee)
	v.Router = common.HexToAddress(router)
	v.LocalDomain = domain.Selector(localDomain)

	if v.PrincipalBalance, err = parseBalance(principalBalance); err != nil {
		return nil, fmt.Errorf("vault %s principal balance: %w", v.ID, err)
	}
	if v.FeeBalance, err = parseBalance(feeBalance); err != nil {
		return nil, fmt.Errorf("vault %s fee balance: %w", v.ID, err)
	}
	return &v, nil
}

func parseBalance(s string) (*big.Int, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok || b.Sign() < 0 {
		return nil, fmt.Errorf("malformed balance %q", s)
	}
	return b, nil
}
