package ports

import (
	"context"
	"math/big"

	"settlement-vault/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// VaultService defines the settlement core. Every mutating operation is
// authenticated by address equality against the stored capability holders and
// executes as one atomic unit of work.
type VaultService interface {
	Initialize(ctx context.Context, req InitializeRequest) (*domain.Vault, error)
	Deposit(ctx context.Context, req DepositRequest) (*domain.LedgerEntry, error)
	Pay(ctx context.Context, req PayRequest) (*domain.LedgerEntry, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (*domain.LedgerEntry, error)
	SetAllowlisted(ctx context.Context, req AllowlistRequest) error
	SetPaused(ctx context.Context, caller common.Address, vaultID uuid.UUID, paused bool) error
	TransferOwnership(ctx context.Context, caller common.Address, vaultID uuid.UUID, newOwner common.Address) error
	GetVault(ctx context.Context, vaultID uuid.UUID) (*domain.Vault, error)
	ListAllowlisted(ctx context.Context, vaultID uuid.UUID) ([]domain.Selector, error)
	ListEntries(ctx context.Context, params EntryListParams) ([]domain.LedgerEntry, int64, error)
}

// InitializeRequest holds the one-shot vault configuration.
type InitializeRequest struct {
	Caller             common.Address
	VaultID            uuid.UUID
	Account            common.Address
	PaymentController  common.Address
	PrincipalAsset     common.Address
	FeeAsset           common.Address
	Router             common.Address
	LocalDomain        domain.Selector
	AllowlistedDomains []domain.Selector
}

// DepositRequest holds validated input for a deposit.
type DepositRequest struct {
	Caller      common.Address
	VaultID     uuid.UUID
	Balance     domain.BalanceKind
	Amount      *big.Int
	ReferenceID string
}

// PayRequest holds validated input for a payment.
type PayRequest struct {
	Caller            common.Address
	VaultID           uuid.UUID
	Amount            *big.Int
	Recipient         common.Address
	DestinationDomain domain.Selector
	ReferenceID       string
}

// WithdrawRequest holds validated input for an owner withdrawal.
type WithdrawRequest struct {
	Caller  common.Address
	VaultID uuid.UUID
	Balance domain.BalanceKind
	Amount  *big.Int
}

// AllowlistRequest holds input for an allowlist change.
type AllowlistRequest struct {
	Caller  common.Address
	VaultID uuid.UUID
	Domain  domain.Selector
	Allowed bool
}
