package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Selector identifies an execution domain (chain) the vault can route to.
type Selector uint64

func (s Selector) String() string {
	return fmt.Sprintf("%d", uint64(s))
}

// BalanceKind selects which of the two independently-accounted balances an
// operation touches.
type BalanceKind string

const (
	BalancePrincipal BalanceKind = "PRINCIPAL"
	BalanceFee       BalanceKind = "FEE"
)

// Valid reports whether the balance selector is one of the two known kinds.
func (b BalanceKind) Valid() bool {
	return b == BalancePrincipal || b == BalanceFee
}

// Vault is the custodial settlement vault: two non-negative balances, the
// capability holders allowed to move them, and the routing configuration.
type Vault struct {
	ID                uuid.UUID      `json:"id"`
	Account           common.Address `json:"account"` // on-chain custody account holding the assets
	Owner             common.Address `json:"owner"`
	PaymentController common.Address `json:"payment_controller"`
	PrincipalAsset    common.Address `json:"principal_asset"`
	FeeAsset          common.Address `json:"fee_asset"`
	Router            common.Address `json:"router"`
	LocalDomain       Selector       `json:"local_domain"`
	PrincipalBalance  *big.Int       `json:"principal_balance"`
	FeeBalance        *big.Int       `json:"fee_balance"`
	Initialized       bool           `json:"initialized"`
	Paused            bool           `json:"paused"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Balance returns the balance for the given kind. Callers must not mutate the
// returned value; use Credit/Debit.
func (v *Vault) Balance(kind BalanceKind) *big.Int {
	if kind == BalanceFee {
		return v.FeeBalance
	}
	return v.PrincipalBalance
}

// Credit adds amount to the selected balance.
func (v *Vault) Credit(kind BalanceKind, amount *big.Int) {
	if kind == BalanceFee {
		v.FeeBalance = new(big.Int).Add(v.FeeBalance, amount)
		return
	}
	v.PrincipalBalance = new(big.Int).Add(v.PrincipalBalance, amount)
}

// Debit subtracts amount from the selected balance. It returns false, leaving
// the balance untouched, when the debit would overdraw.
func (v *Vault) Debit(kind BalanceKind, amount *big.Int) bool {
	current := v.Balance(kind)
	if current.Cmp(amount) < 0 {
		return false
	}
	next := new(big.Int).Sub(current, amount)
	if kind == BalanceFee {
		v.FeeBalance = next
	} else {
		v.PrincipalBalance = next
	}
	return true
}

// AssetFor returns the asset address backing the selected balance.
func (v *Vault) AssetFor(kind BalanceKind) common.Address {
	if kind == BalanceFee {
		return v.FeeAsset
	}
	return v.PrincipalAsset
}

// IsLocal reports whether dest is the vault's own execution domain.
func (v *Vault) IsLocal(dest Selector) bool {
	return dest == v.LocalDomain
}

// IsZeroAddress reports whether addr is the null address.
func IsZeroAddress(addr common.Address) bool {
	return addr == (common.Address{})
}

// IsPositive reports whether amount is a non-nil, strictly positive integer.
func IsPositive(amount *big.Int) bool {
	return amount != nil && amount.Sign() > 0
}

// BuildPayIdempotencyKey composes the idempotency key for a Pay request.
func BuildPayIdempotencyKey(vaultID uuid.UUID, reference string) string {
	return fmt.Sprintf("pay:%s:%s", vaultID, reference)
}
