package ports

import (
	"context"
	"math/big"

	"settlement-vault/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
)

// AssetClient is the boundary to a fungible asset ledger (ERC-20 style). The
// vault treats a failed return and a thrown failure identically: the calling
// operation fails and no ledger mutation stays applied.
type AssetClient interface {
	BalanceOf(ctx context.Context, asset, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, asset, owner, spender common.Address) (*big.Int, error)
	Transfer(ctx context.Context, asset, to common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, asset, from, to common.Address, amount *big.Int) error
	Approve(ctx context.Context, asset, spender common.Address, amount *big.Int) error
}

// RelayClient is the boundary to the cross-domain router. The vault is the
// relay's caller, not its implementer: Send success does not imply remote
// delivery, only acceptance.
type RelayClient interface {
	// GetFee quotes the relay fee for delivering msg to dest. Must not mutate
	// any state; fails when the relay considers the route invalid.
	GetFee(ctx context.Context, dest domain.Selector, msg domain.TransferMessage) (*big.Int, error)
	// Send submits the message. value carries the fee when the relay is
	// configured for native-value fee payment, nil otherwise. Returns the
	// relay-issued message identifier.
	Send(ctx context.Context, dest domain.Selector, msg domain.TransferMessage, value *big.Int) (common.Hash, error)
}

// FeePaymentMode selects how the relay is paid: by pulling the fee asset via
// approval, or by an immediate native-value payment forwarded with Send.
type FeePaymentMode string

const (
	FeeModeAsset  FeePaymentMode = "asset"
	FeeModeNative FeePaymentMode = "native"
)

// EventPublisher pushes vault events to an external indexer, best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.VaultEvent) error
}

// SignatureService handles HMAC-SHA256 signing of outbound event payloads.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}
