package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventType identifies the vault state change an event describes.
type EventType string

const (
	EventDeposit              EventType = "DEPOSIT"
	EventPay                  EventType = "PAY"
	EventWithdraw             EventType = "WITHDRAW"
	EventAllowlistChanged     EventType = "ALLOWLIST_CHANGED"
	EventPaused               EventType = "PAUSED"
	EventUnpaused             EventType = "UNPAUSED"
	EventOwnershipTransferred EventType = "OWNERSHIP_TRANSFERRED"
)

// VaultEvent is the observability record pushed to indexers after a state
// change commits. It never carries information the ledger does not.
type VaultEvent struct {
	ID                uuid.UUID       `json:"id"`
	VaultID           uuid.UUID       `json:"vault_id"`
	Type              EventType       `json:"type"`
	Asset             *common.Address `json:"asset,omitempty"`
	Amount            *big.Int        `json:"amount,omitempty"`
	Counterparty      *common.Address `json:"counterparty,omitempty"`
	DestinationDomain *Selector       `json:"destination_domain,omitempty"`
	RelayMessageID    *common.Hash    `json:"relay_message_id,omitempty"`
	Domain            *Selector       `json:"domain,omitempty"`  // AllowlistChanged
	Allowed           *bool           `json:"allowed,omitempty"` // AllowlistChanged
	OccurredAt        time.Time       `json:"occurred_at"`
}
