package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EntryType represents the kind of fund movement recorded in the ledger.
type EntryType string

const (
	EntryTypeDeposit  EntryType = "DEPOSIT"
	EntryTypePay      EntryType = "PAY"
	EntryTypeWithdraw EntryType = "WITHDRAW"
)

// EntryStatus represents the lifecycle state of a ledger entry.
type EntryStatus string

const (
	EntryStatusSuccess EntryStatus = "SUCCESS"
	EntryStatusFailed  EntryStatus = "FAILED"
)

// LedgerEntry is an immutable record of one balance movement. Entries double
// as the vault's event log: every Deposit, Pay and Withdraw leaves exactly one.
type LedgerEntry struct {
	ID                uuid.UUID      `json:"id"`
	VaultID           uuid.UUID      `json:"vault_id"`
	ReferenceID       string         `json:"reference_id,omitempty"`
	EntryType         EntryType      `json:"entry_type"`
	Balance           BalanceKind    `json:"balance"`
	Amount            *big.Int       `json:"amount"`
	Asset             common.Address `json:"asset"`
	Counterparty      common.Address `json:"counterparty"`
	DestinationDomain Selector       `json:"destination_domain,omitempty"`
	RelayFee          *big.Int       `json:"relay_fee,omitempty"`
	RelayMessageID    *common.Hash   `json:"relay_message_id,omitempty"`
	Status            EntryStatus    `json:"status"`
	CreatedAt         time.Time      `json:"created_at"`
}

// IsRemote reports whether this entry dispatched through the relay.
func (e *LedgerEntry) IsRemote() bool {
	return e.EntryType == EntryTypePay && e.RelayMessageID != nil
}
