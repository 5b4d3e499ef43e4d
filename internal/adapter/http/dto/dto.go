package dto

import (
	"math/big"
	"time"

	"settlement-vault/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
)

// LoginRequest is the request body for signature login.
type LoginRequest struct {
	Address   string `json:"address" binding:"required,eth_addr"`
	IssuedAt  int64  `json:"issued_at" binding:"required"`
	Signature string `json:"signature" binding:"required,hex_bytes"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// InitializeRequest is the request body for the one-shot vault configuration.
type InitializeRequest struct {
	Account            string   `json:"account" binding:"required,eth_addr"`
	PaymentController  string   `json:"payment_controller" binding:"required,eth_addr"`
	PrincipalAsset     string   `json:"principal_asset" binding:"required,eth_addr"`
	FeeAsset           string   `json:"fee_asset" binding:"required,eth_addr"`
	Router             string   `json:"router" binding:"required,eth_addr"`
	LocalDomain        uint64   `json:"local_domain" binding:"required"`
	AllowlistedDomains []uint64 `json:"allowlisted_domains,omitempty"`
}

// DepositRequest is the request body for crediting a balance.
type DepositRequest struct {
	Balance     string `json:"balance" binding:"required,oneof=PRINCIPAL FEE"`
	Amount      string `json:"amount" binding:"required,big_amount"`
	ReferenceID string `json:"reference_id,omitempty" binding:"omitempty,max=100,safe_id"`
}

// PayRequest is the request body for a settlement payment.
type PayRequest struct {
	Amount            string `json:"amount" binding:"required,big_amount"`
	Recipient         string `json:"recipient" binding:"required,eth_addr"`
	DestinationDomain uint64 `json:"destination_domain" binding:"required"`
	ReferenceID       string `json:"reference_id,omitempty" binding:"omitempty,max=100,safe_id"`
}

// WithdrawRequest is the request body for an owner withdrawal.
type WithdrawRequest struct {
	Balance string `json:"balance" binding:"required,oneof=PRINCIPAL FEE"`
	Amount  string `json:"amount" binding:"required,big_amount"`
}

// AllowlistRequest is the request body for an allowlist change.
type AllowlistRequest struct {
	Domain  uint64 `json:"domain" binding:"required"`
	Allowed *bool  `json:"allowed" binding:"required"`
}

// TransferOwnershipRequest is the request body for handing over the vault.
type TransferOwnershipRequest struct {
	NewOwner string `json:"new_owner" binding:"required,eth_addr"`
}

// VaultResponse is the response body for vault state.
type VaultResponse struct {
	ID                 string   `json:"id"`
	Account            string   `json:"account"`
	Owner              string   `json:"owner"`
	PaymentController  string   `json:"payment_controller"`
	PrincipalAsset     string   `json:"principal_asset"`
	FeeAsset           string   `json:"fee_asset"`
	Router             string   `json:"router"`
	LocalDomain        uint64   `json:"local_domain"`
	PrincipalBalance   string   `json:"principal_balance"`
	FeeBalance         string   `json:"fee_balance"`
	Initialized        bool     `json:"initialized"`
	Paused             bool     `json:"paused"`
	AllowlistedDomains []uint64 `json:"allowlisted_domains,omitempty"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

// EntryResponse is the response body for a single ledger entry.
type EntryResponse struct {
	ID                string  `json:"id"`
	VaultID           string  `json:"vault_id"`
	ReferenceID       string  `json:"reference_id,omitempty"`
	EntryType         string  `json:"entry_type"`
	Balance           string  `json:"balance"`
	Amount            string  `json:"amount"`
	Asset             string  `json:"asset"`
	Counterparty      string  `json:"counterparty"`
	DestinationDomain uint64  `json:"destination_domain,omitempty"`
	RelayFee          *string `json:"relay_fee,omitempty"`
	RelayMessageID    *string `json:"relay_message_id,omitempty"`
	Status            string  `json:"status"`
	CreatedAt         string  `json:"created_at"`
}

// EntryListResponse is the paginated response body for ledger entries.
type EntryListResponse struct {
	Entries  []EntryResponse `json:"entries"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// AllowlistResponse is the response body for the allowlist listing.
type AllowlistResponse struct {
	Domains []uint64 `json:"domains"`
}

// ToVaultResponse maps a domain vault to its API shape.
func ToVaultResponse(v *domain.Vault, allowlisted []domain.Selector) VaultResponse {
	domains := make([]uint64, 0, len(allowlisted))
	for _, d := range allowlisted {
		domains = append(domains, uint64(d))
	}
	return VaultResponse{
		ID:                 v.ID.String(),
		Account:            v.Account.Hex(),
		Owner:              v.Owner.Hex(),
		PaymentController:  v.PaymentController.Hex(),
		PrincipalAsset:     v.PrincipalAsset.Hex(),
		FeeAsset:           v.FeeAsset.Hex(),
		Router:             v.Router.Hex(),
		LocalDomain:        uint64(v.LocalDomain),
		PrincipalBalance:   v.PrincipalBalance.String(),
		FeeBalance:         v.FeeBalance.String(),
		Initialized:        v.Initialized,
		Paused:             v.Paused,
		AllowlistedDomains: domains,
		CreatedAt:          v.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          v.UpdatedAt.Format(time.RFC3339),
	}
}

// ToEntryResponse maps a domain ledger entry to its API shape.
func ToEntryResponse(e *domain.LedgerEntry) EntryResponse {
	resp := EntryResponse{
		ID:                e.ID.String(),
		VaultID:           e.VaultID.String(),
		ReferenceID:       e.ReferenceID,
		EntryType:         string(e.EntryType),
		Balance:           string(e.Balance),
		Amount:            e.Amount.String(),
		Asset:             e.Asset.Hex(),
		Counterparty:      e.Counterparty.Hex(),
		DestinationDomain: uint64(e.DestinationDomain),
		Status:            string(e.Status),
		CreatedAt:         e.CreatedAt.Format(time.RFC3339),
	}
	if e.RelayFee != nil {
		fee := e.RelayFee.String()
		resp.RelayFee = &fee
	}
	if e.RelayMessageID != nil {
		id := e.RelayMessageID.Hex()
		resp.RelayMessageID = &id
	}
	return resp
}

// ToEntryListResponse maps a page of ledger entries to its API shape.
func ToEntryListResponse(entries []domain.LedgerEntry, total int64, page, pageSize int) EntryListResponse {
	out := make([]EntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, ToEntryResponse(&entries[i]))
	}
	return EntryListResponse{Entries: out, Total: total, Page: page, PageSize: pageSize}
}

// ParseAmount converts a validated decimal string into a big integer amount.
func ParseAmount(s string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, false
	}
	return amount, true
}

// ParseAddress converts a validated hex string into an address.
func ParseAddress(s string) common.Address {
	return common.HexToAddress(s)
}
