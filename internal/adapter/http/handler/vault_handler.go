package handler

import (
	"strconv"

	"settlement-vault/internal/adapter/http/dto"
	"settlement-vault/internal/adapter/http/middleware"
	"settlement-vault/internal/core/domain"
	"settlement-vault/internal/core/ports"
	"settlement-vault/pkg/apperror"
	"settlement-vault/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// VaultHandler handles vault endpoints. The deployment serves one vault, so
// the vault identity comes from configuration, not the URL.
type VaultHandler struct {
	vaultSvc ports.VaultService
	vaultID  uuid.UUID
}

// NewVaultHandler creates a new VaultHandler.
func NewVaultHandler(vaultSvc ports.VaultService, vaultID uuid.UUID) *VaultHandler {
	return &VaultHandler{vaultSvc: vaultSvc, vaultID: vaultID}
}

// Initialize handles POST /api/v1/vault/initialize.
func (h *VaultHandler) Initialize(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.InitializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	domains := make([]domain.Selector, 0, len(req.AllowlistedDomains))
	for _, d := range req.AllowlistedDomains {
		domains = append(domains, domain.Selector(d))
	}

	vault, err := h.vaultSvc.Initialize(c.Request.Context(), ports.InitializeRequest{
		Caller:             caller,
		VaultID:            h.vaultID,
		Account:            dto.ParseAddress(req.Account),
		PaymentController:  dto.ParseAddress(req.PaymentController),
		PrincipalAsset:     dto.ParseAddress(req.PrincipalAsset),
		FeeAsset:           dto.ParseAddress(req.FeeAsset),
		Router:             dto.ParseAddress(req.Router),
		LocalDomain:        domain.Selector(req.LocalDomain),
		AllowlistedDomains: domains,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToVaultResponse(vault, domains))
}

// Deposit handles POST /api/v1/vault/deposit.
func (h *VaultHandler) Deposit(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	amount, ok := dto.ParseAmount(req.Amount)
	if !ok {
		response.Error(c, apperror.ErrInvalidArgument("amount must be a positive integer"))
		return
	}

	entry, err := h.vaultSvc.Deposit(c.Request.Context(), ports.DepositRequest{
		Caller:      caller,
		VaultID:     h.vaultID,
		Balance:     domain.BalanceKind(req.Balance),
		Amount:      amount,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToEntryResponse(entry))
}

// Pay handles POST /api/v1/vault/pay.
func (h *VaultHandler) Pay(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	amount, ok := dto.ParseAmount(req.Amount)
	if !ok {
		response.Error(c, apperror.ErrInvalidArgument("amount must be a positive integer"))
		return
	}

	entry, err := h.vaultSvc.Pay(c.Request.Context(), ports.PayRequest{
		Caller:            caller,
		VaultID:           h.vaultID,
		Amount:            amount,
		Recipient:         dto.ParseAddress(req.Recipient),
		DestinationDomain: domain.Selector(req.DestinationDomain),
		ReferenceID:       req.ReferenceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToEntryResponse(entry))
}

// Withdraw handles POST /api/v1/vault/withdraw.
func (h *VaultHandler) Withdraw(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	amount, ok := dto.ParseAmount(req.Amount)
	if !ok {
		response.Error(c, apperror.ErrInvalidArgument("amount must be a positive integer"))
		return
	}

	entry, err := h.vaultSvc.Withdraw(c.Request.Context(), ports.WithdrawRequest{
		Caller:  caller,
		VaultID: h.vaultID,
		Balance: domain.BalanceKind(req.Balance),
		Amount:  amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToEntryResponse(entry))
}

// SetAllowlisted handles POST /api/v1/vault/allowlist.
func (h *VaultHandler) SetAllowlisted(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.AllowlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	err := h.vaultSvc.SetAllowlisted(c.Request.Context(), ports.AllowlistRequest{
		Caller:  caller,
		VaultID: h.vaultID,
		Domain:  domain.Selector(req.Domain),
		Allowed: *req.Allowed,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"domain": req.Domain, "allowed": *req.Allowed})
}

// GetAllowlist handles GET /api/v1/vault/allowlist.
func (h *VaultHandler) GetAllowlist(c *gin.Context) {
	domains, err := h.vaultSvc.ListAllowlisted(c.Request.Context(), h.vaultID)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]uint64, 0, len(domains))
	for _, d := range domains {
		out = append(out, uint64(d))
	}
	response.OK(c, dto.AllowlistResponse{Domains: out})
}

// Pause handles POST /api/v1/vault/pause.
func (h *VaultHandler) Pause(c *gin.Context) {
	h.setPaused(c, true)
}

// Unpause handles POST /api/v1/vault/unpause.
func (h *VaultHandler) Unpause(c *gin.Context) {
	h.setPaused(c, false)
}

func (h *VaultHandler) setPaused(c *gin.Context, paused bool) {
	caller, ok := middleware.Caller(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	if err := h.vaultSvc.SetPaused(c.Request.Context(), caller, h.vaultID, paused); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"paused": paused})
}

// TransferOwnership handles POST /api/v1/vault/transfer-ownership.
func (h *VaultHandler) TransferOwnership(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TransferOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	newOwner := dto.ParseAddress(req.NewOwner)
	if err := h.vaultSvc.TransferOwnership(c.Request.Context(), caller, h.vaultID, newOwner); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"owner": newOwner.Hex()})
}

// GetVault handles GET /api/v1/vault.
func (h *VaultHandler) GetVault(c *gin.Context) {
	vault, err := h.vaultSvc.GetVault(c.Request.Context(), h.vaultID)
	if err != nil {
		response.Error(c, err)
		return
	}

	domains, err := h.vaultSvc.ListAllowlisted(c.Request.Context(), h.vaultID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToVaultResponse(vault, domains))
}

// ListEntries handles GET /api/v1/vault/entries.
func (h *VaultHandler) ListEntries(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	params := ports.EntryListParams{
		VaultID:  h.vaultID,
		Page:     page,
		PageSize: pageSize,
	}
	if typ := c.Query("type"); typ != "" {
		entryType := domain.EntryType(typ)
		switch entryType {
		case domain.EntryTypeDeposit, domain.EntryTypePay, domain.EntryTypeWithdraw:
			params.Type = &entryType
		default:
			response.Error(c, apperror.ErrInvalidArgument("unknown entry type"))
			return
		}
	}

	entries, total, err := h.vaultSvc.ListEntries(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToEntryListResponse(entries, total, page, pageSize))
}
