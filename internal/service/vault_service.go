package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"settlement-vault/internal/core/domain"
	"settlement-vault/internal/core/ports"
	"settlement-vault/internal/metrics"
	"settlement-vault/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// VaultServiceImpl implements ports.VaultService.
type VaultServiceImpl struct {
	vaultRepo  ports.VaultRepository
	allowRepo  ports.AllowlistRepository
	entryRepo  ports.EntryRepository
	idempRepo  ports.IdempotencyRepository
	idempCache ports.IdempotencyCache
	asset      ports.AssetClient
	relay      ports.RelayClient
	publisher  ports.EventPublisher
	transactor ports.DBTransactor
	feeMode    ports.FeePaymentMode
	metrics    *metrics.Metrics
	guard      *vaultGuard
	log        zerolog.Logger
}

// NewVaultService creates a new VaultServiceImpl. publisher and m may be nil.
func NewVaultService(
	vaultRepo ports.VaultRepository,
	allowRepo ports.AllowlistRepository,
	entryRepo ports.EntryRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	asset ports.AssetClient,
	relay ports.RelayClient,
	publisher ports.EventPublisher,
	transactor ports.DBTransactor,
	feeMode ports.FeePaymentMode,
	m *metrics.Metrics,
	log zerolog.Logger,
) *VaultServiceImpl {
	return &VaultServiceImpl{
		vaultRepo:  vaultRepo,
		allowRepo:  allowRepo,
		entryRepo:  entryRepo,
		idempRepo:  idempRepo,
		idempCache: idempCache,
		asset:      asset,
		relay:      relay,
		publisher:  publisher,
		transactor: transactor,
		feeMode:    feeMode,
		metrics:    m,
		guard:      newVaultGuard(),
		log:        log,
	}
}

// Initialize performs the one-shot vault configuration. The owner is fixed at
// row creation; everything else is supplied here, never compiled in.
func (s *VaultServiceImpl) Initialize(ctx context.Context, req ports.InitializeRequest) (*domain.Vault, error) {
	if domain.IsZeroAddress(req.Account) {
		return nil, apperror.ErrZeroAddress("account")
	}
	if domain.IsZeroAddress(req.PaymentController) {
		return nil, apperror.ErrZeroAddress("payment controller")
	}
	if domain.IsZeroAddress(req.PrincipalAsset) {
		return nil, apperror.ErrZeroAddress("principal asset")
	}
	if domain.IsZeroAddress(req.FeeAsset) {
		return nil, apperror.ErrZeroAddress("fee asset")
	}
	if domain.IsZeroAddress(req.Router) {
		return nil, apperror.ErrZeroAddress("router")
	}
	for _, d := range req.AllowlistedDomains {
		if d == req.LocalDomain {
			return nil, apperror.ErrInvalidArgument("local domain must not be allowlisted")
		}
	}

	unlock := s.guard.lock(req.VaultID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	vault, err := s.vaultRepo.GetByIDForUpdate(ctx, dbTx, req.VaultID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock vault: %w", err))
	}
	if vault == nil {
		return nil, apperror.ErrVaultNotFound()
	}
	if vault.Owner != req.Caller {
		return nil, apperror.ErrUnauthorized("owner")
	}
	if vault.Initialized {
		return nil, apperror.ErrAlreadyInitialized()
	}

	vault.Account = req.Account
	vault.PaymentController = req.PaymentController
	vault.PrincipalAsset = req.PrincipalAsset
	vault.FeeAsset = req.FeeAsset
	vault.Router = req.Router
	vault.LocalDomain = req.LocalDomain
	vault.Initialized = true

	if err := s.vaultRepo.MarkInitialized(ctx, dbTx, vault); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark initialized: %w", err))
	}
	for _, d := range req.AllowlistedDomains {
		if err := s.allowRepo.Set(ctx, dbTx, vault.ID, d, true); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("seed allowlist: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("vault_id", vault.ID.String()).
		Str("controller", vault.PaymentController.Hex()).
		Uint64("local_domain", uint64(vault.LocalDomain)).
		Msg("vault initialized")

	return vault, nil
}

// Deposit pulls pre-authorized funds from the caller into the vault and
// credits the selected balance. The external pull happens before commit so a
// failed or short pull rolls the credit back with it.
func (s *VaultServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (*domain.LedgerEntry, error) {
	if !domain.IsPositive(req.Amount) {
		return nil, apperror.ErrInvalidArgument("amount must be positive")
	}
	if !req.Balance.Valid() {
		return nil, apperror.ErrInvalidArgument("unknown balance selector")
	}

	unlock := s.guard.lock(req.VaultID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	vault, err := s.lockActiveVault(ctx, dbTx, req.VaultID)
	if err != nil {
		return nil, err
	}

	asset := vault.AssetFor(req.Balance)

	allowance, err := s.asset.Allowance(ctx, asset, req.Caller, vault.Account)
	if err != nil {
		return nil, apperror.ErrExternalTransferFailed(fmt.Errorf("allowance query: %w", err))
	}
	if allowance.Cmp(req.Amount) < 0 {
		return nil, apperror.ErrExternalTransferFailed(fmt.Errorf("allowance %s below deposit amount %s", allowance, req.Amount))
	}

	vault.Credit(req.Balance, req.Amount)
	if err := s.vaultRepo.UpdateBalances(ctx, dbTx, vault.ID, vault.PrincipalBalance.String(), vault.FeeBalance.String()); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}

	entry := &domain.LedgerEntry{
		ID:           uuid.New(),
		VaultID:      vault.ID,
		ReferenceID:  req.ReferenceID,
		EntryType:    domain.EntryTypeDeposit,
		Balance:      req.Balance,
		Amount:       req.Amount,
		Asset:        asset,
		Counterparty: req.Caller,
		Status:       domain.EntryStatusSuccess,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.entryRepo.Create(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create entry: %w", err))
	}

	// External pull is the last, possibly-failing step inside the unit of work.
	if err := s.asset.TransferFrom(ctx, asset, req.Caller, vault.Account, req.Amount); err != nil {
		return nil, apperror.ErrExternalTransferFailed(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.observeBalances(vault)
	s.metrics.IncrementOperation("deposit", "success")
	s.emit(ctx, depositEvent(vault, entry))

	s.log.Info().
		Str("vault_id", vault.ID.String()).
		Str("depositor", req.Caller.Hex()).
		Str("balance", string(req.Balance)).
		Str("amount", req.Amount.String()).
		Msg("deposit recorded")

	return entry, nil
}

// Pay disburses principal on instruction from the payment controller, either
// locally or through the relay. States: Validating -> LocalSettle, or
// Validating -> QuoteFee -> DebitAndApprove -> Dispatch -> Done.
func (s *VaultServiceImpl) Pay(ctx context.Context, req ports.PayRequest) (*domain.LedgerEntry, error) {
	if !domain.IsPositive(req.Amount) {
		return nil, apperror.ErrInvalidArgument("amount must be positive")
	}
	if domain.IsZeroAddress(req.Recipient) {
		return nil, apperror.ErrZeroAddress("recipient")
	}

	unlock := s.guard.lock(req.VaultID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	vault, err := s.lockActiveVault(ctx, dbTx, req.VaultID)
	if err != nil {
		s.metrics.IncrementOperation("pay", "rejected")
		return nil, err
	}
	if vault.PaymentController != req.Caller {
		s.metrics.IncrementOperation("pay", "rejected")
		return nil, apperror.ErrUnauthorized("payment controller")
	}

	// Idempotency replay: a retried reference returns the recorded outcome.
	// Checked only once the caller has proven they hold the controller role.
	if req.ReferenceID != "" {
		if cached, err := s.lookupIdempotent(ctx, req); err != nil {
			return nil, err
		} else if cached != nil {
			return cached, nil
		}
	}

	if !vault.IsLocal(req.DestinationDomain) {
		allowed, aerr := s.allowRepo.IsAllowlisted(ctx, vault.ID, req.DestinationDomain)
		if aerr != nil {
			return nil, apperror.InternalError(fmt.Errorf("allowlist lookup: %w", aerr))
		}
		if !allowed {
			s.metrics.IncrementOperation("pay", "rejected")
			return nil, apperror.ErrDomainNotAllowlisted(uint64(req.DestinationDomain))
		}
	}
	if vault.PrincipalBalance.Cmp(req.Amount) < 0 {
		s.metrics.IncrementOperation("pay", "rejected")
		return nil, apperror.ErrInsufficientBalance("principal")
	}

	var entry *domain.LedgerEntry
	if vault.IsLocal(req.DestinationDomain) {
		entry, err = s.settleLocal(ctx, dbTx, vault, req)
	} else {
		entry, err = s.settleRemote(ctx, dbTx, vault, req)
	}
	if err != nil {
		s.metrics.IncrementOperation("pay", "failed")
		return nil, err
	}

	var respJSON []byte
	if req.ReferenceID != "" {
		respJSON, err = s.recordIdempotent(ctx, dbTx, req, entry)
		if err != nil {
			return nil, err
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	// Cache fill happens strictly after commit; a rolled-back payment must
	// not replay as success.
	if respJSON != nil {
		key := domain.BuildPayIdempotencyKey(req.VaultID, req.ReferenceID)
		if cerr := s.idempCache.Set(ctx, key, respJSON, idempotencyTTL); cerr != nil {
			s.log.Warn().Err(cerr).Str("key", key).Msg("failed to cache idempotency in redis")
		}
	}

	s.observeBalances(vault)
	s.metrics.IncrementOperation("pay", "success")
	s.emit(ctx, payEvent(vault, entry))
	return entry, nil
}

// settleLocal debits principal and transfers directly to the recipient on the
// vault's own domain. The fee balance is never touched here.
func (s *VaultServiceImpl) settleLocal(ctx context.Context, dbTx pgx.Tx, vault *domain.Vault, req ports.PayRequest) (*domain.LedgerEntry, error) {
	if !vault.Debit(domain.BalancePrincipal, req.Amount) {
		return nil, apperror.ErrInsufficientBalance("principal")
	}
	if err := s.vaultRepo.UpdateBalances(ctx, dbTx, vault.ID, vault.PrincipalBalance.String(), vault.FeeBalance.String()); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}

	entry := &domain.LedgerEntry{
		ID:                uuid.New(),
		VaultID:           vault.ID,
		ReferenceID:       req.ReferenceID,
		EntryType:         domain.EntryTypePay,
		Balance:           domain.BalancePrincipal,
		Amount:            req.Amount,
		Asset:             vault.PrincipalAsset,
		Counterparty:      req.Recipient,
		DestinationDomain: vault.LocalDomain,
		Status:            domain.EntryStatusSuccess,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.entryRepo.Create(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create entry: %w", err))
	}

	if err := s.asset.Transfer(ctx, vault.PrincipalAsset, req.Recipient, req.Amount); err != nil {
		return nil, apperror.ErrExternalTransferFailed(err)
	}

	s.log.Info().
		Str("vault_id", vault.ID.String()).
		Str("recipient", req.Recipient.Hex()).
		Str("amount", req.Amount.String()).
		Uint64("domain", uint64(vault.LocalDomain)).
		Msg("local settlement")

	return entry, nil
}

// settleRemote quotes the relay fee, debits both balances before dispatch,
// grants the router exact approvals, and submits the message. All of it rides
// the surrounding transaction: a dispatch failure rolls the debits back.
func (s *VaultServiceImpl) settleRemote(ctx context.Context, dbTx pgx.Tx, vault *domain.Vault, req ports.PayRequest) (*domain.LedgerEntry, error) {
	msg := domain.BuildTransferMessage(req.Recipient, vault.PrincipalAsset, req.Amount, vault.FeeAsset)

	// QuoteFee: read-only; an unknown route fails here, not at allowlisting.
	fee, err := s.relay.GetFee(ctx, req.DestinationDomain, msg)
	if err != nil {
		return nil, apperror.ErrFeeQuoteFailed(err)
	}
	if vault.FeeBalance.Cmp(fee) < 0 {
		return nil, apperror.ErrInsufficientBalance("fee")
	}

	// DebitAndApprove: both debits land before the dispatch call.
	if !vault.Debit(domain.BalancePrincipal, req.Amount) {
		return nil, apperror.ErrInsufficientBalance("principal")
	}
	if !vault.Debit(domain.BalanceFee, fee) {
		return nil, apperror.ErrInsufficientBalance("fee")
	}
	if err := s.vaultRepo.UpdateBalances(ctx, dbTx, vault.ID, vault.PrincipalBalance.String(), vault.FeeBalance.String()); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}

	if err := s.asset.Approve(ctx, vault.PrincipalAsset, vault.Router, req.Amount); err != nil {
		return nil, apperror.ErrExternalTransferFailed(fmt.Errorf("principal approval: %w", err))
	}

	var value *big.Int
	if s.feeMode == ports.FeeModeNative {
		value = fee
	} else {
		if err := s.asset.Approve(ctx, vault.FeeAsset, vault.Router, fee); err != nil {
			return nil, apperror.ErrExternalTransferFailed(fmt.Errorf("fee approval: %w", err))
		}
	}

	start := time.Now()
	messageID, err := s.relay.Send(ctx, req.DestinationDomain, msg, value)
	if err != nil {
		return nil, apperror.ErrExternalTransferFailed(fmt.Errorf("relay dispatch: %w", err))
	}
	s.metrics.ObserveDispatchLatency(time.Since(start))

	entry := &domain.LedgerEntry{
		ID:                uuid.New(),
		VaultID:           vault.ID,
		ReferenceID:       req.ReferenceID,
		EntryType:         domain.EntryTypePay,
		Balance:           domain.BalancePrincipal,
		Amount:            req.Amount,
		Asset:             vault.PrincipalAsset,
		Counterparty:      req.Recipient,
		DestinationDomain: req.DestinationDomain,
		RelayFee:          fee,
		RelayMessageID:    &messageID,
		Status:            domain.EntryStatusSuccess,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.entryRepo.Create(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create entry: %w", err))
	}

	s.log.Info().
		Str("vault_id", vault.ID.String()).
		Str("recipient", req.Recipient.Hex()).
		Str("amount", req.Amount.String()).
		Str("fee", fee.String()).
		Uint64("destination", uint64(req.DestinationDomain)).
		Str("message_id", messageID.Hex()).
		Msg("remote settlement dispatched")

	return entry, nil
}

// Withdraw transfers funds from the selected balance to the owner.
func (s *VaultServiceImpl) Withdraw(ctx context.Context, req ports.WithdrawRequest) (*domain.LedgerEntry, error) {
	if !domain.IsPositive(req.Amount) {
		return nil, apperror.ErrInvalidArgument("amount must be positive")
	}
	if !req.Balance.Valid() {
		return nil, apperror.ErrInvalidArgument("unknown balance selector")
	}

	unlock := s.guard.lock(req.VaultID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	vault, err := s.lockActiveVault(ctx, dbTx, req.VaultID)
	if err != nil {
		return nil, err
	}
	if vault.Owner != req.Caller {
		return nil, apperror.ErrUnauthorized("owner")
	}
	if !vault.Debit(req.Balance, req.Amount) {
		return nil, apperror.ErrInsufficientBalance(balanceName(req.Balance))
	}
	if err := s.vaultRepo.UpdateBalances(ctx, dbTx, vault.ID, vault.PrincipalBalance.String(), vault.FeeBalance.String()); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}

	asset := vault.AssetFor(req.Balance)
	entry := &domain.LedgerEntry{
		ID:           uuid.New(),
		VaultID:      vault.ID,
		EntryType:    domain.EntryTypeWithdraw,
		Balance:      req.Balance,
		Amount:       req.Amount,
		Asset:        asset,
		Counterparty: vault.Owner,
		Status:       domain.EntryStatusSuccess,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.entryRepo.Create(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create entry: %w", err))
	}

	if err := s.asset.Transfer(ctx, asset, vault.Owner, req.Amount); err != nil {
		return nil, apperror.ErrExternalTransferFailed(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.observeBalances(vault)
	s.metrics.IncrementOperation("withdraw", "success")
	s.emit(ctx, withdrawEvent(vault, entry))

	s.log.Info().
		Str("vault_id", vault.ID.String()).
		Str("balance", string(req.Balance)).
		Str("amount", req.Amount.String()).
		Msg("withdrawal completed")

	return entry, nil
}

// SetAllowlisted flips a destination domain's allowlist flag. The vault's own
// domain is never a remote route and can never be allowlisted.
func (s *VaultServiceImpl) SetAllowlisted(ctx context.Context, req ports.AllowlistRequest) error {
	unlock := s.guard.lock(req.VaultID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	vault, err := s.vaultRepo.GetByIDForUpdate(ctx, dbTx, req.VaultID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock vault: %w", err))
	}
	if vault == nil {
		return apperror.ErrVaultNotFound()
	}
	if vault.Owner != req.Caller {
		return apperror.ErrUnauthorized("owner")
	}
	if req.Domain == vault.LocalDomain {
		return apperror.ErrInvalidArgument("local domain must not be allowlisted")
	}

	if err := s.allowRepo.Set(ctx, dbTx, vault.ID, req.Domain, req.Allowed); err != nil {
		return apperror.InternalError(fmt.Errorf("set allowlist: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.emit(ctx, allowlistEvent(vault, req.Domain, req.Allowed))

	s.log.Info().
		Str("vault_id", vault.ID.String()).
		Uint64("domain", uint64(req.Domain)).
		Bool("allowed", req.Allowed).
		Msg("allowlist updated")

	return nil
}

// SetPaused toggles the administrative pause flag.
func (s *VaultServiceImpl) SetPaused(ctx context.Context, caller common.Address, vaultID uuid.UUID, paused bool) error {
	unlock := s.guard.lock(vaultID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	vault, err := s.vaultRepo.GetByIDForUpdate(ctx, dbTx, vaultID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock vault: %w", err))
	}
	if vault == nil {
		return apperror.ErrVaultNotFound()
	}
	if vault.Owner != caller {
		return apperror.ErrUnauthorized("owner")
	}

	if err := s.vaultRepo.SetPaused(ctx, dbTx, vaultID, paused); err != nil {
		return apperror.InternalError(fmt.Errorf("set paused: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	eventType := domain.EventPaused
	if !paused {
		eventType = domain.EventUnpaused
	}
	s.emit(ctx, &domain.VaultEvent{
		ID:         uuid.New(),
		VaultID:    vaultID,
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
	})

	s.log.Info().Str("vault_id", vaultID.String()).Bool("paused", paused).Msg("pause flag updated")
	return nil
}

// TransferOwnership hands the owner capability to a new address.
func (s *VaultServiceImpl) TransferOwnership(ctx context.Context, caller common.Address, vaultID uuid.UUID, newOwner common.Address) error {
	if domain.IsZeroAddress(newOwner) {
		return apperror.ErrZeroAddress("new owner")
	}

	unlock := s.guard.lock(vaultID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	vault, err := s.vaultRepo.GetByIDForUpdate(ctx, dbTx, vaultID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock vault: %w", err))
	}
	if vault == nil {
		return apperror.ErrVaultNotFound()
	}
	if vault.Owner != caller {
		return apperror.ErrUnauthorized("owner")
	}

	if err := s.vaultRepo.SetOwner(ctx, dbTx, vaultID, newOwner.Hex()); err != nil {
		return apperror.InternalError(fmt.Errorf("set owner: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.emit(ctx, &domain.VaultEvent{
		ID:           uuid.New(),
		VaultID:      vaultID,
		Type:         domain.EventOwnershipTransferred,
		Counterparty: &newOwner,
		OccurredAt:   time.Now().UTC(),
	})

	s.log.Info().
		Str("vault_id", vaultID.String()).
		Str("new_owner", newOwner.Hex()).
		Msg("ownership transferred")
	return nil
}

// GetVault returns the vault state.
func (s *VaultServiceImpl) GetVault(ctx context.Context, vaultID uuid.UUID) (*domain.Vault, error) {
	vault, err := s.vaultRepo.GetByID(ctx, vaultID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get vault: %w", err))
	}
	if vault == nil {
		return nil, apperror.ErrVaultNotFound()
	}
	return vault, nil
}

// ListAllowlisted returns the domains currently allowed as payment routes.
func (s *VaultServiceImpl) ListAllowlisted(ctx context.Context, vaultID uuid.UUID) ([]domain.Selector, error) {
	domains, err := s.allowRepo.List(ctx, vaultID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list allowlist: %w", err))
	}
	return domains, nil
}

// ListEntries returns ledger entries for operators and indexers.
func (s *VaultServiceImpl) ListEntries(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	entries, total, err := s.entryRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list entries: %w", err))
	}
	return entries, total, nil
}

// ---- helpers ----

// lockActiveVault locks the vault row and runs the common pre-conditions for
// fund-moving operations, in order: exists, initialized, not paused.
func (s *VaultServiceImpl) lockActiveVault(ctx context.Context, dbTx pgx.Tx, vaultID uuid.UUID) (*domain.Vault, error) {
	vault, err := s.vaultRepo.GetByIDForUpdate(ctx, dbTx, vaultID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock vault: %w", err))
	}
	if vault == nil {
		return nil, apperror.ErrVaultNotFound()
	}
	if !vault.Initialized {
		return nil, apperror.ErrNotInitialized()
	}
	if vault.Paused {
		return nil, apperror.ErrVaultPaused()
	}
	return vault, nil
}

func (s *VaultServiceImpl) lookupIdempotent(ctx context.Context, req ports.PayRequest) (*domain.LedgerEntry, error) {
	key := domain.BuildPayIdempotencyKey(req.VaultID, req.ReferenceID)

	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached == nil {
		cached, err = s.idempRepo.Get(ctx, key)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
		}
	}
	if cached == nil {
		return nil, nil
	}

	entry := &domain.LedgerEntry{}
	if err := json.Unmarshal(cached, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached entry: %w", err))
	}
	return entry, nil
}

// recordIdempotent writes the authoritative DB record inside the payment
// transaction. The redis fill is the caller's job, after commit.
func (s *VaultServiceImpl) recordIdempotent(ctx context.Context, dbTx pgx.Tx, req ports.PayRequest, entry *domain.LedgerEntry) ([]byte, error) {
	key := domain.BuildPayIdempotencyKey(req.VaultID, req.ReferenceID)

	respJSON, err := json.Marshal(entry)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal entry: %w", err))
	}
	if err := s.idempRepo.Create(ctx, dbTx, key, entry.ID, respJSON); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save idempotency log: %w", err))
	}
	return respJSON, nil
}

func (s *VaultServiceImpl) observeBalances(vault *domain.Vault) {
	s.metrics.SetBalance(vault.ID.String(), string(domain.BalancePrincipal), vault.PrincipalBalance)
	s.metrics.SetBalance(vault.ID.String(), string(domain.BalanceFee), vault.FeeBalance)
}

func (s *VaultServiceImpl) emit(ctx context.Context, event *domain.VaultEvent) {
	if s.publisher == nil || event == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", string(event.Type)).Msg("event publish failed")
	}
}

func balanceName(kind domain.BalanceKind) string {
	if kind == domain.BalanceFee {
		return "fee"
	}
	return "principal"
}

func depositEvent(vault *domain.Vault, entry *domain.LedgerEntry) *domain.VaultEvent {
	return &domain.VaultEvent{
		ID:           uuid.New(),
		VaultID:      vault.ID,
		Type:         domain.EventDeposit,
		Asset:        &entry.Asset,
		Amount:       entry.Amount,
		Counterparty: &entry.Counterparty,
		OccurredAt:   entry.CreatedAt,
	}
}

func payEvent(vault *domain.Vault, entry *domain.LedgerEntry) *domain.VaultEvent {
	dest := entry.DestinationDomain
	return &domain.VaultEvent{
		ID:                uuid.New(),
		VaultID:           vault.ID,
		Type:              domain.EventPay,
		Asset:             &entry.Asset,
		Amount:            entry.Amount,
		Counterparty:      &entry.Counterparty,
		DestinationDomain: &dest,
		RelayMessageID:    entry.RelayMessageID,
		OccurredAt:        entry.CreatedAt,
	}
}

func withdrawEvent(vault *domain.Vault, entry *domain.LedgerEntry) *domain.VaultEvent {
	return &domain.VaultEvent{
		ID:           uuid.New(),
		VaultID:      vault.ID,
		Type:         domain.EventWithdraw,
		Asset:        &entry.Asset,
		Amount:       entry.Amount,
		Counterparty: &entry.Counterparty,
		OccurredAt:   entry.CreatedAt,
	}
}

func allowlistEvent(vault *domain.Vault, dom domain.Selector, allowed bool) *domain.VaultEvent {
	return &domain.VaultEvent{
		ID:         uuid.New(),
		VaultID:    vault.ID,
		Type:       domain.EventAllowlistChanged,
		Domain:     &dom,
		Allowed:    &allowed,
		OccurredAt: time.Now().UTC(),
	}
}
