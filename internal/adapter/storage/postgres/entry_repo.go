package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"settlement-vault/internal/core/domain"
	"settlement-vault/internal/core/ports"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const entryColumns = `id, vault_id, reference_id, entry_type, balance, amount, asset, counterparty,
		destination_domain, relay_fee, relay_message_id, status, created_at`

// EntryRepo implements ports.EntryRepository.
type EntryRepo struct {
	pool Pool
}

// NewEntryRepo creates a new EntryRepo.
func NewEntryRepo(pool Pool) *EntryRepo {
	return &EntryRepo{pool: pool}
}

// Create inserts a ledger entry within a database transaction. Entries are
// append-only; there is no update path.
func (r *EntryRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO vault_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	var relayFee *string
	if e.RelayFee != nil {
		s := e.RelayFee.String()
		relayFee = &s
	}
	var relayMessageID *string
	if e.RelayMessageID != nil {
		s := e.RelayMessageID.Hex()
		relayMessageID = &s
	}
	var referenceID *string
	if e.ReferenceID != "" {
		referenceID = &e.ReferenceID
	}

	_, err := tx.Exec(ctx, query,
		e.ID, e.VaultID, referenceID, string(e.EntryType), string(e.Balance),
		e.Amount.String(), e.Asset.Hex(), e.Counterparty.Hex(),
		int64(e.DestinationDomain), relayFee, relayMessageID,
		string(e.Status), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// GetByID fetches a single ledger entry.
func (r *EntryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM vault_entries WHERE id = $1`
	return scanEntry(r.pool.QueryRow(ctx, query, id))
}

// List returns ledger entries matching the filter, newest first, plus the
// total count for pagination.
func (r *EntryRepo) List(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	where := `WHERE vault_id = $1`
	args := []any{params.VaultID}
	if params.Type != nil {
		where += ` AND entry_type = $2`
		args = append(args, string(*params.Type))
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM vault_entries ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	listQuery := fmt.Sprintf(`SELECT `+entryColumns+` FROM vault_entries %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, offset)

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		entry, err := scanEntryFromRows(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, total, nil
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	entry, err := scanEntryRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return entry, nil
}

func scanEntryFromRows(rows pgx.Rows) (*domain.LedgerEntry, error) {
	return scanEntryRow(rows)
}

func scanEntryRow(row pgx.Row) (*domain.LedgerEntry, error) {
	var (
		e                         domain.LedgerEntry
		referenceID               *string
		entryType, balance        string
		amount, asset             string
		counterparty              string
		destinationDomain         int64
		relayFee, relayMessageID  *string
		status                    string
	)
	err := row.Scan(
		&e.ID, &e.VaultID, &referenceID, &entryType, &balance, &amount, &asset,
		&counterparty, &destinationDomain, &relayFee, &relayMessageID, &status, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}

	if referenceID != nil {
		e.ReferenceID = *referenceID
	}
	e.EntryType = domain.EntryType(entryType)
	e.Balance = domain.BalanceKind(balance)
	parsed, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, fmt.Errorf("entry %s: malformed amount %q", e.ID, amount)
	}
	e.Amount = parsed
	e.Asset = common.HexToAddress(asset)
	e.Counterparty = common.HexToAddress(counterparty)
	e.DestinationDomain = domain.Selector(destinationDomain)
	if relayFee != nil {
		fee, ok := new(big.Int).SetString(*relayFee, 10)
		if !ok {
			return nil, fmt.Errorf("entry %s: malformed relay fee %q", e.ID, *relayFee)
		}
		e.RelayFee = fee
	}
	if relayMessageID != nil {
		h := common.HexToHash(*relayMessageID)
		e.RelayMessageID = &h
	}
	e.Status = domain.EntryStatus(status)
	return &e, nil
}
