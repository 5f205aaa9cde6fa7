package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adeolu/wallet-multicurrency/internal/domain"
	"github.com/adeolu/wallet-multicurrency/internal/models"
	"github.com/adeolu/wallet-multicurrency/internal/notify"
	"github.com/adeolu/wallet-multicurrency/internal/ratesource"
	"github.com/adeolu/wallet-multicurrency/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// pgLockNotAvailable is raised when SET LOCAL lock_timeout expires while
// waiting on a row lock.
const pgLockNotAvailable = "55P03"

// LedgerService owns every balance mutation in the system. No other code
// path writes to the balances table.
type LedgerService struct {
	repo     *repository.Repository
	db       *pgxpool.Pool
	rates    ratesource.Provider
	notifier notify.Notifier
	lockWait time.Duration
}

// MutationResult is returned by every accepted ledger operation: the ledger
// entry that was appended plus the acting account's balances after commit,
// so callers can reconcile without a follow-up read.
type MutationResult struct {
	Transaction *models.Transaction      `json:"transaction"`
	Balances    map[domain.Currency]int64 `json:"balances"`
}

func NewLedgerService(repo *repository.Repository, db *pgxpool.Pool, rates ratesource.Provider, notifier notify.Notifier) *LedgerService {
	return &LedgerService{
		repo:     repo,
		db:       db,
		rates:    rates,
		notifier: notifier,
		lockWait: 3 * time.Second,
	}
}

// WithLockWait bounds how long an operation may wait on a contended account
// row before failing with ErrBusy.
func (s *LedgerService) WithLockWait(d time.Duration) *LedgerService {
	if d > 0 {
		s.lockWait = d
	}
	return s
}

// Credit adds amountMicros to one balance of an account and appends a
// deposit entry, atomically. The deposit notification is fired after commit
// and is best-effort: its failure never rolls back the credit.
func (s *LedgerService) Credit(ctx context.Context, accountID uuid.UUID, currency domain.Currency, amountMicros int64) (*MutationResult, error) {
	if amountMicros <= 0 {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidAmount, amountMicros)
	}
	if !currency.Valid() {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidCurrency, currency)
	}

	var result *MutationResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.lockAccount(ctx, tx, accountID); err != nil {
			return err
		}
		if err := s.applyDelta(ctx, tx, accountID, currency, amountMicros); err != nil {
			return err
		}
		entry, err := s.appendEntry(ctx, tx, accountID, accountID, amountMicros, currency, domain.TxTypeDeposit, nil, nil)
		if err != nil {
			return err
		}
		balances, err := readBalances(ctx, tx, accountID)
		if err != nil {
			return err
		}
		result = &MutationResult{Transaction: entry, Balances: balances}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyDeposit(accountID, currency, amountMicros)
	return result, nil
}

// Transfer moves amountMicros of one currency from the source account to the
// account addressed by its public account number. The debit, the credit and
// the ledger entry commit as one unit or not at all.
func (s *LedgerService) Transfer(ctx context.Context, fromAccountID uuid.UUID, toAccountNumber string, currency domain.Currency, amountMicros int64) (*MutationResult, error) {
	if amountMicros <= 0 {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidAmount, amountMicros)
	}
	if !currency.Valid() {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidCurrency, currency)
	}

	// Resolving number -> id outside the transaction is safe: ids are
	// immutable and existence is re-verified by the lock below.
	toAccountID, err := s.repo.ResolveAccountNumber(ctx, toAccountNumber)
	if err != nil {
		return nil, err
	}
	if toAccountID == fromAccountID {
		return nil, models.ErrSelfTransfer
	}

	var result *MutationResult
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		// Lock both rows in ascending id order to prevent deadlock between
		// two transfers running in opposite directions.
		first, second := fromAccountID, toAccountID
		if first.String() > second.String() {
			first, second = second, first
		}
		if err := s.lockAccount(ctx, tx, first); err != nil {
			return err
		}
		if err := s.lockAccount(ctx, tx, second); err != nil {
			return err
		}

		// Sufficiency is evaluated under the lock, never from a stale read.
		balance, err := readBalance(ctx, tx, fromAccountID, currency)
		if err != nil {
			return err
		}
		if balance < amountMicros {
			return models.ErrInsufficientFunds
		}

		if err := s.applyDelta(ctx, tx, fromAccountID, currency, -amountMicros); err != nil {
			return err
		}
		if err := s.applyDelta(ctx, tx, toAccountID, currency, amountMicros); err != nil {
			return err
		}
		entry, err := s.appendEntry(ctx, tx, fromAccountID, toAccountID, amountMicros, currency, domain.TxTypeTransfer, nil, nil)
		if err != nil {
			return err
		}
		balances, err := readBalances(ctx, tx, fromAccountID)
		if err != nil {
			return err
		}
		result = &MutationResult{Transaction: entry, Balances: balances}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Convert exchanges amountMicros of fromCurrency into toCurrency on a single
// account at a freshly fetched market rate. The quote is fetched before the
// locked section and that one value is used for both the sufficiency check
// and the applied conversion; no network call happens while the row lock is
// held.
func (s *LedgerService) Convert(ctx context.Context, accountID uuid.UUID, fromCurrency, toCurrency domain.Currency, amountMicros int64) (*MutationResult, error) {
	if amountMicros <= 0 {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidAmount, amountMicros)
	}
	if !fromCurrency.Valid() {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidCurrency, fromCurrency)
	}
	if !toCurrency.Valid() {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidCurrency, toCurrency)
	}
	if fromCurrency == toCurrency {
		return nil, models.ErrSameCurrency
	}

	rate, err := s.rates.Quote(ctx, fromCurrency, toCurrency)
	if err != nil {
		if errors.Is(err, models.ErrRateUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", models.ErrRateUnavailable, err)
	}
	if !rate.IsPositive() {
		return nil, fmt.Errorf("%w: non-positive rate %s", models.ErrRateUnavailable, rate)
	}

	target := domain.NewMoney(amountMicros, fromCurrency).Convert(toCurrency, rate)
	// A conversion whose target rounds below one micro would debit the
	// source and credit nothing, destroying value.
	if target.Amount <= 0 {
		return nil, fmt.Errorf("%w: %d %s converts to zero %s at rate %s",
			models.ErrInvalidAmount, amountMicros, fromCurrency, toCurrency, rate)
	}
	metadata, err := json.Marshal(map[string]any{
		"from_currency":        fromCurrency,
		"to_currency":          toCurrency,
		"target_amount_micros": target.Amount,
	})
	if err != nil {
		return nil, fmt.Errorf("encode conversion metadata: %w", err)
	}

	var result *MutationResult
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.lockAccount(ctx, tx, accountID); err != nil {
			return err
		}
		balance, err := readBalance(ctx, tx, accountID, fromCurrency)
		if err != nil {
			return err
		}
		if balance < amountMicros {
			return models.ErrInsufficientFunds
		}

		if err := s.applyDelta(ctx, tx, accountID, fromCurrency, -amountMicros); err != nil {
			return err
		}
		if err := s.applyDelta(ctx, tx, accountID, toCurrency, target.Amount); err != nil {
			return err
		}
		entry, err := s.appendEntry(ctx, tx, accountID, accountID, amountMicros, fromCurrency, domain.TxTypeExchange, &rate, metadata)
		if err != nil {
			return err
		}
		balances, err := readBalances(ctx, tx, accountID)
		if err != nil {
			return err
		}
		result = &MutationResult{Transaction: entry, Balances: balances}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// inTx runs fn inside a transaction with a bounded lock wait.
func (s *LedgerService) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// lock_timeout does not accept bind parameters.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockWait.Milliseconds())); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// lockAccount takes a row lock on the account, verifying existence.
func (s *LedgerService) lockAccount(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var lockedID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrAccountNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
			return fmt.Errorf("%w: account %s", models.ErrBusy, id)
		}
		return fmt.Errorf("failed to lock account %s: %w", id, err)
	}
	return nil
}

// applyDelta adjusts one balance row. The CHECK constraint on the table is a
// second line of defense behind the in-transaction sufficiency check.
func (s *LedgerService) applyDelta(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, currency domain.Currency, deltaMicros int64) error {
	tag, err := tx.Exec(ctx,
		`UPDATE balances SET amount_micros = amount_micros + $1 WHERE account_id = $2 AND currency = $3`,
		deltaMicros, accountID, currency)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return models.ErrInsufficientFunds
		}
		return fmt.Errorf("failed to update %s balance: %w", currency, err)
	}
	return requireExactlyOne(tag.RowsAffected(), "update balance")
}

func (s *LedgerService) appendEntry(ctx context.Context, tx pgx.Tx, fromID, toID uuid.UUID, amountMicros int64, currency domain.Currency, txType string, fxRate *decimal.Decimal, metadata []byte) (*models.Transaction, error) {
	var rateParam *string
	if fxRate != nil {
		v := fxRate.String()
		rateParam = &v
	}

	entry := &models.Transaction{
		FromAccountID: fromID,
		ToAccountID:   toID,
		AmountMicros:  amountMicros,
		Currency:      currency,
		Type:          txType,
		FXRate:        fxRate,
		Metadata:      metadata,
	}
	err := tx.QueryRow(ctx,
		`INSERT INTO transactions (from_account_id, to_account_id, amount_micros, currency, tx_type, fx_rate, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at`,
		fromID, toID, amountMicros, currency, txType, rateParam, metadata).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return entry, nil
}

func readBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, currency domain.Currency) (int64, error) {
	var amount int64
	err := tx.QueryRow(ctx,
		`SELECT amount_micros FROM balances WHERE account_id = $1 AND currency = $2`,
		accountID, currency).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("account %s is missing a %s balance row", accountID, currency)
		}
		return 0, fmt.Errorf("failed to read %s balance: %w", currency, err)
	}
	return amount, nil
}

func readBalances(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (map[domain.Currency]int64, error) {
	rows, err := tx.Query(ctx, `SELECT currency, amount_micros FROM balances WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to read balances: %w", err)
	}
	defer rows.Close()

	balances := make(map[domain.Currency]int64, len(domain.Currencies()))
	for rows.Next() {
		var currency domain.Currency
		var amount int64
		if err := rows.Scan(&currency, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances[currency] = amount
	}
	return balances, rows.Err()
}

// notifyDeposit fires the deposit notification outside the request path. The
// request context may already be done, so a fresh bounded context is used.
func (s *LedgerService) notifyDeposit(accountID uuid.UUID, currency domain.Currency, amountMicros int64) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.notifier.Notify(ctx, accountID, "deposit.completed", map[string]any{
			"account_id":    accountID,
			"currency":      currency,
			"amount_micros": amountMicros,
		})
		if err != nil {
			zap.L().Warn("deposit notification failed",
				zap.Error(err),
				zap.String("account_id", accountID.String()),
			)
		}
	}()
}
