package service

import (
	"context"
	"sync"
	"testing"

	"github.com/adeolu/wallet-multicurrency/internal/domain"
	"github.com/adeolu/wallet-multicurrency/internal/models"
	"github.com/adeolu/wallet-multicurrency/internal/notify"
	"github.com/adeolu/wallet-multicurrency/internal/ratesource"
	"github.com/adeolu/wallet-multicurrency/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(db *pgxpool.Pool, rates ratesource.Provider) (*LedgerService, *AccountService, *repository.Repository) {
	repo := repository.NewRepository(db)
	store := repository.NewStore(db)
	accounts := NewAccountService(repo, store)
	ledger := NewLedgerService(repo, db, rates, notify.Nop{})
	return ledger, accounts, repo
}

func TestCreditValidation(t *testing.T) {
	// Validation failures must not touch the database.
	svc := NewLedgerService(nil, nil, ratesource.NewMock(), notify.Nop{})
	ctx := context.Background()

	_, err := svc.Credit(ctx, uuid.New(), domain.CurrencyUSD, 0)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = svc.Credit(ctx, uuid.New(), domain.CurrencyUSD, -100)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = svc.Credit(ctx, uuid.New(), "XYZ", 100)
	assert.ErrorIs(t, err, models.ErrInvalidCurrency)
}

func TestTransferValidation(t *testing.T) {
	svc := NewLedgerService(nil, nil, ratesource.NewMock(), notify.Nop{})
	ctx := context.Background()

	_, err := svc.Transfer(ctx, uuid.New(), "22000000000000000000", domain.CurrencyUSD, 0)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = svc.Transfer(ctx, uuid.New(), "22000000000000000000", "NGN", 100)
	assert.ErrorIs(t, err, models.ErrInvalidCurrency)
}

func TestConvertValidation(t *testing.T) {
	svc := NewLedgerService(nil, nil, ratesource.NewMock(), notify.Nop{})
	ctx := context.Background()

	_, err := svc.Convert(ctx, uuid.New(), domain.CurrencyUSD, domain.CurrencyUSD, 100)
	assert.ErrorIs(t, err, models.ErrSameCurrency)

	_, err = svc.Convert(ctx, uuid.New(), domain.CurrencyUSD, domain.CurrencyEUR, -1)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = svc.Convert(ctx, uuid.New(), "XYZ", domain.CurrencyEUR, 100)
	assert.ErrorIs(t, err, models.ErrInvalidCurrency)
}

func TestCredit(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ledger, accounts, repo := newLedger(db, ratesource.NewMock())
	ctx := context.Background()

	user := createTestUser(t, repo, "ayo")
	account := createTestAccount(t, accounts, user.ID)

	result, err := ledger.Credit(ctx, account.ID, domain.CurrencyUSD, 50_000_000)
	require.NoError(t, err)
	require.NotNil(t, result.Transaction)
	assert.Equal(t, domain.TxTypeDeposit, result.Transaction.Type)
	assert.Equal(t, account.ID, result.Transaction.FromAccountID)
	assert.Equal(t, account.ID, result.Transaction.ToAccountID)
	assert.Equal(t, int64(50_000_000), result.Balances[domain.CurrencyUSD])
	assert.Equal(t, int64(0), result.Balances[domain.CurrencyBTC])

	_, err = ledger.Credit(ctx, uuid.New(), domain.CurrencyUSD, 100)
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestTransfer(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ledger, accounts, repo := newLedger(db, ratesource.NewMock())
	ctx := context.Background()

	ayo := createTestUser(t, repo, "ayo")
	david := createTestUser(t, repo, "david")
	ayoAcc := createTestAccount(t, accounts, ayo.ID)
	davidAcc := createTestAccount(t, accounts, david.ID)

	fundAccount(t, db, ayoAcc.ID, domain.CurrencyUSD, 100_000_000)

	// Moving the entire balance must succeed: sufficiency is >=, not >.
	result, err := ledger.Transfer(ctx, ayoAcc.ID, davidAcc.AccountNumber, domain.CurrencyUSD, 100_000_000)
	require.NoError(t, err)
	assert.Equal(t, domain.TxTypeTransfer, result.Transaction.Type)
	assert.Equal(t, int64(0), result.Balances[domain.CurrencyUSD])
	assert.Equal(t, int64(100_000_000), balanceOf(t, db, davidAcc.ID, domain.CurrencyUSD))

	// One more micro than the sender has.
	fundAccount(t, db, ayoAcc.ID, domain.CurrencyUSD, 10)
	_, err = ledger.Transfer(ctx, ayoAcc.ID, davidAcc.AccountNumber, domain.CurrencyUSD, 11)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
	assert.Equal(t, int64(10), balanceOf(t, db, ayoAcc.ID, domain.CurrencyUSD))
	assert.Equal(t, int64(100_000_000), balanceOf(t, db, davidAcc.ID, domain.CurrencyUSD))

	// Transfers never cross currencies implicitly.
	_, err = ledger.Transfer(ctx, ayoAcc.ID, davidAcc.AccountNumber, domain.CurrencyEUR, 10)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	_, err = ledger.Transfer(ctx, ayoAcc.ID, ayoAcc.AccountNumber, domain.CurrencyUSD, 5)
	assert.ErrorIs(t, err, models.ErrSelfTransfer)

	_, err = ledger.Transfer(ctx, ayoAcc.ID, "22009999999999999999", domain.CurrencyUSD, 5)
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestConvert(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ledger, accounts, repo := newLedger(db, ratesource.Fixed(decimal.RequireFromString("0.9")))
	ctx := context.Background()

	user := createTestUser(t, repo, "ayo")
	account := createTestAccount(t, accounts, user.ID)
	fundAccount(t, db, account.ID, domain.CurrencyUSD, 100_000_000)

	result, err := ledger.Convert(ctx, account.ID, domain.CurrencyUSD, domain.CurrencyEUR, 100_000_000)
	require.NoError(t, err)
	assert.Equal(t, domain.TxTypeExchange, result.Transaction.Type)
	require.NotNil(t, result.Transaction.FXRate)
	assert.True(t, result.Transaction.FXRate.Equal(decimal.RequireFromString("0.9")))
	assert.Equal(t, int64(0), result.Balances[domain.CurrencyUSD])
	assert.Equal(t, int64(90_000_000), result.Balances[domain.CurrencyEUR])

	// Insufficient source balance leaves both sides untouched.
	_, err = ledger.Convert(ctx, account.ID, domain.CurrencyUSD, domain.CurrencyEUR, 1)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
	assert.Equal(t, int64(90_000_000), balanceOf(t, db, account.ID, domain.CurrencyEUR))
}

// TestConvertDustRejected covers amounts whose target rounds below one
// micro: the conversion must be rejected instead of debiting the source and
// crediting nothing.
func TestConvertDustRejected(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	// 1 micro at rate 0.5 yields 0.5 micros, which truncates to zero.
	ledger, accounts, repo := newLedger(db, ratesource.Fixed(decimal.RequireFromString("0.5")))
	ctx := context.Background()

	user := createTestUser(t, repo, "ayo")
	account := createTestAccount(t, accounts, user.ID)
	fundAccount(t, db, account.ID, domain.CurrencyUSD, 1_000_000)

	_, err := ledger.Convert(ctx, account.ID, domain.CurrencyUSD, domain.CurrencyBTC, 1)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)
	assert.Equal(t, int64(1_000_000), balanceOf(t, db, account.ID, domain.CurrencyUSD))
	assert.Equal(t, int64(0), balanceOf(t, db, account.ID, domain.CurrencyBTC))
}

func TestConvertRateUnavailable(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ledger, accounts, repo := newLedger(db, ratesource.Failing())
	ctx := context.Background()

	user := createTestUser(t, repo, "ayo")
	account := createTestAccount(t, accounts, user.ID)
	fundAccount(t, db, account.ID, domain.CurrencyUSD, 10_000_000)

	_, err := ledger.Convert(ctx, account.ID, domain.CurrencyUSD, domain.CurrencyEUR, 5_000_000)
	assert.ErrorIs(t, err, models.ErrRateUnavailable)
	assert.Equal(t, int64(10_000_000), balanceOf(t, db, account.ID, domain.CurrencyUSD))
	assert.Equal(t, int64(0), balanceOf(t, db, account.ID, domain.CurrencyEUR))
}

// TestConcurrentOverdraft races two transfers that each want more than half
// the balance. Exactly one must win.
func TestConcurrentOverdraft(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ledger, accounts, repo := newLedger(db, ratesource.NewMock())
	ctx := context.Background()

	sender := createTestUser(t, repo, "sender")
	recvA := createTestUser(t, repo, "receiver_a")
	recvB := createTestUser(t, repo, "receiver_b")
	senderAcc := createTestAccount(t, accounts, sender.ID)
	recvAAcc := createTestAccount(t, accounts, recvA.ID)
	recvBAcc := createTestAccount(t, accounts, recvB.ID)

	fundAccount(t, db, senderAcc.ID, domain.CurrencyUSD, 100_000_000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	targets := []string{recvAAcc.AccountNumber, recvBAcc.AccountNumber}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.Transfer(ctx, senderAcc.ID, targets[i], domain.CurrencyUSD, 60_000_000)
		}(i)
	}
	wg.Wait()

	var failed int
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, models.ErrInsufficientFunds)
			failed++
		}
	}
	assert.Equal(t, 1, failed, "exactly one transfer should be rejected")
	assert.Equal(t, int64(40_000_000), balanceOf(t, db, senderAcc.ID, domain.CurrencyUSD))
}

// TestOppositeDirectionTransfers runs transfers in both directions between
// the same two accounts concurrently. Ordered locking must prevent deadlock.
func TestOppositeDirectionTransfers(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ledger, accounts, repo := newLedger(db, ratesource.NewMock())
	ctx := context.Background()

	ayo := createTestUser(t, repo, "ayo")
	david := createTestUser(t, repo, "david")
	ayoAcc := createTestAccount(t, accounts, ayo.ID)
	davidAcc := createTestAccount(t, accounts, david.ID)

	fundAccount(t, db, ayoAcc.ID, domain.CurrencyUSD, 50_000_000)
	fundAccount(t, db, davidAcc.ID, domain.CurrencyUSD, 50_000_000)

	const rounds = 20
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, err := ledger.Transfer(ctx, ayoAcc.ID, davidAcc.AccountNumber, domain.CurrencyUSD, 1_000_000)
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, err := ledger.Transfer(ctx, davidAcc.ID, ayoAcc.AccountNumber, domain.CurrencyUSD, 1_000_000)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	// Equal traffic both ways nets to the starting balances.
	assert.Equal(t, int64(50_000_000), balanceOf(t, db, ayoAcc.ID, domain.CurrencyUSD))
	assert.Equal(t, int64(50_000_000), balanceOf(t, db, davidAcc.ID, domain.CurrencyUSD))
}

// TestConservationAfterMixedActivity verifies the system-level invariant: per
// currency, total balances equal deposits plus conversion inflow minus
// conversion outflow.
func TestConservationAfterMixedActivity(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ledger, accounts, repo := newLedger(db, ratesource.Fixed(decimal.RequireFromString("0.5")))
	ctx := context.Background()

	ayo := createTestUser(t, repo, "ayo")
	david := createTestUser(t, repo, "david")
	ayoAcc := createTestAccount(t, accounts, ayo.ID)
	davidAcc := createTestAccount(t, accounts, david.ID)

	_, err := ledger.Credit(ctx, ayoAcc.ID, domain.CurrencyUSD, 80_000_000)
	require.NoError(t, err)
	_, err = ledger.Transfer(ctx, ayoAcc.ID, davidAcc.AccountNumber, domain.CurrencyUSD, 30_000_000)
	require.NoError(t, err)
	_, err = ledger.Convert(ctx, davidAcc.ID, domain.CurrencyUSD, domain.CurrencyEUR, 10_000_000)
	require.NoError(t, err)

	violations, err := NewReconciliationService(db).Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, violations)

	assert.Equal(t, int64(50_000_000), balanceOf(t, db, ayoAcc.ID, domain.CurrencyUSD))
	assert.Equal(t, int64(20_000_000), balanceOf(t, db, davidAcc.ID, domain.CurrencyUSD))
	assert.Equal(t, int64(5_000_000), balanceOf(t, db, davidAcc.ID, domain.CurrencyEUR))
}
