package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/adeolu/wallet-multicurrency/internal/domain"
	"github.com/adeolu/wallet-multicurrency/internal/models"
	"github.com/adeolu/wallet-multicurrency/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccount(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc := NewAccountService(repo, repository.NewStore(db))
	ctx := context.Background()

	user := createTestUser(t, repo, "ayo")
	account, err := svc.CreateAccount(ctx, user.ID)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(account.AccountNumber, "2200"))
	assert.Len(t, account.AccountNumber, 20)
	assert.Len(t, account.Balances, len(domain.Currencies()))
	for _, c := range domain.Currencies() {
		assert.Equal(t, int64(0), account.Balances[c])
	}

	// Round trip through the repository.
	loaded, err := svc.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.AccountNumber, loaded.AccountNumber)
	assert.Equal(t, user.ID, loaded.UserID)
	assert.Len(t, loaded.Balances, len(domain.Currencies()))
}

func TestRegister(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc := NewAccountService(repo, repository.NewStore(db))
	ctx := context.Background()

	user := &models.User{
		ID:       uuid.New(),
		Username: "ayo",
		Email:    "ayo@example.com",
		Role:     "user",
	}
	account, err := svc.Register(ctx, user)
	require.NoError(t, err)
	assert.False(t, user.CreatedAt.IsZero())
	assert.True(t, strings.HasPrefix(account.AccountNumber, "2200"))

	loaded, err := repo.GetUserByEmail(ctx, "ayo@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loaded.ID)

	balances, err := repo.GetBalances(ctx, account.ID)
	require.NoError(t, err)
	assert.Len(t, balances, len(domain.Currencies()))
}

// TestRegisterRollsBackOnExhaustion pins a generator to an already-taken
// number so every attempt collides. The whole registration must roll back:
// no user row may survive a failed account creation.
func TestRegisterRollsBackOnExhaustion(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc := NewAccountService(repo, repository.NewStore(db))
	ctx := context.Background()

	first := &models.User{ID: uuid.New(), Username: "ayo", Email: "ayo@example.com", Role: "user"}
	existing, err := svc.Register(ctx, first)
	require.NoError(t, err)

	svc.generateNumber = func() (string, error) {
		return existing.AccountNumber, nil
	}

	second := &models.User{ID: uuid.New(), Username: "david", Email: "david@example.com", Role: "user"}
	_, err = svc.Register(ctx, second)
	require.ErrorIs(t, err, models.ErrExhaustedRetries)

	_, err = repo.GetUserByEmail(ctx, "david@example.com")
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	var accounts int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&accounts))
	assert.Equal(t, 1, accounts)

	// The same registration can be retried once numbers are available again.
	svc.generateNumber = domain.GenerateAccountNumber
	_, err = svc.Register(ctx, second)
	require.NoError(t, err)
}

func TestCreateAccountConcurrent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc := NewAccountService(repo, repository.NewStore(db))
	ctx := context.Background()

	user := createTestUser(t, repo, "ayo")

	const n = 10
	numbers := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			account, err := svc.CreateAccount(ctx, user.ID)
			if err != nil {
				errs[i] = err
				return
			}
			numbers[i] = account.AccountNumber
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		_, dup := seen[numbers[i]]
		assert.False(t, dup, "duplicate account number %s", numbers[i])
		seen[numbers[i]] = struct{}{}
	}
}

func TestGetStatement(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc := NewAccountService(repo, repository.NewStore(db))
	ctx := context.Background()

	user := createTestUser(t, repo, "ayo")
	account := createTestAccount(t, svc, user.ID)

	for i := 0; i < 3; i++ {
		fundAccount(t, db, account.ID, domain.CurrencyUSD, 1_000_000)
	}

	entries, err := svc.GetStatement(ctx, account.ID, 1, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	// Newest first.
	assert.Greater(t, entries[0].ID, entries[1].ID)

	entries, err = svc.GetStatement(ctx, account.ID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Out-of-range page parameters fall back to defaults.
	entries, err = svc.GetStatement(ctx, account.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestGetStatementPageSizeCapped(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc := NewAccountService(repo, repository.NewStore(db))
	ctx := context.Background()

	user := createTestUser(t, repo, "ayo")
	account := createTestAccount(t, svc, user.ID)

	_, err := db.Exec(ctx,
		`INSERT INTO transactions (from_account_id, to_account_id, amount_micros, currency, tx_type, created_at)
		SELECT $1, $1, 1000000, 'USD', 'deposit', NOW() FROM generate_series(1, 120)`,
		account.ID)
	require.NoError(t, err)

	entries, err := svc.GetStatement(ctx, account.ID, 1, 1_000_000)
	require.NoError(t, err)
	assert.Len(t, entries, maxStatementPageSize)
}
