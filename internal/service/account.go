package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/adeolu/wallet-multicurrency/internal/domain"
	"github.com/adeolu/wallet-multicurrency/internal/models"
	"github.com/adeolu/wallet-multicurrency/internal/observability"
	"github.com/adeolu/wallet-multicurrency/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// maxNumberAttempts caps identifier generation so a pathologically full
// keyspace cannot spin forever.
const maxNumberAttempts = 10

// maxStatementPageSize bounds how many ledger entries one statement page may
// request.
const maxStatementPageSize = 100

type AccountService struct {
	repo           *repository.Repository
	store          *repository.Store
	generateNumber func() (string, error)
}

func NewAccountService(repo *repository.Repository, store *repository.Store) *AccountService {
	return &AccountService{
		repo:           repo,
		store:          store,
		generateNumber: domain.GenerateAccountNumber,
	}
}

// Register creates the user together with their wallet account and all zero
// balance rows in one transaction: either everything commits or nothing
// does, so a failed registration never leaves an account-less user behind.
// Number uniqueness is enforced by the unique index on
// accounts.account_number; a collision rolls the whole unit back and retries
// with a new number.
func (s *AccountService) Register(ctx context.Context, user *models.User) (*models.Account, error) {
	var account *models.Account
	err := s.withFreshNumber(ctx, func(ctx context.Context, number string) error {
		account = newAccount(user.ID, number)
		return s.store.RunInTx(ctx, func(tx pgx.Tx) error {
			if err := s.repo.CreateUserTx(ctx, tx, user); err != nil {
				return err
			}
			return insertAccount(ctx, tx, account)
		})
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// CreateAccount opens an additional wallet account for an existing user.
func (s *AccountService) CreateAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	var account *models.Account
	err := s.withFreshNumber(ctx, func(ctx context.Context, number string) error {
		account = newAccount(userID, number)
		return s.store.RunInTx(ctx, func(tx pgx.Tx) error {
			return insertAccount(ctx, tx, account)
		})
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// withFreshNumber runs fn with generated account numbers until it commits,
// retrying only on account number collisions.
func (s *AccountService) withFreshNumber(ctx context.Context, fn func(ctx context.Context, number string) error) error {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := s.generateNumber()
		if err != nil {
			return fmt.Errorf("generate account number: %w", err)
		}

		err = fn(ctx, number)
		if err == nil {
			return nil
		}
		if isAccountNumberCollision(err) {
			observability.IncrementIdentifierCollision()
			continue
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return models.ErrExhaustedRetries
}

func newAccount(userID uuid.UUID, number string) *models.Account {
	account := &models.Account{
		ID:            uuid.New(),
		UserID:        userID,
		AccountNumber: number,
		Balances:      make(map[domain.Currency]int64, len(domain.Currencies())),
	}
	for _, c := range domain.Currencies() {
		account.Balances[c] = 0
	}
	return account
}

func insertAccount(ctx context.Context, tx pgx.Tx, account *models.Account) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO accounts (id, user_id, account_number, created_at) VALUES ($1, $2, $3, NOW()) RETURNING created_at`,
		account.ID, account.UserID, account.AccountNumber).Scan(&account.CreatedAt)
	if err != nil {
		return err
	}
	for _, c := range domain.Currencies() {
		if _, err := tx.Exec(ctx,
			`INSERT INTO balances (account_id, currency, amount_micros) VALUES ($1, $2, 0)`,
			account.ID, c); err != nil {
			return fmt.Errorf("insert %s balance: %w", c, err)
		}
	}
	return nil
}

func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return s.repo.GetAccount(ctx, id)
}

func (s *AccountService) GetStatement(ctx context.Context, accountID uuid.UUID, page, pageSize int) ([]models.Transaction, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > maxStatementPageSize {
		pageSize = maxStatementPageSize
	}
	offset := (page - 1) * pageSize
	return s.repo.GetTransactions(ctx, accountID, pageSize, offset)
}

func isAccountNumberCollision(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == "23505" &&
		pgErr.ConstraintName == "accounts_account_number_key"
}
