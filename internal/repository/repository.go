package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/adeolu/wallet-multicurrency/internal/domain"
	"github.com/adeolu/wallet-multicurrency/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// rowQuerier is satisfied by both the pool and a pgx.Tx, so writes can run
// standalone or inside a caller-owned transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	return createUser(ctx, r.db, user)
}

// CreateUserTx inserts the user within the caller's transaction.
func (r *Repository) CreateUserTx(ctx context.Context, tx pgx.Tx, user *models.User) error {
	return createUser(ctx, tx, user)
}

func createUser(ctx context.Context, q rowQuerier, user *models.User) error {
	query := `INSERT INTO users (id, username, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING created_at`
	err := q.QueryRow(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash, user.Role).Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getUser(ctx, `WHERE id = $1`, id)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, `WHERE email = $1`, email)
}

func (r *Repository) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, username, email, password_hash, role, created_at FROM users ` + where
	err := r.db.QueryRow(ctx, query, arg).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetAccount loads an account together with its full balance set.
func (r *Repository) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account := &models.Account{}
	query := `SELECT id, user_id, account_number, created_at FROM accounts WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(&account.ID, &account.UserID, &account.AccountNumber, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	balances, err := r.GetBalances(ctx, id)
	if err != nil {
		return nil, err
	}
	account.Balances = balances
	return account, nil
}

// ResolveAccountNumber maps a public account number to the internal account id.
func (r *Repository) ResolveAccountNumber(ctx context.Context, number string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT id FROM accounts WHERE account_number = $1`, number).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, models.ErrAccountNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to resolve account number: %w", err)
	}
	return id, nil
}

// GetBalances returns the per-currency balances of an account. Every
// supported currency is present in the result; a missing row is invalid
// state and surfaces as an error.
func (r *Repository) GetBalances(ctx context.Context, accountID uuid.UUID) (map[domain.Currency]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT currency, amount_micros FROM balances WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get balances: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read balances: %w", err)
	}

	for _, c := range domain.Currencies() {
		if _, ok := balances[c]; !ok {
			return nil, fmt.Errorf("account %s is missing a %s balance row", accountID, c)
		}
	}
	return balances, nil
}

// GetTransactions returns the ledger entries touching an account, newest first.
func (r *Repository) GetTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	query := `
		SELECT id, from_account_id, to_account_id, amount_micros, currency, tx_type, fx_rate, metadata, created_at
		FROM transactions
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var fxRate *string
		if err := rows.Scan(&tx.ID, &tx.FromAccountID, &tx.ToAccountID, &tx.AmountMicros, &tx.Currency, &tx.Type, &fxRate, &tx.Metadata, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if fxRate != nil {
			rate, err := decimal.NewFromString(*fxRate)
			if err != nil {
				return nil, fmt.Errorf("failed to parse fx rate %q: %w", *fxRate, err)
			}
			tx.FXRate = &rate
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}
	return txs, nil
}
