package service

import (
	"context"
	"fmt"

	"github.com/adeolu/wallet-multicurrency/internal/observability"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ReconciliationService sweeps the ledger for integrity violations:
// balances that went negative, and per-currency totals that diverge from
// what deposits minted and conversions moved. Transfers conserve each
// currency and therefore cancel out of the expected total.
type ReconciliationService struct {
	db *pgxpool.Pool
}

type Violation struct {
	Check    string
	Currency string
	Detail   string
}

func NewReconciliationService(db *pgxpool.Pool) *ReconciliationService {
	return &ReconciliationService{db: db}
}

// Run executes one sweep and returns any violations found. Violations are
// reported, not repaired.
func (s *ReconciliationService) Run(ctx context.Context) ([]Violation, error) {
	var violations []Violation

	var negatives int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM balances WHERE amount_micros < 0`).Scan(&negatives); err != nil {
		return nil, fmt.Errorf("scan for negative balances: %w", err)
	}
	if negatives > 0 {
		violations = append(violations, Violation{
			Check:  "negative_balance",
			Detail: fmt.Sprintf("%d balance rows below zero", negatives),
		})
		observability.IncrementLedgerViolation("negative_balance", "ALL")
		zap.L().Error("CRITICAL: negative balances detected", zap.Int64("rows", negatives))
	}

	rows, err := s.db.Query(ctx, `
		WITH totals AS (
			SELECT currency, SUM(amount_micros) AS total
			FROM balances GROUP BY currency
		), deposits AS (
			SELECT currency, SUM(amount_micros) AS minted
			FROM transactions WHERE tx_type = 'deposit' GROUP BY currency
		), fx_out AS (
			SELECT currency, SUM(amount_micros) AS outflow
			FROM transactions WHERE tx_type = 'exchange' GROUP BY currency
		), fx_in AS (
			SELECT (metadata->>'to_currency') AS currency, SUM((metadata->>'target_amount_micros')::BIGINT) AS inflow
			FROM transactions WHERE tx_type = 'exchange' GROUP BY 1
		)
		SELECT t.currency,
		       t.total,
		       COALESCE(d.minted, 0) + COALESCE(i.inflow, 0) - COALESCE(o.outflow, 0) AS expected
		FROM totals t
		LEFT JOIN deposits d ON d.currency = t.currency
		LEFT JOIN fx_out o ON o.currency = t.currency
		LEFT JOIN fx_in i ON i.currency = t.currency
	`)
	if err != nil {
		return nil, fmt.Errorf("run conservation query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var currency string
		var total, expected int64
		if err := rows.Scan(&currency, &total, &expected); err != nil {
			return nil, fmt.Errorf("scan conservation row: %w", err)
		}
		if total != expected {
			violations = append(violations, Violation{
				Check:    "conservation",
				Currency: currency,
				Detail:   fmt.Sprintf("balance total %d, ledger expects %d", total, expected),
			})
			observability.IncrementLedgerViolation("conservation", currency)
			zap.L().Error("CRITICAL: currency total diverged from ledger",
				zap.String("currency", currency),
				zap.Int64("total", total),
				zap.Int64("expected", expected),
			)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read conservation rows: %w", err)
	}

	if len(violations) == 0 {
		zap.L().Info("ledger balanced")
	}
	return violations, nil
}
