package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/adeolu/wallet-multicurrency/internal/api/middleware"
	"github.com/adeolu/wallet-multicurrency/internal/api/problem"
	"github.com/adeolu/wallet-multicurrency/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

func requestActor(r *http.Request) (uuid.UUID, bool, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return uuid.Nil, false, errors.New("missing user in auth context")
	}

	actorID, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, false, errors.New("invalid user_id in auth context")
	}

	return actorID, middleware.UserRoleFromContext(r.Context()) == "admin", nil
}

// mapLedgerError translates the ledger error taxonomy into problem responses
// so every rejection renders as a specific, retryable-or-not error kind.
func mapLedgerError(err error) (status int, problemType, message string, ok bool) {
	switch {
	case errors.Is(err, models.ErrInvalidAmount):
		return http.StatusBadRequest, "ledger/invalid-amount", "amount must be a positive number of micros", true
	case errors.Is(err, models.ErrInvalidCurrency):
		return http.StatusBadRequest, "ledger/invalid-currency", "unsupported currency", true
	case errors.Is(err, models.ErrSameCurrency):
		return http.StatusBadRequest, "ledger/same-currency", "source and target currency must differ", true
	case errors.Is(err, models.ErrSelfTransfer):
		return http.StatusBadRequest, "ledger/self-transfer", "cannot transfer to the sending account", true
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "ledger/insufficient-funds", "insufficient funds", true
	case errors.Is(err, models.ErrAccountNotFound):
		return http.StatusNotFound, "ledger/account-not-found", "account not found", true
	case errors.Is(err, models.ErrRateUnavailable):
		return http.StatusServiceUnavailable, "rates/unavailable", "exchange rate unavailable, retry later", true
	case errors.Is(err, models.ErrBusy):
		return http.StatusServiceUnavailable, "ledger/busy", "account is busy, retry later", true
	case errors.Is(err, models.ErrExhaustedRetries):
		return http.StatusServiceUnavailable, "accounts/number-exhausted", "could not allocate an account number, retry later", true
	default:
		return 0, "", "", false
	}
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}
