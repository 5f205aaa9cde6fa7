package handler

import (
	"encoding/json"
	"net/http"

	"github.com/adeolu/wallet-multicurrency/internal/domain"
	"github.com/adeolu/wallet-multicurrency/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerHandler exposes the three mutating wallet operations: deposit,
// transfer and conversion. All of them route through LedgerService and are
// wrapped by the idempotency middleware.
type LedgerHandler struct {
	ledger   *service.LedgerService
	accounts *service.AccountService
}

func NewLedgerHandler(ledger *service.LedgerService, accounts *service.AccountService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, accounts: accounts}
}

// ownedAccount resolves the account and enforces that the actor owns it.
func (h *LedgerHandler) ownedAccount(w http.ResponseWriter, r *http.Request, accountID uuid.UUID) bool {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", err.Error())
		return false
	}

	account, err := h.accounts.GetAccount(r.Context(), accountID)
	if err != nil {
		if status, pType, msg, ok := mapLedgerError(err); ok {
			RespondError(w, r, status, pType, msg)
			return false
		}
		zap.L().Error("get account failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "account/read-failed", "Failed to read account")
		return false
	}
	if account.UserID != actorID && !isAdmin {
		RespondError(w, r, http.StatusForbidden, "auth/forbidden", "account belongs to another user")
		return false
	}
	return true
}

// Deposit credits an account balance.
func (h *LedgerHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID    uuid.UUID `json:"account_id"`
		Currency     string    `json:"currency"`
		AmountMicros int64     `json:"amount_micros"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.AccountID == uuid.Nil {
		RespondError(w, r, http.StatusBadRequest, "request/missing-field", "account_id is required")
		return
	}
	if !h.ownedAccount(w, r, req.AccountID) {
		return
	}

	result, err := h.ledger.Credit(r.Context(), req.AccountID, domain.Currency(req.Currency), req.AmountMicros)
	if err != nil {
		if status, pType, msg, ok := mapLedgerError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("deposit failed", zap.Error(err), zap.String("account_id", req.AccountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "ledger/deposit-failed", "Failed to process deposit")
		return
	}

	RespondJSON(w, http.StatusCreated, result)
}

// Transfer moves funds to another account addressed by its account number.
func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromAccountID   uuid.UUID `json:"from_account_id"`
		ToAccountNumber string    `json:"to_account_number"`
		Currency        string    `json:"currency"`
		AmountMicros    int64     `json:"amount_micros"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.FromAccountID == uuid.Nil {
		RespondError(w, r, http.StatusBadRequest, "request/missing-field", "from_account_id is required")
		return
	}
	if req.ToAccountNumber == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-field", "to_account_number is required")
		return
	}
	if !h.ownedAccount(w, r, req.FromAccountID) {
		return
	}

	result, err := h.ledger.Transfer(r.Context(), req.FromAccountID, req.ToAccountNumber, domain.Currency(req.Currency), req.AmountMicros)
	if err != nil {
		if status, pType, msg, ok := mapLedgerError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("transfer failed", zap.Error(err), zap.String("from_account_id", req.FromAccountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "ledger/transfer-failed", "Failed to process transfer")
		return
	}

	RespondJSON(w, http.StatusCreated, result)
}

// Convert exchanges funds between two currencies on one account.
func (h *LedgerHandler) Convert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID    uuid.UUID `json:"account_id"`
		FromCurrency string    `json:"from_currency"`
		ToCurrency   string    `json:"to_currency"`
		AmountMicros int64     `json:"amount_micros"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.AccountID == uuid.Nil {
		RespondError(w, r, http.StatusBadRequest, "request/missing-field", "account_id is required")
		return
	}
	if !h.ownedAccount(w, r, req.AccountID) {
		return
	}

	result, err := h.ledger.Convert(r.Context(), req.AccountID, domain.Currency(req.FromCurrency), domain.Currency(req.ToCurrency), req.AmountMicros)
	if err != nil {
		if status, pType, msg, ok := mapLedgerError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("conversion failed", zap.Error(err), zap.String("account_id", req.AccountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "ledger/conversion-failed", "Failed to process conversion")
		return
	}

	RespondJSON(w, http.StatusCreated, result)
}
