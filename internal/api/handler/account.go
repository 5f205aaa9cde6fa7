package handler

import (
	"net/http"
	"strconv"

	"github.com/adeolu/wallet-multicurrency/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AccountHandler struct {
	accounts *service.AccountService
}

func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// GetAccount returns an account with its balances. Users can only read their
// own account; admins can read any.
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "invalid account id")
		return
	}

	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", err.Error())
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), accountID)
	if err != nil {
		if status, pType, msg, ok := mapLedgerError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("get account failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "account/read-failed", "Failed to read account")
		return
	}
	if account.UserID != actorID && !isAdmin {
		RespondError(w, r, http.StatusForbidden, "auth/forbidden", "account belongs to another user")
		return
	}

	RespondJSON(w, http.StatusOK, account)
}

// GetStatement returns the account's ledger entries, newest first.
func (h *AccountHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "invalid account id")
		return
	}

	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", err.Error())
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), accountID)
	if err != nil {
		if status, pType, msg, ok := mapLedgerError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("get account failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "account/read-failed", "Failed to read account")
		return
	}
	if account.UserID != actorID && !isAdmin {
		RespondError(w, r, http.StatusForbidden, "auth/forbidden", "account belongs to another user")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	entries, err := h.accounts.GetStatement(r.Context(), accountID, page, pageSize)
	if err != nil {
		zap.L().Error("get statement failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "account/statement-failed", "Failed to read transactions")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"account_id":   accountID,
		"transactions": entries,
	})
}
