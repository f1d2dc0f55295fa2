/*
handlers.go - HTTP request handlers

PURPOSE:
  Thin adapters between HTTP and the ledger service:
  1. Parse and decode request
  2. Call the service facade
  3. Serialize response inside the JSON envelope

ERROR HANDLING:
  The engine's error taxonomy maps onto HTTP status codes:
  - 400: validation failures (malformed input, bad enum, amount <= 0)
  - 404: referenced object absent
  - 409: constraint violations (category-type mismatch, unique keys)
  - 503: persistence store unavailable after retries
  - 500: everything else

SECURITY NOTE:
  The engine receives an already-authenticated owner reference (user_id).
  OAuth token exchange and session handling live in front of this service.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/pocketbook/ledger-engine/ledger"
)

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	Service *ledger.Service
	Logger  *slog.Logger
}

// NewHandler creates a handler around the ledger service.
func NewHandler(service *ledger.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Service: service, Logger: logger}
}

// =============================================================================
// RESPONSE ENVELOPE
// =============================================================================

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: err.Error()})
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrConstraint):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports process liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// CreateAccount creates a new account.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "invalid request body")
		return
	}

	initialBalance := decimal.Zero
	if req.InitialBalance != "" {
		var err error
		initialBalance, err = decimal.NewFromString(req.InitialBalance)
		if err != nil {
			h.writeBadRequest(w, "invalid initial_balance")
			return
		}
	}

	account, err := h.Service.CreateAccount(r.Context(), ledger.AccountSpec{
		UserID:         req.UserID,
		Name:           req.Name,
		Type:           ledger.AccountType(req.Type),
		Currency:       req.Currency,
		InitialBalance: initialBalance,
		Note:           req.Note,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(*account))
}

// ListAccounts returns all accounts owned by a user.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.writeBadRequest(w, "user_id query parameter is required")
		return
	}

	accounts, err := h.Service.ListAccounts(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAccount returns a single account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.Service.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(*account))
}

// DeleteAccount hard-deletes an account and its transactions.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteAccount(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": chi.URLParam(r, "id")})
}

// GetBalance returns the account's derived balance, optionally as of a date
// (?as_of=YYYY-MM-DD). As-of queries bypass the cache.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	account, err := h.Service.GetAccount(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dto := BalanceDTO{AccountID: id, Currency: account.Currency}

	if asOfParam := r.URL.Query().Get("as_of"); asOfParam != "" {
		asOf, err := time.Parse(dateFormat, asOfParam)
		if err != nil {
			h.writeBadRequest(w, "as_of must be formatted YYYY-MM-DD")
			return
		}
		balance, err := h.Service.GetBalanceAsOf(r.Context(), id, asOf)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		dto.Balance = balance.StringFixed(2)
		dto.AsOf = asOfParam
		writeJSON(w, http.StatusOK, dto)
		return
	}

	balance, err := h.Service.GetBalance(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dto.Balance = balance.StringFixed(2)
	writeJSON(w, http.StatusOK, dto)
}

// GetBalanceSummary returns the balance broken down by contribution kind.
func (h *Handler) GetBalanceSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	account, err := h.Service.GetAccount(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	summary, err := h.Service.GetBalanceSummary(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceSummaryDTO{
		AccountID:    id,
		Currency:     account.Currency,
		Balance:      summary.Balance.StringFixed(2),
		TotalIncome:  summary.TotalIncome.StringFixed(2),
		TotalExpense: summary.TotalExpense.StringFixed(2),
		NetTransfers: summary.NetTransfers.StringFixed(2),
		Transactions: summary.Transactions,
	})
}

// ListTransactions returns an account's history, optionally bounded by
// ?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	var dateRange ledger.DateRange
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(dateFormat, from)
		if err != nil {
			h.writeBadRequest(w, "from must be formatted YYYY-MM-DD")
			return
		}
		dateRange.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(dateFormat, to)
		if err != nil {
			h.writeBadRequest(w, "to must be formatted YYYY-MM-DD")
			return
		}
		dateRange.To = t
	}

	txs, err := h.Service.ListTransactions(r.Context(), chi.URLParam(r, "id"), dateRange)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CATEGORY HANDLERS
// =============================================================================

// CreateCategory creates a new category.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "invalid request body")
		return
	}

	category, err := h.Service.CreateCategory(r.Context(), ledger.CategorySpec{
		Name:  req.Name,
		Type:  ledger.CategoryType(req.Type),
		Color: req.Color,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(*category))
}

// ListCategories returns all categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Service.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dtos := make([]CategoryDTO, len(categories))
	for i, c := range categories {
		dtos[i] = toCategoryDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DeleteCategory removes a category; transactions keep their rows.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": chi.URLParam(r, "id")})
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateTransaction records an income or expense entry.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.writeBadRequest(w, "invalid amount")
		return
	}
	date, err := time.Parse(dateFormat, req.Date)
	if err != nil {
		h.writeBadRequest(w, "date must be formatted YYYY-MM-DD")
		return
	}

	tx, err := h.Service.CreateTransaction(r.Context(), ledger.TransactionSpec{
		AccountID:  req.AccountID,
		Type:       ledger.TransactionType(req.Type),
		Amount:     amount,
		CategoryID: req.CategoryID,
		Date:       date,
		Note:       req.Note,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

// CreateTransfer records the legs of a transfer atomically.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.writeBadRequest(w, "invalid amount")
		return
	}
	date, err := time.Parse(dateFormat, req.Date)
	if err != nil {
		h.writeBadRequest(w, "date must be formatted YYYY-MM-DD")
		return
	}

	legs, err := h.Service.Transfer(r.Context(), ledger.TransferSpec{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        amount,
		CategoryID:    req.CategoryID,
		Date:          date,
		Note:          req.Note,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dtos := make([]TransactionDTO, len(legs))
	for i, leg := range legs {
		dtos[i] = toTransactionDTO(leg)
	}
	writeJSON(w, http.StatusCreated, dtos)
}

// GetTransaction returns a single transaction.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Service.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*tx))
}

// DeleteTransaction removes a transaction (all legs, for transfers).
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteTransaction(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": chi.URLParam(r, "id")})
}

// ReverseTransaction records a compensating entry for a prior transaction.
func (h *Handler) ReverseTransaction(w http.ResponseWriter, r *http.Request) {
	var req ReverseTransactionRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeBadRequest(w, "invalid request body")
			return
		}
	}

	reversal, err := h.Service.ReverseTransaction(r.Context(), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(*reversal))
}

// =============================================================================
// IDENTITY HANDLERS
// =============================================================================

// SaveIdentity upserts a third-party identity link.
func (h *Handler) SaveIdentity(w http.ResponseWriter, r *http.Request) {
	var req SaveIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "invalid request body")
		return
	}

	link := ledger.IdentityLink{
		UserID:         req.UserID,
		Provider:       req.Provider,
		ProviderUserID: req.ProviderUserID,
		AccessToken:    req.AccessToken,
		RefreshToken:   req.RefreshToken,
	}
	if req.ExpiresAt != "" {
		expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			h.writeBadRequest(w, "expires_at must be RFC 3339")
			return
		}
		link.ExpiresAt = expiresAt
	}

	saved, err := h.Service.SaveIdentityLink(r.Context(), link)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIdentityDTO(*saved))
}

// GetIdentity returns the link for a (provider, provider_user_id) pair.
func (h *Handler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	link, err := h.Service.GetIdentityLink(r.Context(),
		chi.URLParam(r, "provider"), chi.URLParam(r, "providerUserID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIdentityDTO(*link))
}
