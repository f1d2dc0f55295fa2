/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures decoupling the internal domain model from the external API
  contract. Monetary amounts travel as strings to keep fixed-point precision
  out of JSON number territory; dates travel as "YYYY-MM-DD".

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Serialization in and out of these types
*/
package api

import (
	"time"

	"github.com/pocketbook/ledger-engine/ledger"
)

const dateFormat = "2006-01-02"

// AccountDTO represents an account in API responses.
type AccountDTO struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Currency       string `json:"currency"`
	InitialBalance string `json:"initial_balance"`
	Note           string `json:"note,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

// CreateAccountRequest is the request to create an account.
type CreateAccountRequest struct {
	UserID         string `json:"user_id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Currency       string `json:"currency"`
	InitialBalance string `json:"initial_balance"`
	Note           string `json:"note,omitempty"`
}

// CategoryDTO represents a category in API responses.
type CategoryDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Color     string `json:"color,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateCategoryRequest is the request to create a category.
type CreateCategoryRequest struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Color string `json:"color,omitempty"`
}

// TransactionDTO represents a transaction in API responses.
type TransactionDTO struct {
	ID         string `json:"id"`
	AccountID  string `json:"account_id"`
	Type       string `json:"type"`
	Amount     string `json:"amount"`
	CategoryID string `json:"category_id,omitempty"`
	Date       string `json:"date"`
	Note       string `json:"note,omitempty"`
	TransferID string `json:"transfer_id,omitempty"`
	Direction  string `json:"direction,omitempty"`
	ReversalOf string `json:"reversal_of,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// CreateTransactionRequest is the request to record an income or expense.
type CreateTransactionRequest struct {
	AccountID  string `json:"account_id"`
	Type       string `json:"type"`
	Amount     string `json:"amount"`
	CategoryID string `json:"category_id,omitempty"`
	Date       string `json:"date"`
	Note       string `json:"note,omitempty"`
}

// CreateTransferRequest is the request to record a transfer. to_account_id
// may be empty for a one-sided (external) transfer.
type CreateTransferRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id,omitempty"`
	Amount        string `json:"amount"`
	CategoryID    string `json:"category_id,omitempty"`
	Date          string `json:"date"`
	Note          string `json:"note,omitempty"`
}

// ReverseTransactionRequest carries the optional correction note.
type ReverseTransactionRequest struct {
	Note string `json:"note,omitempty"`
}

// BalanceDTO represents a derived balance.
type BalanceDTO struct {
	AccountID string `json:"account_id"`
	Currency  string `json:"currency"`
	Balance   string `json:"balance"`
	AsOf      string `json:"as_of,omitempty"`
}

// BalanceSummaryDTO breaks the balance down by contribution kind.
type BalanceSummaryDTO struct {
	AccountID    string `json:"account_id"`
	Currency     string `json:"currency"`
	Balance      string `json:"balance"`
	TotalIncome  string `json:"total_income"`
	TotalExpense string `json:"total_expense"`
	NetTransfers string `json:"net_transfers"`
	Transactions int    `json:"transactions"`
}

// SaveIdentityRequest is the request to upsert a third-party identity link.
type SaveIdentityRequest struct {
	UserID         string `json:"user_id"`
	Provider       string `json:"provider"`
	ProviderUserID string `json:"provider_user_id"`
	AccessToken    string `json:"access_token,omitempty"`
	RefreshToken   string `json:"refresh_token,omitempty"`
	ExpiresAt      string `json:"expires_at,omitempty"`
}

// IdentityDTO represents an identity link. Tokens are never echoed back.
type IdentityDTO struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	Provider       string `json:"provider"`
	ProviderUserID string `json:"provider_user_id"`
	ExpiresAt      string `json:"expires_at,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAccountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{
		ID:             a.ID,
		UserID:         a.UserID,
		Name:           a.Name,
		Type:           string(a.Type),
		Currency:       a.Currency,
		InitialBalance: a.InitialBalance.StringFixed(2),
		Note:           a.Note,
		CreatedAt:      a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      a.UpdatedAt.Format(time.RFC3339),
	}
}

func toCategoryDTO(c ledger.Category) CategoryDTO {
	return CategoryDTO{
		ID:        c.ID,
		Name:      c.Name,
		Type:      string(c.Type),
		Color:     c.Color,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:         tx.ID,
		AccountID:  tx.AccountID,
		Type:       string(tx.Type),
		Amount:     tx.Amount.StringFixed(2),
		CategoryID: tx.CategoryID,
		Date:       tx.Date.Format(dateFormat),
		Note:       tx.Note,
		TransferID: tx.TransferID,
		Direction:  string(tx.Direction),
		ReversalOf: tx.ReversalOf,
		CreatedAt:  tx.CreatedAt.Format(time.RFC3339),
	}
}

func toIdentityDTO(link ledger.IdentityLink) IdentityDTO {
	dto := IdentityDTO{
		ID:             link.ID,
		UserID:         link.UserID,
		Provider:       link.Provider,
		ProviderUserID: link.ProviderUserID,
	}
	if !link.ExpiresAt.IsZero() {
		dto.ExpiresAt = link.ExpiresAt.Format(time.RFC3339)
	}
	return dto
}
