/*
Package ledger provides the core personal-finance ledger engine.

PURPOSE:
  This package records categorized transactions against monetary accounts and
  derives authoritative account balances from that history. Balances are never
  stored as mutable columns - they are always computed by folding the
  transaction log, then served through a read-through, write-invalidated cache.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: A monetary account with a fixed currency and initial balance
  - Category: A label constraining which transaction types may use it
  - Transaction: An entry recording a strictly-positive amount with a direction
    derived from its type, never from its sign
  - IdentityLink: A third-party (OAuth) identity attached to a user

DESIGN PRINCIPLES:
  1. Derivation: Balance is a pure function of history, no stored balance drift
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Immutability: Core transaction fields are never edited; corrections are
     modeled as reversal entries or delete + recreate
  4. Positive amounts: Amount > 0 always; type decides credit vs. debit

SEE ALSO:
  - balance.go: Balance derivation from transactions
  - repository.go: Validation and persistence orchestration
  - cache.go: Read-through balance cache
  - service.go: The facade the HTTP layer consumes
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMERATED DOMAINS
// =============================================================================

// AccountType classifies an account.
type AccountType string

const (
	AccountCash       AccountType = "cash"
	AccountBank       AccountType = "bank"
	AccountInvestment AccountType = "investment"
	AccountOther      AccountType = "other"
)

// Valid reports whether the account type is one of the known values.
func (t AccountType) Valid() bool {
	switch t {
	case AccountCash, AccountBank, AccountInvestment, AccountOther:
		return true
	}
	return false
}

// TransactionType determines the direction of a transaction's contribution.
type TransactionType string

const (
	TxIncome   TransactionType = "income"
	TxExpense  TransactionType = "expense"
	TxTransfer TransactionType = "transfer"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxIncome, TxExpense, TxTransfer:
		return true
	}
	return false
}

// CategoryType constrains which transaction types may reference a category.
// CategoryAll is a wildcard usable by any transaction type.
type CategoryType string

const (
	CategoryIncome   CategoryType = "income"
	CategoryExpense  CategoryType = "expense"
	CategoryTransfer CategoryType = "transfer"
	CategoryAll      CategoryType = "all"
)

func (t CategoryType) Valid() bool {
	switch t {
	case CategoryIncome, CategoryExpense, CategoryTransfer, CategoryAll:
		return true
	}
	return false
}

// Allows reports whether a category of this type may be attached to a
// transaction of the given type.
func (t CategoryType) Allows(tx TransactionType) bool {
	return t == CategoryAll || string(t) == string(tx)
}

// TransferDirection marks which leg of a transfer a row represents.
// The schema models transfers as single-account rows; a two-leg transfer is
// two linked rows, one per account.
type TransferDirection string

const (
	TransferIn  TransferDirection = "in"
	TransferOut TransferDirection = "out"
)

func (d TransferDirection) Valid() bool {
	return d == TransferIn || d == TransferOut
}

// =============================================================================
// DOMAIN OBJECTS
// =============================================================================

// Account is a monetary account owned by a single user.
//
// INVARIANTS:
//   - Currency is fixed at creation (3-letter code).
//   - InitialBalance is immutable after creation.
//   - Deleting an account hard-deletes its transactions (cascades).
type Account struct {
	ID             string
	UserID         string
	Name           string
	Type           AccountType
	Currency       string
	InitialBalance decimal.Decimal
	Note           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Category labels transactions. Categories are independent of accounts;
// deleting a category nulls references, it never deletes transactions.
type Category struct {
	ID        string
	Name      string
	Type      CategoryType
	Color     string // "#RRGGBB", optional
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction is a single ledger entry.
//
// INVARIANTS:
//   - Amount is strictly positive. Direction comes from Type (and, for
//     transfers, Direction), never from the sign.
//   - Account, amount and type are immutable once written. Corrections are
//     reversal entries (see Service.ReverseTransaction) or delete + recreate.
type Transaction struct {
	ID         string
	AccountID  string
	Type       TransactionType
	Amount     decimal.Decimal
	CategoryID string // empty = uncategorized
	Date       time.Time
	Note       string

	// Transfer legs: both legs of a two-leg transfer share a TransferID.
	// Direction is set only for transfers.
	TransferID string
	Direction  TransferDirection

	// ReversalOf links a compensating entry to the transaction it negates.
	ReversalOf string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contribution returns the signed effect of the transaction on its account's
// balance: +amount for income and incoming transfers, -amount for expenses
// and outgoing transfers.
func (t Transaction) Contribution() decimal.Decimal {
	switch t.Type {
	case TxIncome:
		return t.Amount
	case TxExpense:
		return t.Amount.Neg()
	case TxTransfer:
		if t.Direction == TransferIn {
			return t.Amount
		}
		return t.Amount.Neg()
	}
	return decimal.Zero
}

// IdentityLink associates a user with a (provider, provider_user_id) pair.
// Unique per pair. The engine stores links but never validates tokens - that
// is the auth layer's job.
type IdentityLink struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	AccessToken    string
	RefreshToken   string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// =============================================================================
// CREATION SPECS
// =============================================================================

// AccountSpec describes a new account.
type AccountSpec struct {
	UserID         string
	Name           string
	Type           AccountType
	Currency       string
	InitialBalance decimal.Decimal
	Note           string
}

// CategorySpec describes a new category.
type CategorySpec struct {
	Name  string
	Type  CategoryType
	Color string
}

// TransactionSpec describes a new income or expense transaction.
type TransactionSpec struct {
	AccountID  string
	Type       TransactionType
	Amount     decimal.Decimal
	CategoryID string
	Date       time.Time
	Note       string
}

// TransferSpec describes a transfer. ToAccountID may be empty for a
// one-sided transfer (money leaving to an external counterparty).
type TransferSpec struct {
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
	CategoryID    string
	Date          time.Time
	Note          string
}

// DateRange bounds a transaction query. Zero values mean unbounded.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether the given date falls inside the range.
func (r DateRange) Contains(d time.Time) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}
