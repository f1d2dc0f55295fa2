/*
repository.go - Domain operations over the persistence store

PURPOSE:
  Translates domain operations into store operations, owning the
  schema-level invariants:
    - positive amounts, valid enum domains, well-formed currency/color
      (ValidationError, rejected before any store interaction)
    - referenced account/category must exist (NotFoundError)
    - category type must be compatible with transaction type
      (ConstraintError: reject unless category type is "all" or matches)
  Store calls are wrapped in bounded retry with exponential backoff; only
  store-unavailable failures are retried.

SEE ALSO:
  - errors.go: The error taxonomy produced here
  - store.go: The persistence contract consumed here
  - service.go: Sequences these operations with cache invalidation
*/
package ledger

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	colorPattern    = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// Repository validates domain operations and persists them.
type Repository struct {
	store Store
	retry RetryOptions
	now   func() time.Time
}

// NewRepository creates a repository over the given store with the default
// retry policy.
func NewRepository(store Store) *Repository {
	return &Repository{store: store, retry: DefaultRetryOptions, now: time.Now}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// CreateAccount validates and persists a new account.
func (r *Repository) CreateAccount(ctx context.Context, spec AccountSpec) (*Account, error) {
	if err := validateAccountSpec(spec); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	account := Account{
		ID:             uuid.NewString(),
		UserID:         spec.UserID,
		Name:           strings.TrimSpace(spec.Name),
		Type:           spec.Type,
		Currency:       spec.Currency,
		InitialBalance: spec.InitialBalance.Round(2),
		Note:           spec.Note,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := withRetry(ctx, func() error {
		return r.store.CreateAccount(ctx, account)
	}, r.retry)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccount returns the account or a NotFoundError.
func (r *Repository) GetAccount(ctx context.Context, id string) (*Account, error) {
	var account *Account
	err := withRetry(ctx, func() error {
		var err error
		account, err = r.store.GetAccount(ctx, id)
		return err
	}, r.retry)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, &NotFoundError{Kind: "account", ID: id}
	}
	return account, nil
}

// ListAccounts returns all accounts owned by the user.
func (r *Repository) ListAccounts(ctx context.Context, userID string) ([]Account, error) {
	var accounts []Account
	err := withRetry(ctx, func() error {
		var err error
		accounts, err = r.store.ListAccounts(ctx, userID)
		return err
	}, r.retry)
	return accounts, err
}

// DeleteAccount hard-deletes the account and, by cascade, its transactions.
// Deleting an already-deleted account returns a NotFoundError.
func (r *Repository) DeleteAccount(ctx context.Context, id string) error {
	return withRetry(ctx, func() error {
		return r.store.DeleteAccount(ctx, id)
	}, r.retry)
}

// =============================================================================
// CATEGORIES
// =============================================================================

// CreateCategory validates and persists a new category.
func (r *Repository) CreateCategory(ctx context.Context, spec CategorySpec) (*Category, error) {
	if err := validateCategorySpec(spec); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	category := Category{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(spec.Name),
		Type:      spec.Type,
		Color:     spec.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := withRetry(ctx, func() error {
		return r.store.CreateCategory(ctx, category)
	}, r.retry)
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// ListCategories returns all categories.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := withRetry(ctx, func() error {
		var err error
		categories, err = r.store.ListCategories(ctx)
		return err
	}, r.retry)
	return categories, err
}

// DeleteCategory removes the category. Transactions referencing it keep
// their rows; the reference becomes null.
func (r *Repository) DeleteCategory(ctx context.Context, id string) error {
	return withRetry(ctx, func() error {
		return r.store.DeleteCategory(ctx, id)
	}, r.retry)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// CreateTransaction validates, checks references and category compatibility,
// then persists a new income or expense transaction.
func (r *Repository) CreateTransaction(ctx context.Context, spec TransactionSpec) (*Transaction, error) {
	if err := validateTransactionSpec(spec); err != nil {
		return nil, err
	}
	if spec.Type == TxTransfer {
		return nil, &ValidationError{Field: "type", Reason: "transfers are created via the transfer operation"}
	}
	if _, err := r.GetAccount(ctx, spec.AccountID); err != nil {
		return nil, err
	}
	if err := r.checkCategory(ctx, spec.CategoryID, spec.Type); err != nil {
		return nil, err
	}

	tx := r.newTransaction(spec.AccountID, spec.Type, spec)
	err := withRetry(ctx, func() error {
		return r.store.CreateTransaction(ctx, tx)
	}, r.retry)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// CreateTransfer persists the legs of a transfer atomically. With a
// destination account it writes two linked rows (out-leg on the source,
// in-leg on the destination); without one it writes a single out-leg.
func (r *Repository) CreateTransfer(ctx context.Context, spec TransferSpec) ([]Transaction, error) {
	base := TransactionSpec{
		AccountID:  spec.FromAccountID,
		Type:       TxTransfer,
		Amount:     spec.Amount,
		CategoryID: spec.CategoryID,
		Date:       spec.Date,
		Note:       spec.Note,
	}
	if err := validateTransactionSpec(base); err != nil {
		return nil, err
	}
	if spec.ToAccountID == spec.FromAccountID {
		return nil, &ValidationError{Field: "to_account_id", Reason: "transfer source and destination must differ"}
	}
	if _, err := r.GetAccount(ctx, spec.FromAccountID); err != nil {
		return nil, err
	}
	if spec.ToAccountID != "" {
		if _, err := r.GetAccount(ctx, spec.ToAccountID); err != nil {
			return nil, err
		}
	}
	if err := r.checkCategory(ctx, spec.CategoryID, TxTransfer); err != nil {
		return nil, err
	}

	transferID := uuid.NewString()

	out := r.newTransaction(spec.FromAccountID, TxTransfer, base)
	out.TransferID = transferID
	out.Direction = TransferOut
	legs := []Transaction{out}

	if spec.ToAccountID != "" {
		in := r.newTransaction(spec.ToAccountID, TxTransfer, base)
		in.TransferID = transferID
		in.Direction = TransferIn
		legs = append(legs, in)
	}

	err := withRetry(ctx, func() error {
		return r.store.CreateTransactions(ctx, legs)
	}, r.retry)
	if err != nil {
		return nil, err
	}
	return legs, nil
}

// GetTransaction returns the transaction or a NotFoundError.
func (r *Repository) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	var tx *Transaction
	err := withRetry(ctx, func() error {
		var err error
		tx, err = r.store.GetTransaction(ctx, id)
		return err
	}, r.retry)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, &NotFoundError{Kind: "transaction", ID: id}
	}
	return tx, nil
}

// ListTransactions returns the account's transactions inside the range,
// ordered by date then creation time then ID. Each call re-runs the query,
// so the sequence is restartable by construction. An account with no rows -
// including one that was deleted, cascading its history away - yields an
// empty sequence, not an error.
func (r *Repository) ListTransactions(ctx context.Context, accountID string, dateRange DateRange) ([]Transaction, error) {
	if !dateRange.From.IsZero() && !dateRange.To.IsZero() && dateRange.To.Before(dateRange.From) {
		return nil, &ValidationError{Field: "date_range", Reason: "end before start"}
	}

	var txs []Transaction
	err := withRetry(ctx, func() error {
		var err error
		txs, err = r.store.ListTransactions(ctx, accountID, dateRange)
		return err
	}, r.retry)
	return txs, err
}

// ListTransferLegs returns every leg sharing the transfer ID.
func (r *Repository) ListTransferLegs(ctx context.Context, transferID string) ([]Transaction, error) {
	var legs []Transaction
	err := withRetry(ctx, func() error {
		var err error
		legs, err = r.store.ListTransferLegs(ctx, transferID)
		return err
	}, r.retry)
	return legs, err
}

// DeleteTransaction removes a single row.
func (r *Repository) DeleteTransaction(ctx context.Context, id string) error {
	return withRetry(ctx, func() error {
		return r.store.DeleteTransaction(ctx, id)
	}, r.retry)
}

// DeleteTransfer removes all legs of a transfer atomically.
func (r *Repository) DeleteTransfer(ctx context.Context, transferID string) error {
	return withRetry(ctx, func() error {
		return r.store.DeleteTransfer(ctx, transferID)
	}, r.retry)
}

// ReverseTransaction records a compensating entry that negates a prior
// transaction's contribution. The original row is untouched: income reverses
// as expense, expense as income, and a transfer leg flips direction. The
// category is not carried over - the reversed type would no longer be
// compatible with it.
func (r *Repository) ReverseTransaction(ctx context.Context, id, note string) (*Transaction, error) {
	original, err := r.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if original.ReversalOf != "" {
		return nil, &ConstraintError{Constraint: "reversal", Detail: "a reversal cannot itself be reversed"}
	}

	now := r.now().UTC()
	reversal := Transaction{
		ID:         uuid.NewString(),
		AccountID:  original.AccountID,
		Type:       reversedType(original.Type),
		Amount:     original.Amount,
		Date:       original.Date,
		Note:       note,
		ReversalOf: original.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if original.Type == TxTransfer {
		reversal.Direction = reversedDirection(original.Direction)
	}

	err = withRetry(ctx, func() error {
		return r.store.CreateTransaction(ctx, reversal)
	}, r.retry)
	if err != nil {
		return nil, err
	}
	return &reversal, nil
}

func reversedType(t TransactionType) TransactionType {
	switch t {
	case TxIncome:
		return TxExpense
	case TxExpense:
		return TxIncome
	default:
		return TxTransfer
	}
}

func reversedDirection(d TransferDirection) TransferDirection {
	if d == TransferIn {
		return TransferOut
	}
	return TransferIn
}

// =============================================================================
// IDENTITY LINKS
// =============================================================================

// SaveIdentityLink upserts the link for its (provider, provider_user_id)
// pair, refreshing tokens and expiry.
func (r *Repository) SaveIdentityLink(ctx context.Context, link IdentityLink) (*IdentityLink, error) {
	if link.Provider == "" || link.ProviderUserID == "" {
		return nil, &ValidationError{Field: "provider", Reason: "provider and provider_user_id are required"}
	}
	if link.UserID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}

	// Upsert semantics: re-saving a pair keeps the original row identity.
	existing, err := r.store.GetIdentityLink(ctx, link.Provider, link.ProviderUserID)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	if existing != nil {
		link.ID = existing.ID
		link.CreatedAt = existing.CreatedAt
	} else if link.ID == "" {
		link.ID = uuid.NewString()
		link.CreatedAt = now
	}
	link.UpdatedAt = now

	err = withRetry(ctx, func() error {
		return r.store.SaveIdentityLink(ctx, link)
	}, r.retry)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// GetIdentityLink returns the link for the pair or a NotFoundError.
func (r *Repository) GetIdentityLink(ctx context.Context, provider, providerUserID string) (*IdentityLink, error) {
	var link *IdentityLink
	err := withRetry(ctx, func() error {
		var err error
		link, err = r.store.GetIdentityLink(ctx, provider, providerUserID)
		return err
	}, r.retry)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, &NotFoundError{Kind: "identity", ID: provider + "/" + providerUserID}
	}
	return link, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

func validateAccountSpec(spec AccountSpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if spec.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if !spec.Type.Valid() {
		return &ValidationError{Field: "type", Reason: "must be one of cash, bank, investment, other"}
	}
	if !currencyPattern.MatchString(spec.Currency) {
		return &ValidationError{Field: "currency", Reason: "must be a 3-letter uppercase code"}
	}
	if spec.InitialBalance.Exponent() < -2 {
		return &ValidationError{Field: "initial_balance", Reason: "at most 2 fractional digits"}
	}
	return nil
}

func validateCategorySpec(spec CategorySpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if !spec.Type.Valid() {
		return &ValidationError{Field: "type", Reason: "must be one of income, expense, transfer, all"}
	}
	if spec.Color != "" && !colorPattern.MatchString(spec.Color) {
		return &ValidationError{Field: "color", Reason: "must be a 7-character hex string like #1A2B3C"}
	}
	return nil
}

func validateTransactionSpec(spec TransactionSpec) error {
	if spec.AccountID == "" {
		return &ValidationError{Field: "account_id", Reason: "must not be empty"}
	}
	if !spec.Type.Valid() {
		return &ValidationError{Field: "type", Reason: "must be one of income, expense, transfer"}
	}
	if !spec.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be strictly positive"}
	}
	if spec.Amount.Exponent() < -2 {
		return &ValidationError{Field: "amount", Reason: "at most 2 fractional digits"}
	}
	if spec.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "must be set"}
	}
	return nil
}

// checkCategory enforces reference existence and type compatibility.
func (r *Repository) checkCategory(ctx context.Context, categoryID string, txType TransactionType) error {
	if categoryID == "" {
		return nil
	}
	var category *Category
	err := withRetry(ctx, func() error {
		var err error
		category, err = r.store.GetCategory(ctx, categoryID)
		return err
	}, r.retry)
	if err != nil {
		return err
	}
	if category == nil {
		return &NotFoundError{Kind: "category", ID: categoryID}
	}
	if !category.Type.Allows(txType) {
		return &ConstraintError{
			Constraint: "category_type",
			Detail:     string(category.Type) + " category cannot label a " + string(txType) + " transaction",
		}
	}
	return nil
}

func (r *Repository) newTransaction(accountID string, txType TransactionType, spec TransactionSpec) Transaction {
	now := r.now().UTC()
	return Transaction{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		Type:       txType,
		Amount:     spec.Amount.Round(2),
		CategoryID: spec.CategoryID,
		Date:       spec.Date.UTC().Truncate(24 * time.Hour),
		Note:       spec.Note,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
