/*
store.go - Persistence interface

PURPOSE:
  Defines the contract between the ledger engine and the relational store.
  Implementations: store/sqlite (production), ledger/store.Memory (tests).

CONTRACT:
  - ListTransactions returns rows ordered by date ascending, then creation
    time ascending, then ID ascending. The deterministic tie-break makes
    balance folds reproducible; re-running the query restarts the sequence.
  - CreateTransactions is atomic: all rows visible or none. Transfer legs
    depend on this.
  - Gets return (nil, nil) when the row is absent; deletes return a
    *NotFoundError when nothing was deleted.
  - Constraint violations surface as *ConstraintError; an unreachable or
    locked store surfaces as ErrStoreUnavailable.

SEE ALSO:
  - store/sqlite/sqlite.go: SQLite implementation
  - ledger/store/memory.go: In-memory implementation
*/
package ledger

import "context"

// Store is the persistence contract the engine runs against.
type Store interface {
	// Accounts
	CreateAccount(ctx context.Context, a Account) error
	GetAccount(ctx context.Context, id string) (*Account, error)
	ListAccounts(ctx context.Context, userID string) ([]Account, error)
	// DeleteAccount cascades: the account's transactions are hard-deleted.
	DeleteAccount(ctx context.Context, id string) error

	// Categories
	CreateCategory(ctx context.Context, c Category) error
	GetCategory(ctx context.Context, id string) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	// DeleteCategory nulls transaction references; it never deletes rows.
	DeleteCategory(ctx context.Context, id string) error

	// Transactions
	CreateTransaction(ctx context.Context, tx Transaction) error
	// CreateTransactions inserts all rows atomically.
	CreateTransactions(ctx context.Context, txs []Transaction) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	ListTransactions(ctx context.Context, accountID string, r DateRange) ([]Transaction, error)
	// ListTransferLegs returns every row sharing a transfer ID.
	ListTransferLegs(ctx context.Context, transferID string) ([]Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	// DeleteTransfer removes all legs of a transfer atomically.
	DeleteTransfer(ctx context.Context, transferID string) error

	// Identity links
	SaveIdentityLink(ctx context.Context, link IdentityLink) error
	GetIdentityLink(ctx context.Context, provider, providerUserID string) (*IdentityLink, error)
}
