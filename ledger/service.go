/*
service.go - Ledger service facade

PURPOSE:
  The single API consumed by the HTTP layer. Sequences Repository calls and
  cache invalidation: every write path is

    validate -> commit -> invalidate -> respond

  No write response is returned before invalidation completes, which upholds
  the cache's staleness contract: a caller that writes and then reads never
  observes the pre-write balance. Read paths consult the cache, falling back
  to a balance fold over the repository on miss.

CONCURRENCY:
  The service is stateless aside from the injected cache. Writes to the same
  account are linearized by the store's commit serialization plus the cache's
  version counters; writes to different accounts never contend beyond the
  cache's short critical sections. A commit that succeeded is committed even
  if the caller has gone away - there is no implicit rollback on disconnect.

SEE ALSO:
  - repository.go: Validation and persistence
  - cache.go: The invalidation protocol
  - api/handlers.go: The (external) HTTP surface calling into this facade
*/
package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Service orchestrates the repository, calculator and cache.
type Service struct {
	repo   *Repository
	cache  *BalanceCache
	logger *slog.Logger
}

// NewService wires the facade. The cache is injected so tests get a fresh
// one per test and its lifetime is tied to the owning process.
func NewService(repo *Repository, cache *BalanceCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// CreateAccount creates a new account.
func (s *Service) CreateAccount(ctx context.Context, spec AccountSpec) (*Account, error) {
	account, err := s.repo.CreateAccount(ctx, spec)
	if err != nil {
		return nil, err
	}
	s.logger.Info("account created", "account_id", account.ID, "type", account.Type, "currency", account.Currency)
	return account, nil
}

// GetAccount returns an account by ID.
func (s *Service) GetAccount(ctx context.Context, id string) (*Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// ListAccounts returns all accounts owned by the user.
func (s *Service) ListAccounts(ctx context.Context, userID string) ([]Account, error) {
	return s.repo.ListAccounts(ctx, userID)
}

// DeleteAccount hard-deletes the account and its transactions, then drops
// all cache state for it. The entry must not be left stale.
func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	if err := s.repo.DeleteAccount(ctx, id); err != nil {
		return err
	}
	s.cache.Forget(id)
	s.logger.Info("account deleted", "account_id", id)
	return nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

// CreateCategory creates a new category.
func (s *Service) CreateCategory(ctx context.Context, spec CategorySpec) (*Category, error) {
	return s.repo.CreateCategory(ctx, spec)
}

// ListCategories returns all categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// DeleteCategory removes a category. Transactions keep their rows; their
// category reference becomes null, so no balance changes and no cache
// invalidation is needed.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	return s.repo.DeleteCategory(ctx, id)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// CreateTransaction records an income or expense entry. The cache entry for
// the affected account is invalidated before the write is acknowledged.
func (s *Service) CreateTransaction(ctx context.Context, spec TransactionSpec) (*Transaction, error) {
	tx, err := s.repo.CreateTransaction(ctx, spec)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(tx.AccountID)
	s.logger.Info("transaction recorded",
		"transaction_id", tx.ID, "account_id", tx.AccountID, "type", tx.Type, "amount", tx.Amount)
	return tx, nil
}

// Transfer records the legs of a transfer atomically and invalidates every
// affected account.
func (s *Service) Transfer(ctx context.Context, spec TransferSpec) ([]Transaction, error) {
	legs, err := s.repo.CreateTransfer(ctx, spec)
	if err != nil {
		return nil, err
	}
	for _, leg := range legs {
		s.cache.Invalidate(leg.AccountID)
	}
	s.logger.Info("transfer recorded",
		"transfer_id", legs[0].TransferID, "from", spec.FromAccountID, "to", spec.ToAccountID, "amount", spec.Amount)
	return legs, nil
}

// GetTransaction returns a transaction by ID.
func (s *Service) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// ListTransactions returns the account's history inside the range, ordered
// by date ascending then creation time ascending.
func (s *Service) ListTransactions(ctx context.Context, accountID string, dateRange DateRange) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, accountID, dateRange)
}

// DeleteTransaction removes an entry. Deleting any leg of a transfer removes
// all of its legs - a half-deleted transfer would corrupt both histories.
// Every affected account is invalidated before the delete is acknowledged.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return err
	}

	if tx.TransferID != "" {
		legs, err := s.repo.ListTransferLegs(ctx, tx.TransferID)
		if err != nil {
			return err
		}
		if err := s.repo.DeleteTransfer(ctx, tx.TransferID); err != nil {
			return err
		}
		for _, leg := range legs {
			s.cache.Invalidate(leg.AccountID)
		}
		return nil
	}

	if err := s.repo.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(tx.AccountID)
	return nil
}

// ReverseTransaction records a compensating entry negating a prior one,
// preserving an auditable history the balance fold handles like any other
// row.
func (s *Service) ReverseTransaction(ctx context.Context, id, note string) (*Transaction, error) {
	reversal, err := s.repo.ReverseTransaction(ctx, id, note)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(reversal.AccountID)
	s.logger.Info("transaction reversed",
		"transaction_id", id, "reversal_id", reversal.ID, "account_id", reversal.AccountID)
	return reversal, nil
}

// =============================================================================
// BALANCES
// =============================================================================

// GetBalance returns the account's current derived balance through the
// read-through cache.
func (s *Service) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return s.cache.Get(ctx, accountID, func(ctx context.Context) (decimal.Decimal, error) {
		txs, err := s.repo.ListTransactions(ctx, accountID, DateRange{})
		if err != nil {
			return decimal.Decimal{}, err
		}
		return Balance(*account, txs), nil
	})
}

// GetBalanceAsOf returns the balance using only transactions dated on or
// before asOf. Historical folds bypass the cache, which holds only the
// current balance.
func (s *Service) GetBalanceAsOf(ctx context.Context, accountID string, asOf time.Time) (decimal.Decimal, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	txs, err := s.repo.ListTransactions(ctx, accountID, DateRange{To: asOf})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return BalanceAsOf(*account, txs, asOf), nil
}

// GetBalanceSummary returns the current balance broken down by contribution
// kind. Always computed fresh; the cache holds only the scalar balance.
func (s *Service) GetBalanceSummary(ctx context.Context, accountID string) (*BalanceSummary, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	txs, err := s.repo.ListTransactions(ctx, accountID, DateRange{})
	if err != nil {
		return nil, err
	}
	summary := Summarize(*account, txs)
	return &summary, nil
}

// =============================================================================
// IDENTITY LINKS
// =============================================================================

// SaveIdentityLink upserts a third-party identity link. Token validation is
// the auth layer's responsibility, not the engine's.
func (s *Service) SaveIdentityLink(ctx context.Context, link IdentityLink) (*IdentityLink, error) {
	return s.repo.SaveIdentityLink(ctx, link)
}

// GetIdentityLink returns the link for a (provider, provider_user_id) pair.
func (s *Service) GetIdentityLink(ctx context.Context, provider, providerUserID string) (*IdentityLink, error) {
	return s.repo.GetIdentityLink(ctx, provider, providerUserID)
}
