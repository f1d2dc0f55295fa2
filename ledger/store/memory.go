// Package store provides an in-memory ledger.Store implementation for
// testing and development. It mirrors the relational semantics the engine
// depends on: account deletion cascades to transactions, category deletion
// nulls references, and multi-row inserts are atomic.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/pocketbook/ledger-engine/ledger"
)

// Memory is a thread-safe in-memory ledger.Store.
type Memory struct {
	mu           sync.RWMutex
	accounts     map[string]ledger.Account
	categories   map[string]ledger.Category
	transactions map[string]ledger.Transaction
	identities   map[identityKey]ledger.IdentityLink
}

type identityKey struct {
	Provider       string
	ProviderUserID string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		accounts:     make(map[string]ledger.Account),
		categories:   make(map[string]ledger.Category),
		transactions: make(map[string]ledger.Transaction),
		identities:   make(map[identityKey]ledger.IdentityLink),
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Memory) CreateAccount(_ context.Context, a ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[a.ID]; exists {
		return &ledger.ConstraintError{Constraint: "unique_account", Detail: a.ID}
	}
	m.accounts[a.ID] = a
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id string) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) ListAccounts(_ context.Context, userID string) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var accounts []ledger.Account
	for _, a := range m.accounts {
		if a.UserID == userID {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })
	return accounts, nil
}

// DeleteAccount cascades: the account's transactions are removed with it.
func (m *Memory) DeleteAccount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[id]; !ok {
		return &ledger.NotFoundError{Kind: "account", ID: id}
	}
	delete(m.accounts, id)
	for txID, tx := range m.transactions {
		if tx.AccountID == id {
			delete(m.transactions, txID)
		}
	}
	return nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (m *Memory) CreateCategory(_ context.Context, c ledger.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.categories[c.ID]; exists {
		return &ledger.ConstraintError{Constraint: "unique_category", Detail: c.ID}
	}
	m.categories[c.ID] = c
	return nil
}

func (m *Memory) GetCategory(_ context.Context, id string) (*ledger.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.categories[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) ListCategories(_ context.Context) ([]ledger.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	categories := make([]ledger.Category, 0, len(m.categories))
	for _, c := range m.categories {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

// DeleteCategory nulls transaction references instead of cascading.
func (m *Memory) DeleteCategory(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.categories[id]; !ok {
		return &ledger.NotFoundError{Kind: "category", ID: id}
	}
	delete(m.categories, id)
	for txID, tx := range m.transactions {
		if tx.CategoryID == id {
			tx.CategoryID = ""
			m.transactions[txID] = tx
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) CreateTransaction(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(tx)
}

// CreateTransactions inserts all rows atomically: references are checked
// before any row is written.
func (m *Memory) CreateTransactions(_ context.Context, txs []ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tx := range txs {
		if _, ok := m.accounts[tx.AccountID]; !ok {
			return &ledger.ConstraintError{Constraint: "foreign_key", Detail: "account " + tx.AccountID}
		}
		if _, exists := m.transactions[tx.ID]; exists {
			return &ledger.ConstraintError{Constraint: "unique_transaction", Detail: tx.ID}
		}
	}
	for _, tx := range txs {
		if err := m.createLocked(tx); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) createLocked(tx ledger.Transaction) error {
	if _, exists := m.transactions[tx.ID]; exists {
		return &ledger.ConstraintError{Constraint: "unique_transaction", Detail: tx.ID}
	}
	if _, ok := m.accounts[tx.AccountID]; !ok {
		return &ledger.ConstraintError{Constraint: "foreign_key", Detail: "account " + tx.AccountID}
	}
	m.transactions[tx.ID] = tx
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, id string) (*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.transactions[id]
	if !ok {
		return nil, nil
	}
	return &tx, nil
}

func (m *Memory) ListTransactions(_ context.Context, accountID string, r ledger.DateRange) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var txs []ledger.Transaction
	for _, tx := range m.transactions {
		if tx.AccountID == accountID && r.Contains(tx.Date) {
			txs = append(txs, tx)
		}
	}
	sortTransactions(txs)
	return txs, nil
}

func (m *Memory) ListTransferLegs(_ context.Context, transferID string) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var legs []ledger.Transaction
	for _, tx := range m.transactions {
		if tx.TransferID == transferID {
			legs = append(legs, tx)
		}
	}
	sortTransactions(legs)
	return legs, nil
}

func (m *Memory) DeleteTransaction(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transactions[id]; !ok {
		return &ledger.NotFoundError{Kind: "transaction", ID: id}
	}
	delete(m.transactions, id)
	return nil
}

func (m *Memory) DeleteTransfer(_ context.Context, transferID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := false
	for id, tx := range m.transactions {
		if tx.TransferID == transferID {
			delete(m.transactions, id)
			found = true
		}
	}
	if !found {
		return &ledger.NotFoundError{Kind: "transaction", ID: transferID}
	}
	return nil
}

// =============================================================================
// IDENTITY LINKS
// =============================================================================

func (m *Memory) SaveIdentityLink(_ context.Context, link ledger.IdentityLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := identityKey{Provider: link.Provider, ProviderUserID: link.ProviderUserID}
	if existing, ok := m.identities[k]; ok {
		link.ID = existing.ID
		link.CreatedAt = existing.CreatedAt
	}
	m.identities[k] = link
	return nil
}

func (m *Memory) GetIdentityLink(_ context.Context, provider, providerUserID string) (*ledger.IdentityLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, ok := m.identities[identityKey{Provider: provider, ProviderUserID: providerUserID}]
	if !ok {
		return nil, nil
	}
	return &link, nil
}

// sortTransactions applies the contract ordering: date ascending, then
// creation time ascending, then ID as the final tie-break.
func sortTransactions(txs []ledger.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.Before(txs[j].CreatedAt)
		}
		return txs[i].ID < txs[j].ID
	})
}
