/*
Package sqlite provides the SQLite-backed ledger.Store implementation.

PURPOSE:
  Implements the persistence contract over SQLite. The same patterns apply to
  PostgreSQL with minor dialect differences.

SCHEMA INVARIANTS (enforced here, backstopping repository validation):
  - Three enumerated domains as CHECK constraints (account/transaction/
    category type)
  - transactions.account_id -> accounts.id with ON DELETE CASCADE
  - transactions.category_id -> categories.id, nullable, ON DELETE SET NULL
  - amount > 0 CHECK constraint

ERROR MAPPING:
  Unique/foreign-key/check violations surface as *ledger.ConstraintError; a
  locked or busy database surfaces as ledger.ErrStoreUnavailable, the one
  error kind the repository retries.

WAL MODE:
  Opened with WAL so readers never block on the single writer, plus a busy
  timeout before a write attempt gives up and reports the store unavailable.

MIGRATIONS:
  Versioned, additive, reversible; see migrations.go. New() migrates to the
  expected schema version on startup.

SEE ALSO:
  - ledger/store.go: Interface definition and ordering contract
  - ledger/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/pocketbook/ledger-engine/ledger"
)

const (
	timeFormat = time.RFC3339
	dateFormat = "2006-01-02"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates it to the
// expected schema version. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, a ledger.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, name, type, currency, initial_balance, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, string(a.Type), a.Currency,
		a.InitialBalance.String(), nullString(a.Note),
		a.CreatedAt.Format(timeFormat), a.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return mapError("insert account", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*ledger.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, type, currency, initial_balance, note, created_at, updated_at
		FROM accounts WHERE id = ?`, id)

	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("get account", err)
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, userID string) ([]ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, type, currency, initial_balance, note, created_at, updated_at
		FROM accounts WHERE user_id = ? ORDER BY name, id`, userID)
	if err != nil {
		return nil, mapError("list accounts", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, mapError("scan account", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// DeleteAccount hard-deletes the account; the transactions FK cascades.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "accounts", "account", id)
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (s *Store) CreateCategory(ctx context.Context, c ledger.Category) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, type, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, string(c.Type), nullString(c.Color),
		c.CreatedAt.Format(timeFormat), c.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return mapError("insert category", err)
	}
	return nil
}

func (s *Store) GetCategory(ctx context.Context, id string) (*ledger.Category, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, color, created_at, updated_at
		FROM categories WHERE id = ?`, id)

	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("get category", err)
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]ledger.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, color, created_at, updated_at
		FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, mapError("list categories", err)
	}
	defer rows.Close()

	var categories []ledger.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, mapError("scan category", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// DeleteCategory removes the category; transaction references become null
// via ON DELETE SET NULL.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "categories", "category", id)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

const transactionColumns = `id, account_id, type, amount, category_id, date, note,
	transfer_id, direction, reversal_of, created_at, updated_at`

func (s *Store) CreateTransaction(ctx context.Context, tx ledger.Transaction) error {
	return s.insertTransaction(ctx, s.db, tx)
}

// CreateTransactions inserts all rows inside one database transaction:
// either every leg is visible or none is.
func (s *Store) CreateTransactions(ctx context.Context, txs []ledger.Transaction) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError("begin transaction", err)
	}
	defer sqlTx.Rollback()

	for _, tx := range txs {
		if err := s.insertTransaction(ctx, sqlTx, tx); err != nil {
			return err
		}
	}
	if err := sqlTx.Commit(); err != nil {
		return mapError("commit transaction", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertTransaction(ctx context.Context, db execer, tx ledger.Transaction) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions
		(id, account_id, type, amount, category_id, date, note, transfer_id, direction, reversal_of, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.AccountID, string(tx.Type), tx.Amount.String(),
		nullString(tx.CategoryID), tx.Date.Format(dateFormat), nullString(tx.Note),
		nullString(tx.TransferID), nullString(string(tx.Direction)), nullString(tx.ReversalOf),
		tx.CreatedAt.Format(timeFormat), tx.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return mapError("insert transaction", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)

	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("get transaction", err)
	}
	return tx, nil
}

// ListTransactions returns the account's rows ordered by date, then creation
// time, then ID - the deterministic tie-break balance folds rely on.
func (s *Store) ListTransactions(ctx context.Context, accountID string, r ledger.DateRange) ([]ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE account_id = ?`
	args := []any{accountID}

	if !r.From.IsZero() {
		query += ` AND date >= ?`
		args = append(args, r.From.Format(dateFormat))
	}
	if !r.To.IsZero() {
		query += ` AND date <= ?`
		args = append(args, r.To.Format(dateFormat))
	}
	query += ` ORDER BY date ASC, created_at ASC, id ASC`

	return s.queryTransactions(ctx, query, args...)
}

func (s *Store) ListTransferLegs(ctx context.Context, transferID string) ([]ledger.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE transfer_id = ?
		 ORDER BY date ASC, created_at ASC, id ASC`, transferID)
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "transactions", "transaction", id)
}

func (s *Store) DeleteTransfer(ctx context.Context, transferID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE transfer_id = ?`, transferID)
	if err != nil {
		return mapError("delete transfer", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return mapError("delete transfer", err)
	}
	if affected == 0 {
		return &ledger.NotFoundError{Kind: "transaction", ID: transferID}
	}
	return nil
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("query transactions", err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, mapError("scan transaction", err)
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

// =============================================================================
// IDENTITY LINKS
// =============================================================================

func (s *Store) SaveIdentityLink(ctx context.Context, link ledger.IdentityLink) error {
	var expiresAt sql.NullString
	if !link.ExpiresAt.IsZero() {
		expiresAt = sql.NullString{String: link.ExpiresAt.Format(timeFormat), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identities
		(id, user_id, provider, provider_user_id, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, provider_user_id) DO UPDATE SET
			user_id = excluded.user_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		link.ID, link.UserID, link.Provider, link.ProviderUserID,
		nullString(link.AccessToken), nullString(link.RefreshToken), expiresAt,
		link.CreatedAt.Format(timeFormat), link.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return mapError("save identity link", err)
	}
	return nil
}

func (s *Store) GetIdentityLink(ctx context.Context, provider, providerUserID string) (*ledger.IdentityLink, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, provider, provider_user_id, access_token, refresh_token, expires_at, created_at, updated_at
		FROM identities WHERE provider = ? AND provider_user_id = ?`,
		provider, providerUserID)

	var (
		link                      ledger.IdentityLink
		accessToken, refreshToken sql.NullString
		expiresAt                 sql.NullString
		createdAt, updatedAt      string
	)
	err := row.Scan(&link.ID, &link.UserID, &link.Provider, &link.ProviderUserID,
		&accessToken, &refreshToken, &expiresAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("get identity link", err)
	}

	link.AccessToken = accessToken.String
	link.RefreshToken = refreshToken.String
	if expiresAt.Valid {
		link.ExpiresAt, _ = time.Parse(timeFormat, expiresAt.String)
	}
	link.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	link.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	return &link, nil
}

// =============================================================================
// SCANNING & ERROR MAPPING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*ledger.Account, error) {
	var (
		a                    ledger.Account
		accountType          string
		initialBalance       string
		note                 sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &accountType, &a.Currency,
		&initialBalance, &note, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a.Type = ledger.AccountType(accountType)
	a.InitialBalance = mustDecimal(initialBalance)
	a.Note = note.String
	a.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	a.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	return &a, nil
}

func scanCategory(row rowScanner) (*ledger.Category, error) {
	var (
		c                    ledger.Category
		categoryType         string
		color                sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&c.ID, &c.Name, &categoryType, &color, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.Type = ledger.CategoryType(categoryType)
	c.Color = color.String
	c.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	c.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	return &c, nil
}

func scanTransaction(row rowScanner) (*ledger.Transaction, error) {
	var (
		tx                                      ledger.Transaction
		txType, amount, date                    string
		categoryID, note, transferID, direction sql.NullString
		reversalOf                              sql.NullString
		createdAt, updatedAt                    string
	)
	err := row.Scan(&tx.ID, &tx.AccountID, &txType, &amount, &categoryID, &date,
		&note, &transferID, &direction, &reversalOf, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	tx.Type = ledger.TransactionType(txType)
	tx.Amount = mustDecimal(amount)
	tx.CategoryID = categoryID.String
	tx.Date, _ = time.Parse(dateFormat, date)
	tx.Note = note.String
	tx.TransferID = transferID.String
	tx.Direction = ledger.TransferDirection(direction.String)
	tx.ReversalOf = reversalOf.String
	tx.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	tx.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	return &tx, nil
}

func (s *Store) deleteByID(ctx context.Context, table, kind, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return mapError("delete "+kind, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return mapError("delete "+kind, err)
	}
	if affected == 0 {
		return &ledger.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// mapError translates driver errors into the engine's taxonomy.
func mapError(op string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return &ledger.ConstraintError{Constraint: "unique", Detail: msg}
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return &ledger.ConstraintError{Constraint: "foreign_key", Detail: msg}
	case strings.Contains(msg, "CHECK constraint failed"):
		return &ledger.ConstraintError{Constraint: "check", Detail: msg}
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "database table is locked"):
		return fmt.Errorf("failed to %s: %w", op, ledger.ErrStoreUnavailable)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
