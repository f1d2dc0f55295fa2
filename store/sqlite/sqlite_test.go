package sqlite_test

// =============================================================================
// SQLITE STORE TESTS
// =============================================================================
//
// Exercise the persistence contract against a real database file: schema
// migrations, referential actions (cascade, set-null), the CHECK-backed
// enums, multi-row atomicity and the error taxonomy mapping.

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketbook/ledger-engine/ledger"
	"github.com/pocketbook/ledger-engine/store/sqlite"
)

// newTestStore opens a fresh database file per test. A file (rather than
// :memory:) keeps every pooled connection on the same database.
func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testAccountRow(userID string) ledger.Account {
	now := time.Now().UTC().Truncate(time.Second)
	return ledger.Account{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           "checking",
		Type:           ledger.AccountBank,
		Currency:       "USD",
		InitialBalance: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func testTransactionRow(accountID string, txType ledger.TransactionType, amount int64, date time.Time) ledger.Transaction {
	now := time.Now().UTC().Truncate(time.Second)
	return ledger.Transaction{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Type:      txType,
		Amount:    decimal.NewFromInt(amount),
		Date:      date,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)

	// New already migrated; running again is a no-op.
	require.NoError(t, s.Migrate(context.Background()))
}

func TestMigrate_DownAndUp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// WHEN rolling all the way back
	require.NoError(t, s.MigrateDown(ctx, 0))

	// THEN the schema is gone
	acct := testAccountRow("user-1")
	require.Error(t, s.CreateAccount(ctx, acct))

	// AND migrating back up restores it
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.CreateAccount(ctx, acct))
}

func TestAccounts_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acct := testAccountRow("user-1")
	acct.InitialBalance = decimal.RequireFromString("250.50")
	acct.Note = "primary"
	require.NoError(t, s.CreateAccount(ctx, acct))

	got, err := s.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, acct.ID, got.ID)
	assert.Equal(t, acct.UserID, got.UserID)
	assert.Equal(t, acct.Name, got.Name)
	assert.Equal(t, acct.Type, got.Type)
	assert.Equal(t, acct.Currency, got.Currency)
	assert.Equal(t, acct.Note, got.Note)
	assert.True(t, acct.InitialBalance.Equal(got.InitialBalance))
	assert.True(t, acct.CreatedAt.Equal(got.CreatedAt))

	accounts, err := s.ListAccounts(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	accounts, err = s.ListAccounts(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestGetAccount_MissingReturnsNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetAccount(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreateAccount_DuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acct := testAccountRow("user-1")
	require.NoError(t, s.CreateAccount(ctx, acct))

	err := s.CreateAccount(ctx, acct)
	require.ErrorIs(t, err, ledger.ErrConstraint)
}

func TestCreateAccount_EnumCheck(t *testing.T) {
	s := newTestStore(t)

	acct := testAccountRow("user-1")
	acct.Type = "wallet"
	err := s.CreateAccount(context.Background(), acct)

	var cerr *ledger.ConstraintError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "check", cerr.Constraint)
}

func TestDeleteAccount_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acct := testAccountRow("user-1")
	require.NoError(t, s.CreateAccount(ctx, acct))
	tx := testTransactionRow(acct.ID, ledger.TxIncome, 10, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.CreateTransaction(ctx, tx))

	require.NoError(t, s.DeleteAccount(ctx, acct.ID))

	gotTx, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Nil(t, gotTx, "cascade must remove the account's transactions")

	err = s.DeleteAccount(ctx, acct.ID)
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestDeleteCategory_NullsReferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acct := testAccountRow("user-1")
	require.NoError(t, s.CreateAccount(ctx, acct))

	now := time.Now().UTC().Truncate(time.Second)
	cat := ledger.Category{
		ID:        uuid.NewString(),
		Name:      "groceries",
		Type:      ledger.CategoryExpense,
		Color:     "#00ff00",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateCategory(ctx, cat))

	tx := testTransactionRow(acct.ID, ledger.TxExpense, 30, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	tx.CategoryID = cat.ID
	require.NoError(t, s.CreateTransaction(ctx, tx))

	require.NoError(t, s.DeleteCategory(ctx, cat.ID))

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	require.NotNil(t, got, "the transaction must survive its category")
	assert.Empty(t, got.CategoryID)
}

func TestCreateTransaction_ForeignKey(t *testing.T) {
	s := newTestStore(t)

	tx := testTransactionRow("no-such-account", ledger.TxIncome, 10, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	err := s.CreateTransaction(context.Background(), tx)

	var cerr *ledger.ConstraintError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "foreign_key", cerr.Constraint)
}

func TestCreateTransaction_AmountCheck(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acct := testAccountRow("user-1")
	require.NoError(t, s.CreateAccount(ctx, acct))

	tx := testTransactionRow(acct.ID, ledger.TxIncome, 10, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	tx.Amount = decimal.Zero
	err := s.CreateTransaction(ctx, tx)
	require.ErrorIs(t, err, ledger.ErrConstraint)
}

func TestListTransactions_OrderAndRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acct := testAccountRow("user-1")
	require.NoError(t, s.CreateAccount(ctx, acct))

	// GIVEN rows inserted out of date order
	base := time.Now().UTC().Truncate(time.Second)
	for i, day := range []int{3, 1, 2} {
		tx := testTransactionRow(acct.ID, ledger.TxIncome, 10, time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC))
		tx.CreatedAt = base.Add(time.Duration(i) * time.Second)
		tx.UpdatedAt = tx.CreatedAt
		require.NoError(t, s.CreateTransaction(ctx, tx))
	}

	txs, err := s.ListTransactions(ctx, acct.ID, ledger.DateRange{})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	for i := 1; i < len(txs); i++ {
		assert.False(t, txs[i].Date.Before(txs[i-1].Date))
	}

	// Range bounds are inclusive.
	txs, err = s.ListTransactions(ctx, acct.ID, ledger.DateRange{
		From: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestListTransactions_SameDateTieBreak(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acct := testAccountRow("user-1")
	require.NoError(t, s.CreateAccount(ctx, acct))

	// Same date, same creation second: ID is the final tie-break, so two
	// reads agree on order.
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	created := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		tx := testTransactionRow(acct.ID, ledger.TxIncome, 10, date)
		tx.CreatedAt = created
		tx.UpdatedAt = created
		require.NoError(t, s.CreateTransaction(ctx, tx))
	}

	first, err := s.ListTransactions(ctx, acct.ID, ledger.DateRange{})
	require.NoError(t, err)
	second, err := s.ListTransactions(ctx, acct.ID, ledger.DateRange{})
	require.NoError(t, err)

	require.Len(t, first, 5)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		if i > 0 {
			assert.Less(t, first[i-1].ID, first[i].ID)
		}
	}
}

func TestCreateTransactions_Atomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	from := testAccountRow("user-1")
	require.NoError(t, s.CreateAccount(ctx, from))

	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	good := testTransactionRow(from.ID, ledger.TxTransfer, 25, date)
	good.TransferID = uuid.NewString()
	good.Direction = ledger.TransferOut
	bad := testTransactionRow("no-such-account", ledger.TxTransfer, 25, date)
	bad.TransferID = good.TransferID
	bad.Direction = ledger.TransferIn

	// WHEN the second leg violates a constraint
	err := s.CreateTransactions(ctx, []ledger.Transaction{good, bad})
	require.ErrorIs(t, err, ledger.ErrConstraint)

	// THEN the first leg was rolled back with it
	got, err := s.GetTransaction(ctx, good.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteTransfer_RemovesAllLegs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	from := testAccountRow("user-1")
	to := testAccountRow("user-1")
	to.Name = "savings"
	require.NoError(t, s.CreateAccount(ctx, from))
	require.NoError(t, s.CreateAccount(ctx, to))

	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	transferID := uuid.NewString()
	out := testTransactionRow(from.ID, ledger.TxTransfer, 25, date)
	out.TransferID = transferID
	out.Direction = ledger.TransferOut
	in := testTransactionRow(to.ID, ledger.TxTransfer, 25, date)
	in.TransferID = transferID
	in.Direction = ledger.TransferIn
	require.NoError(t, s.CreateTransactions(ctx, []ledger.Transaction{out, in}))

	legs, err := s.ListTransferLegs(ctx, transferID)
	require.NoError(t, err)
	assert.Len(t, legs, 2)

	require.NoError(t, s.DeleteTransfer(ctx, transferID))

	legs, err = s.ListTransferLegs(ctx, transferID)
	require.NoError(t, err)
	assert.Empty(t, legs)

	err = s.DeleteTransfer(ctx, transferID)
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestTransactions_FieldsSurviveRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acct := testAccountRow("user-1")
	require.NoError(t, s.CreateAccount(ctx, acct))

	tx := testTransactionRow(acct.ID, ledger.TxExpense, 30, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	tx.Amount = decimal.RequireFromString("30.25")
	tx.Note = "lunch"
	tx.ReversalOf = uuid.NewString()
	require.NoError(t, s.CreateTransaction(ctx, tx))

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, tx.Type, got.Type)
	assert.True(t, tx.Amount.Equal(got.Amount))
	assert.True(t, tx.Date.Equal(got.Date))
	assert.Equal(t, tx.Note, got.Note)
	assert.Equal(t, tx.ReversalOf, got.ReversalOf)
}

func TestIdentityLinks_Upsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	link := ledger.IdentityLink{
		ID:             uuid.NewString(),
		UserID:         "user-1",
		Provider:       "google",
		ProviderUserID: "g-123",
		AccessToken:    "tok-1",
		ExpiresAt:      now.Add(time.Hour),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, s.SaveIdentityLink(ctx, link))

	// WHEN saving the same pair again under a different row ID
	replacement := link
	replacement.ID = uuid.NewString()
	replacement.AccessToken = "tok-2"
	require.NoError(t, s.SaveIdentityLink(ctx, replacement))

	// THEN the original row identity is preserved, tokens updated
	got, err := s.GetIdentityLink(ctx, "google", "g-123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, link.ID, got.ID)
	assert.Equal(t, "tok-2", got.AccessToken)
	assert.True(t, link.ExpiresAt.Equal(got.ExpiresAt))

	missing, err := s.GetIdentityLink(ctx, "github", "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
