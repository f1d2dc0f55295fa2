package api_test

// =============================================================================
// API TESTS
// =============================================================================
//
// Drive the router with httptest over the in-memory store: the envelope
// shape, the error-to-status mapping and the create -> read -> balance flow
// a client actually performs.

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketbook/ledger-engine/api"
	"github.com/pocketbook/ledger-engine/ledger"
	"github.com/pocketbook/ledger-engine/ledger/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo := ledger.NewRepository(store.NewMemory())
	cache := ledger.NewBalanceCache(64, 0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := ledger.NewService(repo, cache, logger)

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(svc, logger), 5*time.Second))
	t.Cleanup(srv.Close)
	return srv
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func do(t *testing.T, method, url string, body any) (int, apiResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp.StatusCode, parsed
}

func decodeData(t *testing.T, data json.RawMessage, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(data, out))
}

func createAccount(t *testing.T, baseURL string) string {
	t.Helper()
	status, resp := do(t, http.MethodPost, baseURL+"/api/accounts", map[string]string{
		"user_id":  "user-1",
		"name":     "checking",
		"type":     "bank",
		"currency": "USD",
	})
	require.Equal(t, http.StatusCreated, status)
	require.True(t, resp.Success)

	var account struct {
		ID string `json:"id"`
	}
	decodeData(t, resp.Data, &account)
	require.NotEmpty(t, account.ID)
	return account.ID
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	status, resp := do(t, http.MethodGet, srv.URL+"/api/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
}

func TestAccountTransactionBalanceFlow(t *testing.T) {
	srv := newTestServer(t)
	accountID := createAccount(t, srv.URL)

	// WHEN recording income 100, income 50, expense 30
	for _, tx := range []map[string]string{
		{"account_id": accountID, "type": "income", "amount": "100", "date": "2024-03-01"},
		{"account_id": accountID, "type": "income", "amount": "50", "date": "2024-03-05"},
		{"account_id": accountID, "type": "expense", "amount": "30", "date": "2024-03-10"},
	} {
		status, resp := do(t, http.MethodPost, srv.URL+"/api/transactions", tx)
		require.Equal(t, http.StatusCreated, status)
		require.True(t, resp.Success)
	}

	// THEN the derived balance is 120.00
	status, resp := do(t, http.MethodGet, srv.URL+"/api/accounts/"+accountID+"/balance", nil)
	require.Equal(t, http.StatusOK, status)

	var balance struct {
		Balance  string `json:"balance"`
		Currency string `json:"currency"`
	}
	decodeData(t, resp.Data, &balance)
	assert.Equal(t, "120.00", balance.Balance)
	assert.Equal(t, "USD", balance.Currency)

	// AND the as-of balance stops at the cutoff
	status, resp = do(t, http.MethodGet,
		srv.URL+"/api/accounts/"+accountID+"/balance?as_of=2024-03-05", nil)
	require.Equal(t, http.StatusOK, status)
	decodeData(t, resp.Data, &balance)
	assert.Equal(t, "150.00", balance.Balance)

	// AND the history lists all three in date order
	status, resp = do(t, http.MethodGet,
		srv.URL+"/api/accounts/"+accountID+"/transactions", nil)
	require.Equal(t, http.StatusOK, status)

	var txs []struct {
		Date string `json:"date"`
	}
	decodeData(t, resp.Data, &txs)
	require.Len(t, txs, 3)
	assert.Equal(t, "2024-03-01", txs[0].Date)
	assert.Equal(t, "2024-03-10", txs[2].Date)
}

func TestCreateTransaction_ValidationMapsTo400(t *testing.T) {
	srv := newTestServer(t)
	accountID := createAccount(t, srv.URL)

	status, resp := do(t, http.MethodPost, srv.URL+"/api/transactions", map[string]string{
		"account_id": accountID,
		"type":       "income",
		"amount":     "0",
		"date":       "2024-03-01",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestUnknownAccountMapsTo404(t *testing.T) {
	srv := newTestServer(t)

	status, resp := do(t, http.MethodGet, srv.URL+"/api/accounts/no-such-id/balance", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, resp.Success)
}

func TestCategoryMismatchMapsTo409(t *testing.T) {
	srv := newTestServer(t)
	accountID := createAccount(t, srv.URL)

	status, resp := do(t, http.MethodPost, srv.URL+"/api/categories", map[string]string{
		"name": "groceries",
		"type": "expense",
	})
	require.Equal(t, http.StatusCreated, status)

	var category struct {
		ID string `json:"id"`
	}
	decodeData(t, resp.Data, &category)

	status, resp = do(t, http.MethodPost, srv.URL+"/api/transactions", map[string]string{
		"account_id":  accountID,
		"type":        "income",
		"amount":      "10",
		"category_id": category.ID,
		"date":        "2024-03-01",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, resp.Success)
}

func TestTransferEndpoint(t *testing.T) {
	srv := newTestServer(t)
	fromID := createAccount(t, srv.URL)

	status, resp := do(t, http.MethodPost, srv.URL+"/api/accounts", map[string]string{
		"user_id":  "user-1",
		"name":     "savings",
		"type":     "bank",
		"currency": "USD",
	})
	require.Equal(t, http.StatusCreated, status)
	var to struct {
		ID string `json:"id"`
	}
	decodeData(t, resp.Data, &to)

	status, resp = do(t, http.MethodPost, srv.URL+"/api/transfers", map[string]string{
		"from_account_id": fromID,
		"to_account_id":   to.ID,
		"amount":          "25",
		"date":            "2024-03-01",
	})
	require.Equal(t, http.StatusCreated, status)

	var legs []struct {
		AccountID  string `json:"account_id"`
		Direction  string `json:"direction"`
		TransferID string `json:"transfer_id"`
	}
	decodeData(t, resp.Data, &legs)
	require.Len(t, legs, 2)
	assert.Equal(t, "out", legs[0].Direction)
	assert.Equal(t, "in", legs[1].Direction)
	assert.Equal(t, legs[0].TransferID, legs[1].TransferID)

	// Both balances reflect the transfer.
	status, resp = do(t, http.MethodGet, srv.URL+"/api/accounts/"+fromID+"/balance", nil)
	require.Equal(t, http.StatusOK, status)
	var balance struct {
		Balance string `json:"balance"`
	}
	decodeData(t, resp.Data, &balance)
	assert.Equal(t, "-25.00", balance.Balance)

	status, resp = do(t, http.MethodGet, srv.URL+"/api/accounts/"+to.ID+"/balance", nil)
	require.Equal(t, http.StatusOK, status)
	decodeData(t, resp.Data, &balance)
	assert.Equal(t, "25.00", balance.Balance)
}

func TestReverseEndpoint(t *testing.T) {
	srv := newTestServer(t)
	accountID := createAccount(t, srv.URL)

	status, resp := do(t, http.MethodPost, srv.URL+"/api/transactions", map[string]string{
		"account_id": accountID,
		"type":       "expense",
		"amount":     "30",
		"date":       "2024-03-01",
	})
	require.Equal(t, http.StatusCreated, status)
	var tx struct {
		ID string `json:"id"`
	}
	decodeData(t, resp.Data, &tx)

	// Reverse without a body; the note is optional.
	status, resp = do(t, http.MethodPost,
		srv.URL+"/api/transactions/"+tx.ID+"/reverse", nil)
	require.Equal(t, http.StatusCreated, status)

	var reversal struct {
		Type       string `json:"type"`
		Amount     string `json:"amount"`
		ReversalOf string `json:"reversal_of"`
	}
	decodeData(t, resp.Data, &reversal)
	assert.Equal(t, "income", reversal.Type)
	assert.Equal(t, "30.00", reversal.Amount)
	assert.Equal(t, tx.ID, reversal.ReversalOf)

	status, resp = do(t, http.MethodGet, srv.URL+"/api/accounts/"+accountID+"/balance", nil)
	require.Equal(t, http.StatusOK, status)
	var balance struct {
		Balance string `json:"balance"`
	}
	decodeData(t, resp.Data, &balance)
	assert.Equal(t, "0.00", balance.Balance)
}

func TestDeleteAccountEndpoint(t *testing.T) {
	srv := newTestServer(t)
	accountID := createAccount(t, srv.URL)

	status, _ := do(t, http.MethodDelete, srv.URL+"/api/accounts/"+accountID, nil)
	assert.Equal(t, http.StatusOK, status)

	// A second delete maps to 404.
	status, resp := do(t, http.MethodDelete, srv.URL+"/api/accounts/"+accountID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, resp.Success)
}

func TestListAccounts_RequiresUserID(t *testing.T) {
	srv := newTestServer(t)

	status, resp := do(t, http.MethodGet, srv.URL+"/api/accounts", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, resp.Success)
}

func TestIdentityEndpoints(t *testing.T) {
	srv := newTestServer(t)

	status, resp := do(t, http.MethodPut, srv.URL+"/api/identities", map[string]string{
		"user_id":          "user-1",
		"provider":         "google",
		"provider_user_id": "g-123",
		"access_token":     "secret-token",
	})
	require.Equal(t, http.StatusOK, status)
	require.True(t, resp.Success)

	// Tokens must never be echoed back.
	assert.NotContains(t, string(resp.Data), "secret-token")

	status, resp = do(t, http.MethodGet, srv.URL+"/api/identities/google/g-123", nil)
	require.Equal(t, http.StatusOK, status)

	var link struct {
		UserID   string `json:"user_id"`
		Provider string `json:"provider"`
	}
	decodeData(t, resp.Data, &link)
	assert.Equal(t, "user-1", link.UserID)
	assert.Equal(t, "google", link.Provider)

	status, resp = do(t, http.MethodGet, srv.URL+"/api/identities/github/nobody", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
