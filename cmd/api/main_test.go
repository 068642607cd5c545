package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankcore/pkg/auth"
	"bankcore/pkg/models"
	"bankcore/pkg/store"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	a := auth.New("test-secret", time.Hour)
	return NewServer(s, a, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

// registerUser signs up a regular user over HTTP and returns its token
// and id.
func registerUser(t *testing.T, srv *Server, router http.Handler, balance float64) (string, uuid.UUID) {
	t.Helper()
	name := "user" + uuid.NewString()[:8]
	rec, body := doJSON(t, router, http.MethodPost, "/auth/register", "", map[string]any{
		"username":        name,
		"email":           name + "@example.com",
		"password":        "password123",
		"initial_balance": balance,
	})
	require.Equal(t, http.StatusCreated, rec.Code, body["message"])

	user := body["user"].(map[string]any)
	id, err := uuid.Parse(user["id"].(string))
	require.NoError(t, err)
	return body["token"].(string), id
}

// seedAdmin creates an admin account through the engine and mints a
// token for it. Registration over HTTP only produces regular users.
func seedAdmin(t *testing.T, srv *Server) string {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)
	name := "admin" + uuid.NewString()[:8]
	user, err := srv.ledger.Register(context.Background(), name, name+"@example.com", hash, models.RoleAdmin, decimal.Zero)
	require.NoError(t, err)

	token, err := srv.auth.GenerateToken(user)
	require.NoError(t, err)
	return token
}

func TestRegisterAndLogin(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()

	rec, body := doJSON(t, router, http.MethodPost, "/auth/register", "", map[string]any{
		"username":        "alice",
		"email":           "alice@example.com",
		"password":        "password123",
		"initial_balance": 500,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, body["token"])

	rec, body = doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]any{
		"username": "alice",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	token := body["token"].(string)

	rec, body = doJSON(t, router, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "500", user["balance"])
}

func TestLoginBadPassword(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()
	registerUser(t, srv, router, 0)

	rec, _ := doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]any{
		"username": "nobody",
		"password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()

	rec, _ := doJSON(t, router, http.MethodPost, "/auth/register", "", map[string]any{
		"username": "ab",
		"email":    "not-an-email",
		"password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()

	rec, _ := doJSON(t, router, http.MethodGet, "/loans", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoanLifecycle(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()
	userToken, _ := registerUser(t, srv, router, 0)
	adminToken := seedAdmin(t, srv)

	rec, body := doJSON(t, router, http.MethodPost, "/loans", userToken, map[string]any{
		"loan_type":     "personal",
		"amount":        1000,
		"term_months":   12,
		"interest_rate": 12,
	})
	require.Equal(t, http.StatusCreated, rec.Code, body["message"])
	loan := body["loan"].(map[string]any)
	loanID := loan["id"].(string)
	assert.Equal(t, "pending", loan["status"])

	// a plain user cannot approve, not even their own loan
	rec, _ = doJSON(t, router, http.MethodPost, "/loans/"+loanID+"/approve", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body = doJSON(t, router, http.MethodPost, "/loans/"+loanID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, body["message"])

	// approval credited the principal
	rec, body = doJSON(t, router, http.MethodGet, "/auth/me", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1000", body["user"].(map[string]any)["balance"])

	rec, body = doJSON(t, router, http.MethodPost, "/loans/repay", userToken, map[string]any{
		"loan_id": loanID,
		"amount":  100,
	})
	require.Equal(t, http.StatusOK, rec.Code, body["message"])

	rec, body = doJSON(t, router, http.MethodGet, "/loans", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	loans := body["loans"].([]any)
	require.Len(t, loans, 1)
	assert.Equal(t, "100", loans[0].(map[string]any)["amount_paid"])
}

func TestRepayUnapprovedLoanConflicts(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()
	userToken, _ := registerUser(t, srv, router, 100)

	rec, body := doJSON(t, router, http.MethodPost, "/loans", userToken, map[string]any{
		"loan_type":     "personal",
		"amount":        1000,
		"term_months":   12,
		"interest_rate": 12,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	loanID := body["loan"].(map[string]any)["id"].(string)

	rec, _ = doJSON(t, router, http.MethodPost, "/loans/repay", userToken, map[string]any{
		"loan_id": loanID,
		"amount":  50,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInvestmentLifecycle(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()
	userToken, _ := registerUser(t, srv, router, 1000)

	rec, body := doJSON(t, router, http.MethodPost, "/investments", userToken, map[string]any{
		"investment_type": "fixed_deposit",
		"amount":          1000,
		"frequency":       "monthly",
		"duration_months": 12,
		"expected_return": 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, body["message"])
	inv := body["investment"].(map[string]any)
	invID := inv["id"].(string)
	assert.Equal(t, "active", inv["status"])
	assert.Equal(t, "1100", inv["maturity_amount"])

	rec, body = doJSON(t, router, http.MethodPost, "/investments/"+invID+"/cancel", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, body["message"])
	assert.Equal(t, "950", body["refund"])

	rec, body = doJSON(t, router, http.MethodGet, "/auth/me", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "950", body["user"].(map[string]any)["balance"])
}

func TestInvestmentInsufficientFunds(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()
	userToken, _ := registerUser(t, srv, router, 50)

	rec, _ := doJSON(t, router, http.MethodPost, "/investments", userToken, map[string]any{
		"investment_type": "fixed_deposit",
		"amount":          1000,
		"frequency":       "monthly",
		"duration_months": 12,
		"expected_return": 10,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransfer(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()
	senderToken, senderID := registerUser(t, srv, router, 500)
	_, receiverID := registerUser(t, srv, router, 0)

	rec, body := doJSON(t, router, http.MethodPost, "/payments/transfer", senderToken, map[string]any{
		"receiver_id": receiverID.String(),
		"amount":      200,
		"reason":      "rent",
	})
	require.Equal(t, http.StatusOK, rec.Code, body["message"])

	rec, body = doJSON(t, router, http.MethodGet, "/auth/me", senderToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "300", body["user"].(map[string]any)["balance"])

	// self-transfer is rejected
	rec, _ = doJSON(t, router, http.MethodPost, "/payments/transfer", senderToken, map[string]any{
		"receiver_id": senderID.String(),
		"amount":      10,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// unknown receiver
	rec, _ = doJSON(t, router, http.MethodPost, "/payments/transfer", senderToken, map[string]any{
		"receiver_id": uuid.NewString(),
		"amount":      10,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = doJSON(t, router, http.MethodGet, "/payments", senderToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["payments"].([]any), 1)
}

func TestAdminEndpoints(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()
	userToken, userID := registerUser(t, srv, router, 0)
	adminToken := seedAdmin(t, srv)

	// stats are admin only
	rec, _ := doJSON(t, router, http.MethodGet, "/admin/dashboard-stats", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := doJSON(t, router, http.MethodGet, "/admin/dashboard-stats", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(2), stats["total_users"])

	rec, body = doJSON(t, router, http.MethodGet, "/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["total"])

	// settings lifecycle
	rec, _ = doJSON(t, router, http.MethodPut, "/admin/settings/max_loan", adminToken, map[string]any{
		"value":       "10000",
		"description": "loan ceiling",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = doJSON(t, router, http.MethodGet, "/admin/settings", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	settings := body["settings"].([]any)
	require.Len(t, settings, 1)
	assert.Equal(t, "10000", settings[0].(map[string]any)["setting_value"])

	rec, _ = doJSON(t, router, http.MethodPut, "/admin/settings/max_loan", userToken, map[string]any{
		"value": "1",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = doJSON(t, router, http.MethodDelete, "/admin/settings/max_loan", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// a user with no records can be deleted, one with payments cannot
	rec, _ = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/admin/users/%s", userID), adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
