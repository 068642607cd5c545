package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankcore/pkg/ledger"
	"bankcore/pkg/models"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("not-a-hash", "s3cret"))
}

func TestTokenRoundtrip(t *testing.T) {
	a := New("test-secret", time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleAdmin}

	token, err := a.GenerateToken(user)
	require.NoError(t, err)

	ident, err := a.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, ident.UserID)
	assert.Equal(t, models.RoleAdmin, ident.Role)
}

func TestParseTokenWrongSecret(t *testing.T) {
	a := New("test-secret", time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleUser}

	token, err := a.GenerateToken(user)
	require.NoError(t, err)

	_, err = New("other-secret", time.Hour).ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	a := New("test-secret", -time.Minute)
	user := &models.User{ID: uuid.New(), Role: models.RoleUser}

	token, err := a.GenerateToken(user)
	require.NoError(t, err)

	_, err = a.ParseToken(token)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	a := New("test-secret", time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleUser}
	token, err := a.GenerateToken(user)
	require.NoError(t, err)

	var got ledger.Identity
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFrom(r.Context())
		require.True(t, ok)
		got = ident
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, user.ID, got.UserID)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
