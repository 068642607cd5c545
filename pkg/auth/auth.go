// Package auth issues and verifies bearer tokens and attaches the
// authenticated identity to request contexts. The core engines trust
// the identity this layer supplies.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"bankcore/pkg/ledger"
	"bankcore/pkg/models"
)

type contextKey struct{}

var identityKey contextKey

// Claims is the token payload: who the caller is and what role they
// held at login.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Auth signs and verifies tokens with a shared HMAC secret.
type Auth struct {
	secret []byte
	expiry time.Duration
}

func New(secret string, expiry time.Duration) *Auth {
	return &Auth{secret: []byte(secret), expiry: expiry}
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword verifies a plaintext password against its bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken issues a signed token for the user.
func (a *Auth) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies a token string and returns the identity it carries.
func (a *Auth) ParseToken(tokenString string) (ledger.Identity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return ledger.Identity{}, fmt.Errorf("invalid token: %w", err)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ledger.Identity{}, fmt.Errorf("invalid token subject: %w", err)
	}
	if !claims.Role.Valid() {
		return ledger.Identity{}, fmt.Errorf("invalid token role %q", claims.Role)
	}
	return ledger.Identity{UserID: userID, Role: claims.Role}, nil
}

// Middleware authenticates the Authorization bearer header and stores
// the identity in the request context. Requests without a valid token
// get 401.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}
		ident, err := a.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
	})
}

// WithIdentity returns a context carrying the identity.
func WithIdentity(ctx context.Context, ident ledger.Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// IdentityFrom extracts the authenticated identity from a context.
func IdentityFrom(ctx context.Context) (ledger.Identity, bool) {
	ident, ok := ctx.Value(identityKey).(ledger.Identity)
	return ident, ok
}
