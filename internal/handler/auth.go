package handler

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clicker-admin/internal/config"
	"github.com/clicker-admin/internal/domain"
	"github.com/clicker-admin/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const roleAdmin = "admin"

// Claims are the admin session token claims
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Authenticator issues and validates admin session tokens
type Authenticator struct {
	secret    []byte
	ttl       time.Duration
	username  string
	loginCode string
	now       func() time.Time
}

// NewAuthenticator creates an authenticator for the configured operator
func NewAuthenticator(cfg *config.AdminConfig) *Authenticator {
	return &Authenticator{
		secret:    []byte(cfg.JWTSecret),
		ttl:       cfg.TokenTTL,
		username:  cfg.Username,
		loginCode: cfg.LoginCode,
		now:       time.Now,
	}
}

// Login checks operator credentials and returns a signed token.
func (a *Authenticator) Login(username, loginCode string) (string, time.Time, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	codeOK := subtle.ConstantTimeCompare([]byte(loginCode), []byte(a.loginCode)) == 1
	if !userOK || !codeOK {
		return "", time.Time{}, domain.ErrUnauthorized
	}

	now := a.now()
	expires := now.Add(a.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.New().String(),
		},
		Role: roleAdmin,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return token, expires, nil
}

// Validate parses a token and checks its signature, expiry and role.
func (a *Authenticator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Role != roleAdmin {
		return nil, fmt.Errorf("%w: invalid token claims", domain.ErrUnauthorized)
	}
	return claims, nil
}

// bearerToken extracts the token from the Authorization header, falling
// back to the token query parameter for websocket upgrades.
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
		return "", fmt.Errorf("%w: missing Authorization header", domain.ErrUnauthorized)
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("%w: invalid Authorization format", domain.ErrUnauthorized)
	}
	return parts[1], nil
}

type claimsKey struct{}

// ClaimsFromContext returns the authenticated session claims, if any.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims
}

// authenticate rejects requests without a valid admin token and tags the
// request context with the operator.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			h.writeError(w, http.StatusUnauthorized, err)
			return
		}
		claims, err := h.auth.Validate(token)
		if err != nil {
			h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		ctx = service.WithActor(ctx, "admin:"+claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
