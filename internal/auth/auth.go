// Package auth guards the admin API with a bcrypt credential check and
// HS256 bearer tokens.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/iwvelando/dealership-quote/internal/config"
	"github.com/iwvelando/dealership-quote/pkg/constants"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// RoleAdmin is the role claim required by the admin API.
const RoleAdmin = "admin"

const defaultTokenTTL = time.Hour

var (
	// ErrDisabled is returned by New when the secret or password hash is missing.
	ErrDisabled = errors.New("admin authentication is not configured")
	// ErrInvalidCredentials is returned by Login for any username or password mismatch.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Claims is the payload of an admin token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type ctxKey struct{}

// ClaimsFromContext returns the claims stored by Middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ctxKey{}).(*Claims)
	return claims, ok
}

// Authenticator issues and verifies admin tokens.
type Authenticator struct {
	username     string
	passwordHash []byte
	secret       []byte
	issuer       string
	ttl          time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// New builds an Authenticator from config.
func New(cfg config.AuthConfig, logger *zap.Logger) (*Authenticator, error) {
	if cfg.JWTSecret == "" || cfg.AdminPasswordHash == "" {
		return nil, ErrDisabled
	}
	if _, err := bcrypt.Cost([]byte(cfg.AdminPasswordHash)); err != nil {
		return nil, fmt.Errorf("auth.adminPasswordHash is not a bcrypt hash: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Authenticator{
		username:     cfg.AdminUsername,
		passwordHash: []byte(cfg.AdminPasswordHash),
		secret:       []byte(cfg.JWTSecret),
		issuer:       cfg.Issuer,
		ttl:          cfg.TokenTTL,
		logger:       logger,
		now:          time.Now,
	}
	if a.username == "" {
		a.username = constants.DefaultAdminUsername
	}
	if a.issuer == "" {
		a.issuer = constants.DefaultJWTIssuer
	}
	if a.ttl <= 0 {
		a.ttl = defaultTokenTTL
	}
	return a, nil
}

// HashPassword returns the bcrypt hash to put in auth.adminPasswordHash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Login checks the admin credentials and returns a signed token with its expiry.
func (a *Authenticator) Login(username, password string) (string, time.Time, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	// The hash is always compared so both failure modes take the same time.
	passErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		a.logger.Warn("admin login rejected",
			zap.String("op", "auth.Login"),
			zap.String("username", username),
		)
		return "", time.Time{}, ErrInvalidCredentials
	}
	return a.issue(username, RoleAdmin)
}

func (a *Authenticator) issue(subject, role string) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.ttl)
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-1 * time.Minute)),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// Verify parses a token and checks its signature, issuer and expiry.
func (a *Authenticator) Verify(raw string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	claims := &Claims{}
	tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("invalid or expired token: %w", err)
	}
	return claims, nil
}

// Middleware requires a valid bearer token carrying the admin role. It answers
// 401 for a missing or invalid token and 403 for any other role.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := a.Verify(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
		if err != nil {
			a.logger.Debug("token rejected",
				zap.String("op", "auth.Middleware"),
				zap.Error(err),
			)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if claims.Role != RoleAdmin {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
