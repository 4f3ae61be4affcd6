package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/iwvelando/dealership-quote/internal/config"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	a, err := New(config.AuthConfig{
		AdminUsername:     "admin",
		AdminPasswordHash: string(hash),
		JWTSecret:         "test-secret",
		Issuer:            "dealership-quote",
		TokenTTL:          time.Hour,
	}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AuthConfig
		want error
	}{
		{"No secret", config.AuthConfig{AdminPasswordHash: "$2a$10$x"}, ErrDisabled},
		{"No hash", config.AuthConfig{JWTSecret: "s"}, ErrDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, nil); !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, expected %v", err, tt.want)
			}
		})
	}

	t.Run("Plain text password", func(t *testing.T) {
		if _, err := New(config.AuthConfig{JWTSecret: "s", AdminPasswordHash: "hunter2"}, nil); err == nil {
			t.Error("expected a non-bcrypt hash to be rejected")
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
		a, err := New(config.AuthConfig{JWTSecret: "s", AdminPasswordHash: string(hash)}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if a.username != "admin" || a.ttl != time.Hour || a.issuer == "" {
			t.Errorf("unexpected defaults %+v", a)
		}
	})
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")) != nil {
		t.Error("hash does not match password")
	}
	if _, err := HashPassword(""); err == nil {
		t.Error("expected empty password to be rejected")
	}
}

func TestLoginAndVerify(t *testing.T) {
	a := newTestAuthenticator(t)

	t.Run("Wrong password", func(t *testing.T) {
		if _, _, err := a.Login("admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Wrong username", func(t *testing.T) {
		if _, _, err := a.Login("root", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Valid credentials", func(t *testing.T) {
		token, expires, err := a.Login("admin", "correct horse")
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if time.Until(expires) <= 59*time.Minute {
			t.Errorf("unexpected expiry %s", expires)
		}
		claims, err := a.Verify(token)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if claims.Role != RoleAdmin || claims.Subject != "admin" {
			t.Errorf("unexpected claims %+v", claims)
		}
	})

	t.Run("Expired token", func(t *testing.T) {
		a.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _, err := a.issue("admin", RoleAdmin)
		a.now = time.Now
		if err != nil {
			t.Fatal(err)
		}
		if _, err := a.Verify(token); err == nil {
			t.Error("expected expired token to be rejected")
		}
	})

	t.Run("Foreign signature", func(t *testing.T) {
		claims := &Claims{Role: RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "dealership-quote",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
		if _, err := a.Verify(token); err == nil {
			t.Error("expected token signed with another secret to be rejected")
		}
	})

	t.Run("Unsigned token", func(t *testing.T) {
		claims := &Claims{Role: RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "dealership-quote",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		token, _ := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		if _, err := a.Verify(token); err == nil {
			t.Error("expected alg=none token to be rejected")
		}
	})
}

func TestMiddleware(t *testing.T) {
	a := newTestAuthenticator(t)
	adminToken, _, err := a.Login("admin", "correct horse")
	if err != nil {
		t.Fatal(err)
	}
	viewerToken, _, err := a.issue("viewer", "viewer")
	if err != nil {
		t.Fatal(err)
	}

	var seen *Claims
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		method string
		header string
		status int
	}{
		{"Missing token", http.MethodGet, "", http.StatusUnauthorized},
		{"Wrong scheme", http.MethodGet, "Basic YWRtaW46cHc=", http.StatusUnauthorized},
		{"Garbage token", http.MethodGet, "Bearer not-a-token", http.StatusUnauthorized},
		{"Wrong role", http.MethodGet, "Bearer " + viewerToken, http.StatusForbidden},
		{"Preflight", http.MethodOptions, "", http.StatusNoContent},
		{"Admin", http.MethodGet, "Bearer " + adminToken, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/admin/leads", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			if tt.status >= 400 && !strings.Contains(rec.Body.String(), `"error"`) {
				t.Errorf("expected JSON error body, got %s", rec.Body.String())
			}
		})
	}

	if seen == nil || seen.Subject != "admin" {
		t.Errorf("expected admin claims in context, got %+v", seen)
	}
}
