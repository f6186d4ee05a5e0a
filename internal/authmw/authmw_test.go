package authmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const secret = "0123456789abcdef0123456789abcdef"

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(id))
})

func mustSign(t *testing.T, key, subject string, ttl time.Duration) string {
	t.Helper()
	tok, err := Sign(key, subject, ttl)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return tok
}

func TestIdentity_ValidToken(t *testing.T) {
	t.Parallel()

	h := Identity(secret)(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+mustSign(t, secret, "user-42", time.Minute))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "user-42" {
		t.Errorf("identity = %q, want %q", rec.Body.String(), "user-42")
	}
}

func TestIdentity_MissingHeader(t *testing.T) {
	t.Parallel()

	h := Identity(secret)(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}
}

func TestIdentity_WrongPrefix(t *testing.T) {
	t.Parallel()

	h := Identity(secret)(okHandler)
	tok := mustSign(t, secret, "u", time.Minute)

	tests := []struct {
		name  string
		value string
	}{
		{"Basic auth", "Basic dXNlcjpwYXNz"},
		{"lowercase bearer", "bearer " + tok},
		{"no prefix", tok},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.value != "" {
				req.Header.Set("Authorization", tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestIdentity_InvalidTokens(t *testing.T) {
	t.Parallel()

	h := Identity(secret)(okHandler)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u"}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "u",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", mustSign(t, "another-secret-another-secret-xx", "u", time.Minute)},
		{"expired", mustSign(t, secret, "u", -time.Hour)},
		{"no expiry", noExp},
		{"no subject", noSub},
		{"other algorithm", hs512},
		{"garbage", "not.a.jwt"},
		{"empty token", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestIdentityFrom_Missing(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	if _, ok := IdentityFrom(req.Context()); ok {
		t.Error("expected ok=false for plain context")
	}
	if _, ok := IdentityFrom(WithIdentity(req.Context(), "")); ok {
		t.Error("expected ok=false for empty identity")
	}
}

func TestSign_RequiresSubject(t *testing.T) {
	t.Parallel()

	if _, err := Sign(secret, "", time.Minute); err == nil {
		t.Error("expected error for empty subject")
	}
}
