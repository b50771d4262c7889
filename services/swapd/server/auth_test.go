package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"
)

var authCaller = common.HexToAddress("0x2000000000000000000000000000000000000001")

func newTestAuth(t *testing.T, cfg AuthConfig) *Authenticator {
	t.Helper()
	auth, err := NewAuthenticator(cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return auth
}

func TestAuthenticatorAcceptsIssuedToken(t *testing.T) {
	auth := newTestAuth(t, AuthConfig{Secret: "topsecret", Issuer: "autoxshift", Audience: "swapd"})
	token, err := auth.IssueToken(authCaller, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	request := httptest.NewRequest(http.MethodPost, "/api/swap/execute", nil)
	request.Header.Set("Authorization", "Bearer "+token)
	caller, err := auth.Authenticate(request)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if caller != authCaller {
		t.Fatalf("caller = %s, want %s", caller.Hex(), authCaller.Hex())
	}
}

func TestAuthenticatorRejectsBadTokens(t *testing.T) {
	auth := newTestAuth(t, AuthConfig{Secret: "topsecret", Issuer: "autoxshift"})
	now := time.Now()
	sign := func(secret string, claims jwt.RegisteredClaims) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return token
	}
	valid := jwt.RegisteredClaims{
		Subject:   authCaller.Hex(),
		Issuer:    "autoxshift",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Hour))
	wrongIssuer := valid
	wrongIssuer.Issuer = "someone-else"
	noExpiry := valid
	noExpiry.ExpiresAt = nil
	badSubject := valid
	badSubject.Subject = "alice"

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic " + sign("topsecret", valid)},
		{name: "wrong secret", header: "Bearer " + sign("notsecret", valid)},
		{name: "expired", header: "Bearer " + sign("topsecret", expired)},
		{name: "wrong issuer", header: "Bearer " + sign("topsecret", wrongIssuer)},
		{name: "no expiry", header: "Bearer " + sign("topsecret", noExpiry)},
		{name: "subject not an address", header: "Bearer " + sign("topsecret", badSubject)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodPost, "/api/swap/execute", nil)
			if tt.header != "" {
				request.Header.Set("Authorization", tt.header)
			}
			_, err := auth.Authenticate(request)
			if !errors.Is(err, errUnauthenticated) {
				t.Fatalf("expected unauthenticated error, got %v", err)
			}
		})
	}
}

func TestAuthenticatorDisabledUsesCallerHeader(t *testing.T) {
	auth := newTestAuth(t, AuthConfig{Disabled: true})
	request := httptest.NewRequest(http.MethodPost, "/api/swap/execute", nil)
	request.Header.Set(CallerHeader, authCaller.Hex())
	caller, err := auth.Authenticate(request)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if caller != authCaller {
		t.Fatalf("caller = %s, want %s", caller.Hex(), authCaller.Hex())
	}

	missing := httptest.NewRequest(http.MethodPost, "/api/swap/execute", nil)
	if _, err := auth.Authenticate(missing); !errors.Is(err, errUnauthenticated) {
		t.Fatalf("expected unauthenticated error, got %v", err)
	}

	zero := httptest.NewRequest(http.MethodPost, "/api/swap/execute", nil)
	zero.Header.Set(CallerHeader, common.Address{}.Hex())
	if _, err := auth.Authenticate(zero); !errors.Is(err, errUnauthenticated) {
		t.Fatalf("expected zero caller to be rejected, got %v", err)
	}
}

func TestNewAuthenticatorRequiresSecret(t *testing.T) {
	if _, err := NewAuthenticator(AuthConfig{}, nil); err == nil {
		t.Fatalf("expected error without secret")
	}
	if _, err := NewAuthenticator(AuthConfig{Disabled: true}, nil); err != nil {
		t.Fatalf("disabled auth should not need a secret: %v", err)
	}
}

func TestParseBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Token abc":    "",
		"Bearer":       "",
		"":             "",
	}
	for header, want := range tests {
		if got := parseBearerToken(header); got != want {
			t.Fatalf("parseBearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
