package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"
)

// CallerHeader carries the caller address when authentication is disabled.
const CallerHeader = "X-Caller-Address"

// AuthConfig configures caller authentication.
type AuthConfig struct {
	Disabled bool
	Secret   string
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Authenticator resolves the caller address for mutating requests. Tokens are
// HMAC-signed JWTs whose subject is the caller's hex address.
type Authenticator struct {
	cfg    AuthConfig
	secret []byte
	logger *slog.Logger
}

type callerContextKey struct{}

// CallerFromContext returns the authenticated caller.
func CallerFromContext(ctx context.Context) (common.Address, bool) {
	if ctx == nil {
		return common.Address{}, false
	}
	caller, ok := ctx.Value(callerContextKey{}).(common.Address)
	return caller, ok
}

// NewAuthenticator constructs an authenticator from configuration.
func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) (*Authenticator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	secret := strings.TrimSpace(cfg.Secret)
	if !cfg.Disabled && secret == "" {
		return nil, fmt.Errorf("auth secret required")
	}
	if cfg.Leeway <= 0 {
		cfg.Leeway = 30 * time.Second
	}
	return &Authenticator{cfg: cfg, secret: []byte(secret), logger: logger}, nil
}

// Authenticate resolves the caller for r.
func (a *Authenticator) Authenticate(r *http.Request) (common.Address, error) {
	if a.cfg.Disabled {
		raw := strings.TrimSpace(r.Header.Get(CallerHeader))
		if raw == "" {
			if token := parseBearerToken(r.Header.Get("Authorization")); token != "" && len(a.secret) > 0 {
				return a.callerFromToken(token)
			}
			return common.Address{}, fmt.Errorf("%w: %s header required", errUnauthenticated, CallerHeader)
		}
		return parseCaller(raw)
	}
	token := parseBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return common.Address{}, fmt.Errorf("%w: missing bearer token", errUnauthenticated)
	}
	return a.callerFromToken(token)
}

func (a *Authenticator) callerFromToken(token string) (common.Address, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(a.cfg.Leeway),
		jwt.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		a.logger.Warn("token validation failed", "error", err)
		return common.Address{}, fmt.Errorf("%w: invalid token", errUnauthenticated)
	}
	return parseCaller(claims.Subject)
}

// Middleware rejects requests without a resolvable caller.
func (s *Server) requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := s.auth.Authenticate(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), callerContextKey{}, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IssueToken signs a caller token. It backs local tooling and tests.
func (a *Authenticator) IssueToken(caller common.Address, ttl time.Duration, now time.Time) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("auth secret not configured")
	}
	claims := jwt.RegisteredClaims{
		Subject:   caller.Hex(),
		Issuer:    a.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if a.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{a.cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func parseCaller(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: caller %q is not an address", errUnauthenticated, raw)
	}
	addr := common.HexToAddress(raw)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero caller", errUnauthenticated)
	}
	return addr, nil
}

func parseBearerToken(header string) string {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return ""
	}
	parts := strings.SplitN(trimmed, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(strings.TrimSpace(parts[0]), "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
