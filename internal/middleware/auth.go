// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/core"
)

const (
	UserIDKey contextKey = "user_id"
	ClaimsKey contextKey = "session_claims"
)

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"

	TierFree    = "free"
	TierPremium = "premium"
)

// SessionClaims is the authorization view of a session. It is read from the
// signed session token on every request; no database lookup is involved.
type SessionClaims struct {
	UserID    string
	Role      string
	Approved  bool
	Tier      string
	FirstName string
	LastName  string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (c *SessionClaims) IsPremium() bool {
	return c != nil && c.Tier == TierPremium
}

type TokenVerifier interface {
	VerifySessionToken(
		ctx context.Context,
		token string,
	) (*SessionClaims, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, claims *SessionClaims) (bool, error)
}

// SessionResolver turns a request into verified claims. The token comes
// from the Authorization header or, failing that, the session cookie.
type SessionResolver struct {
	Verifier    TokenVerifier
	Revocations RevocationChecker
	CookieName  string
}

func (s *SessionResolver) Resolve(r *http.Request) (*SessionClaims, error) {
	token := ExtractToken(r)
	if token == "" && s.CookieName != "" {
		if c, err := r.Cookie(s.CookieName); err == nil {
			token = c.Value
		}
	}

	if token == "" {
		return nil, fmt.Errorf("resolve session: %w", core.ErrUnauthorized)
	}

	claims, err := s.Verifier.VerifySessionToken(r.Context(), token)
	if err != nil {
		return nil, err
	}

	if s.Revocations != nil {
		revoked, err := s.Revocations.IsRevoked(r.Context(), claims)
		if err != nil {
			slog.Warn("revocation check failed, failing open",
				"error", err,
				"user_id", claims.UserID,
			)
		} else if revoked {
			return nil, fmt.Errorf("resolve session: %w", core.ErrTokenRevoked)
		}
	}

	return claims, nil
}

func WithClaims(ctx context.Context, claims *SessionClaims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	return context.WithValue(ctx, ClaimsKey, claims)
}

// Authenticator guards the JSON API: failures are 401 envelopes, not
// redirects.
func Authenticator(resolver *SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := resolver.Resolve(r)
			if err != nil {
				handleAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func handleAuthError(w http.ResponseWriter, err error) {
	if core.IsAppError(err) {
		core.JSONError(w, err)
		return
	}

	switch {
	case errors.Is(err, core.ErrUnauthorized):
		core.JSONError(
			w,
			core.UnauthorizedError("missing authorization token"),
		)
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenRevoked):
		core.JSONError(w, core.TokenRevokedError())
	default:
		core.JSONError(w, core.TokenInvalidError())
	}
}

func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

func GetClaims(ctx context.Context) *SessionClaims {
	if claims, ok := ctx.Value(ClaimsKey).(*SessionClaims); ok {
		return claims
	}
	return nil
}

