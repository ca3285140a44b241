// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/config"
	"github.com/carterperez-dev/edu-platform/auth-service/internal/core"
	"github.com/carterperez-dev/edu-platform/auth-service/internal/middleware"
)

const sessionTokenType = "session"

// iat carries whole seconds; revocation markers need finer ordering.
const issuedAtMicrosClaim = "iat_us"

type JWTManager struct {
	privateKey jwk.Key
	publicKey  jwk.Key
	publicJWKS jwk.Set
	config     config.JWTConfig
}

func NewJWTManager(cfg config.JWTConfig) (*JWTManager, error) {
	privateKeyPEM, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	privateKey, err := jwk.ParseKey(privateKeyPEM, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	if setErr := privateKey.Set(jwk.AlgorithmKey, jwa.ES256()); setErr != nil {
		return nil, fmt.Errorf("set algorithm: %w", setErr)
	}

	keyID := uuid.New().String()[:8]
	if setErr := privateKey.Set(jwk.KeyIDKey, keyID); setErr != nil {
		return nil, fmt.Errorf("set key id: %w", setErr)
	}

	publicKey, err := privateKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}

	if setErr := publicKey.Set(jwk.KeyUsageKey, "sig"); setErr != nil {
		return nil, fmt.Errorf("set key usage: %w", setErr)
	}

	publicJWKS := jwk.NewSet()
	if addErr := publicJWKS.AddKey(publicKey); addErr != nil {
		return nil, fmt.Errorf("add key to set: %w", addErr)
	}

	return &JWTManager{
		privateKey: privateKey,
		publicKey:  publicKey,
		publicJWKS: publicJWKS,
		config:     cfg,
	}, nil
}

func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	jwkPrivate, err := jwk.Import(privateKey)
	if err != nil {
		return fmt.Errorf("import private key: %w", err)
	}

	privatePEM, err := jwk.Pem(jwkPrivate)
	if err != nil {
		return fmt.Errorf("encode private key: %w", err)
	}

	if writeErr := os.WriteFile(privateKeyPath, privatePEM, 0o600); writeErr != nil {
		return fmt.Errorf("write private key: %w", writeErr)
	}

	jwkPublic, err := jwkPrivate.PublicKey()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	publicPEM, err := jwk.Pem(jwkPublic)
	if err != nil {
		return fmt.Errorf("encode public key: %w", err)
	}

	//nolint:gosec // G306: public key is intentionally world-readable
	if writeErr := os.WriteFile(publicKeyPath, publicPEM, 0o644); writeErr != nil {
		return fmt.Errorf("write public key: %w", writeErr)
	}

	return nil
}

type IssuedSession struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

func (m *JWTManager) SessionLifetime() time.Duration {
	return m.config.SessionExpire
}

// CreateSessionToken signs the claim set. Role and tier are normalized
// first so a token never carries an unknown value.
func (m *JWTManager) CreateSessionToken(
	claims middleware.SessionClaims,
) (*IssuedSession, error) {
	claims = normalizeClaims(claims)
	now := time.Now()
	jti := uuid.New().String()
	expiresAt := now.Add(m.config.SessionExpire)

	token, err := jwt.NewBuilder().
		JwtID(jti).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(claims.UserID).
		IssuedAt(now).
		Expiration(expiresAt).
		NotBefore(now).
		Claim("role", claims.Role).
		Claim("approved", claims.Approved).
		Claim("tier", claims.Tier).
		Claim("first_name", claims.FirstName).
		Claim("last_name", claims.LastName).
		Claim("type", sessionTokenType).
		Claim(issuedAtMicrosClaim, now.UnixMicro()).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), m.privateKey))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &IssuedSession{
		Token:     string(signed),
		TokenID:   jti,
		ExpiresAt: expiresAt,
	}, nil
}

// VerifySessionToken checks signature, issuer, audience and lifetime, then
// reads the claims back. Absent optional claims take least-privileged
// defaults rather than failing verification.
func (m *JWTManager) VerifySessionToken(
	ctx context.Context,
	tokenString string,
) (*middleware.SessionClaims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.ES256(), m.publicKey),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
	)
	if err != nil {
		if isTokenExpiredError(err) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if err := token.Get("type", &tokenType); err != nil ||
		tokenType != sessionTokenType {
		return nil, fmt.Errorf(
			"verify token: invalid token type: %w",
			core.ErrTokenInvalid,
		)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"verify token: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	claims := middleware.SessionClaims{UserID: subject}

	//nolint:errcheck // absent claims keep their zero value
	_ = token.Get("role", &claims.Role)
	//nolint:errcheck // absent claims keep their zero value
	_ = token.Get("tier", &claims.Tier)
	//nolint:errcheck // absent claims keep their zero value
	_ = token.Get("approved", &claims.Approved)
	//nolint:errcheck // absent claims keep their zero value
	_ = token.Get("first_name", &claims.FirstName)
	//nolint:errcheck // absent claims keep their zero value
	_ = token.Get("last_name", &claims.LastName)

	if jti, ok := token.JwtID(); ok {
		claims.TokenID = jti
	}
	if iat, ok := issuedAtMicros(token); ok {
		claims.IssuedAt = iat
	} else if iat, ok := token.IssuedAt(); ok {
		claims.IssuedAt = iat
	}
	if exp, ok := token.Expiration(); ok {
		claims.ExpiresAt = exp
	}

	claims = normalizeClaims(claims)
	return &claims, nil
}

// issuedAtMicros reads the sub-second issue time. JSON numbers decode as
// float64, which is exact for microsecond timestamps.
func issuedAtMicros(token jwt.Token) (time.Time, bool) {
	var raw any
	if err := token.Get(issuedAtMicrosClaim, &raw); err != nil {
		return time.Time{}, false
	}

	switch v := raw.(type) {
	case float64:
		return time.UnixMicro(int64(v)), true
	case int64:
		return time.UnixMicro(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMicro(n), true
	default:
		return time.Time{}, false
	}
}

func isTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "exp") &&
		strings.Contains(errStr, "not satisfied")
}

func (m *JWTManager) GetJWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")

		if err := json.NewEncoder(w).Encode(m.publicJWKS); err != nil {
			http.Error(
				w,
				"Internal Server Error",
				http.StatusInternalServerError,
			)
			return
		}
	}
}

func (m *JWTManager) GetKeyID() string {
	var kid string
	//nolint:errcheck // key ID always set during NewJWTManager init
	_ = m.privateKey.Get(jwk.KeyIDKey, &kid)
	return kid
}

var _ middleware.TokenVerifier = (*JWTManager)(nil)
