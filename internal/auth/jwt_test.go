// AngelaMos | 2026
// jwt_test.go

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/config"
	"github.com/carterperez-dev/edu-platform/auth-service/internal/core"
	"github.com/carterperez-dev/edu-platform/auth-service/internal/middleware"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	m := newTestJWT(t)

	issued, err := m.CreateSessionToken(middleware.SessionClaims{
		UserID:    "user-1",
		Role:      middleware.RoleTeacher,
		Approved:  true,
		Tier:      middleware.TierPremium,
		FirstName: "Grace",
		LastName:  "Hopper",
	})
	if err != nil {
		t.Fatalf("CreateSessionToken() error = %v", err)
	}

	claims, err := m.VerifySessionToken(context.Background(), issued.Token)
	if err != nil {
		t.Fatalf("VerifySessionToken() error = %v", err)
	}

	if claims.UserID != "user-1" ||
		claims.Role != middleware.RoleTeacher ||
		!claims.Approved ||
		claims.Tier != middleware.TierPremium ||
		claims.FirstName != "Grace" ||
		claims.LastName != "Hopper" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.TokenID != issued.TokenID {
		t.Errorf("TokenID = %q, want %q", claims.TokenID, issued.TokenID)
	}
	if claims.IssuedAt.IsZero() || claims.ExpiresAt.IsZero() {
		t.Errorf("timestamps not populated: %+v", claims)
	}
}

func TestSessionTokenKeepsSubSecondIssueTime(t *testing.T) {
	m := newTestJWT(t)

	before := time.Now().Truncate(time.Microsecond)
	issued, err := m.CreateSessionToken(middleware.SessionClaims{UserID: "user-1"})
	if err != nil {
		t.Fatal(err)
	}
	after := time.Now()

	claims, err := m.VerifySessionToken(context.Background(), issued.Token)
	if err != nil {
		t.Fatalf("VerifySessionToken() error = %v", err)
	}

	if claims.IssuedAt.Before(before) || claims.IssuedAt.After(after) {
		t.Errorf("IssuedAt = %v, want within [%v, %v]", claims.IssuedAt, before, after)
	}
}

func TestVerifySessionTokenRejects(t *testing.T) {
	m := newTestJWT(t)
	other := newTestJWT(t)

	foreign, err := other.CreateSessionToken(middleware.SessionClaims{UserID: "user-1"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"empty", ""},
		{"foreign key", foreign.Token},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.VerifySessionToken(context.Background(), tt.token)
			if !errors.Is(err, core.ErrTokenInvalid) {
				t.Errorf("VerifySessionToken() error = %v, want %v",
					err, core.ErrTokenInvalid)
			}
		})
	}
}

func TestVerifySessionTokenExpired(t *testing.T) {
	dir := t.TempDir()
	priv, pub := dir+"/private.pem", dir+"/public.pem"
	if err := GenerateKeyPair(priv, pub); err != nil {
		t.Fatal(err)
	}

	m, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath: priv,
		PublicKeyPath:  pub,
		SessionExpire:  -time.Minute,
		Issuer:         "edu-platform-test",
		Audience:       "edu-platform-test",
	})
	if err != nil {
		t.Fatal(err)
	}

	issued, err := m.CreateSessionToken(middleware.SessionClaims{UserID: "user-1"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = m.VerifySessionToken(context.Background(), issued.Token)
	if !errors.Is(err, core.ErrTokenExpired) {
		t.Errorf("VerifySessionToken() error = %v, want %v",
			err, core.ErrTokenExpired)
	}
}

func TestJWKSHandler(t *testing.T) {
	m := newTestJWT(t)

	rec := httptest.NewRecorder()
	m.GetJWKSHandler()(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Keys []map[string]any `json:"keys"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode jwks: %v", err)
	}
	if len(body.Keys) != 1 {
		t.Fatalf("keys = %d, want 1", len(body.Keys))
	}
	if body.Keys[0]["kid"] != m.GetKeyID() {
		t.Errorf("kid = %v, want %q", body.Keys[0]["kid"], m.GetKeyID())
	}
	if _, hasPrivate := body.Keys[0]["d"]; hasPrivate {
		t.Error("jwks exposes private key material")
	}
}
