// AngelaMos | 2026
// gate_test.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/core"
)

type fakeVerifier struct {
	tokens map[string]*SessionClaims
}

func (f *fakeVerifier) VerifySessionToken(
	_ context.Context,
	token string,
) (*SessionClaims, error) {
	if c, ok := f.tokens[token]; ok {
		return c, nil
	}
	return nil, core.ErrTokenInvalid
}

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocations) IsRevoked(
	_ context.Context,
	claims *SessionClaims,
) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.revoked[claims.TokenID], nil
}

func testGateConfig() GateConfig {
	return GateConfig{
		LoginPath:           "/login",
		UpgradePath:         "/pricing",
		PendingApprovalPath: "/pending-approval",
		PublicPrefixes:      []string{"/sso", "/static/", "/v1", "/login"},
		PremiumPrefixes:     []string{"/premium"},
		ApprovalPrefixes:    []string{"/classes"},
	}
}

func TestGatekeeperDecide(t *testing.T) {
	g := NewGatekeeper(testGateConfig(), nil)

	free := &SessionClaims{UserID: "u1", Role: RoleStudent, Tier: TierFree, Approved: true}
	premium := &SessionClaims{UserID: "u2", Role: RoleStudent, Tier: TierPremium, Approved: true}
	pending := &SessionClaims{UserID: "u3", Role: RoleTeacher, Tier: TierPremium}

	tests := []struct {
		name   string
		path   string
		claims *SessionClaims
		want   Decision
	}{
		{"sso receiver is public without session", "/sso", nil, Allow},
		{"static assets are public", "/static/app.js", nil, Allow},
		{"api surface is public", "/v1/auth/login", nil, Allow},
		{"protected page without session", "/dashboard", nil, RedirectLogin},
		{"protected page with session", "/dashboard", free, Allow},
		{"premium page for free tier", "/premium/lessons", free, DenyPremium},
		{"premium root for free tier", "/premium", free, DenyPremium},
		{"premium page for premium tier", "/premium/lessons", premium, Allow},
		{"prefix match respects segments", "/premiumx", free, Allow},
		{"premium page without session", "/premium", nil, RedirectLogin},
		{"approval page for unapproved", "/classes/1", pending, RedirectPendingApproval},
		{"approval page for approved", "/classes/1", premium, Allow},
		{"ssoextra is not the receiver", "/ssoextra", nil, RedirectLogin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Decide(tt.path, tt.claims); got != tt.want {
				t.Errorf("Decide(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestGatekeeperHandler(t *testing.T) {
	verifier := &fakeVerifier{tokens: map[string]*SessionClaims{
		"free-token":    {UserID: "u1", Tier: TierFree, Approved: true, TokenID: "j1"},
		"premium-token": {UserID: "u2", Tier: TierPremium, Approved: true, TokenID: "j2"},
		"revoked-token": {UserID: "u3", Tier: TierPremium, Approved: true, TokenID: "j3"},
	}}
	resolver := &SessionResolver{
		Verifier:    verifier,
		Revocations: &fakeRevocations{revoked: map[string]bool{"j3": true}},
		CookieName:  "session",
	}

	var seenUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := NewGatekeeper(testGateConfig(), resolver).Handler(next)

	tests := []struct {
		name         string
		path         string
		cookie       string
		wantStatus   int
		wantLocation string
		wantUser     string
	}{
		{"sso receiver passes", "/sso?token=abc", "", http.StatusOK, "", ""},
		{"no session redirects to login", "/dashboard", "", http.StatusFound, "/login?next=%2Fdashboard", ""},
		{"garbage token redirects to login", "/dashboard", "garbage", http.StatusFound, "/login?next=%2Fdashboard", ""},
		{"revoked token redirects to login", "/dashboard", "revoked-token", http.StatusFound, "/login?next=%2Fdashboard", ""},
		{"valid session passes", "/dashboard", "free-token", http.StatusOK, "", "u1"},
		{"free tier on premium redirects", "/premium/x", "free-token", http.StatusFound, "/pricing", ""},
		{"premium tier on premium passes", "/premium/x", "premium-token", http.StatusOK, "", "u2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenUser = ""
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "session", Value: tt.cookie})
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if loc := rec.Header().Get("Location"); loc != tt.wantLocation {
				t.Errorf("Location = %q, want %q", loc, tt.wantLocation)
			}
			if seenUser != tt.wantUser {
				t.Errorf("user in context = %q, want %q", seenUser, tt.wantUser)
			}
		})
	}
}

func TestGatekeeperPremiumWithoutUpgradePath(t *testing.T) {
	cfg := testGateConfig()
	cfg.UpgradePath = ""
	resolver := &SessionResolver{
		Verifier: &fakeVerifier{tokens: map[string]*SessionClaims{
			"free-token": {UserID: "u1", Tier: TierFree},
		}},
	}
	h := NewGatekeeper(cfg, resolver).Handler(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("premium page must not be served to a free user")
		},
	))

	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	req.Header.Set("Authorization", "Bearer free-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestSessionResolver(t *testing.T) {
	claims := &SessionClaims{UserID: "u1", TokenID: "j1"}
	verifier := &fakeVerifier{tokens: map[string]*SessionClaims{"good": claims}}

	t.Run("bearer header wins over cookie", func(t *testing.T) {
		r := &SessionResolver{Verifier: verifier, CookieName: "session"}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		req.AddCookie(&http.Cookie{Name: "session", Value: "bad"})

		got, err := r.Resolve(req)
		if err != nil || got.UserID != "u1" {
			t.Fatalf("Resolve() = %v, %v", got, err)
		}
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		r := &SessionResolver{Verifier: verifier, CookieName: "session"}
		_, err := r.Resolve(httptest.NewRequest(http.MethodGet, "/", nil))
		if !errors.Is(err, core.ErrUnauthorized) {
			t.Fatalf("err = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("revoked token", func(t *testing.T) {
		r := &SessionResolver{
			Verifier:    verifier,
			Revocations: &fakeRevocations{revoked: map[string]bool{"j1": true}},
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good")

		_, err := r.Resolve(req)
		if !errors.Is(err, core.ErrTokenRevoked) {
			t.Fatalf("err = %v, want ErrTokenRevoked", err)
		}
	})

	t.Run("revocation store failure fails open", func(t *testing.T) {
		r := &SessionResolver{
			Verifier:    verifier,
			Revocations: &fakeRevocations{err: errors.New("redis down")},
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good")

		if _, err := r.Resolve(req); err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
	})
}

func TestAuthenticatorRespondsWithJSON(t *testing.T) {
	resolver := &SessionResolver{Verifier: &fakeVerifier{}}
	h := Authenticator(resolver)(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run without a session")
		},
	))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
