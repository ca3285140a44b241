// AngelaMos | 2026
// gate.go

package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/core"
)

type GateConfig struct {
	LoginPath           string
	UpgradePath         string
	PendingApprovalPath string
	PublicPrefixes      []string
	PremiumPrefixes     []string
	ApprovalPrefixes    []string
}

type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectPendingApproval
	DenyPremium
)

// Gatekeeper decides page access from session claims alone.
type Gatekeeper struct {
	cfg      GateConfig
	resolver *SessionResolver
	public   []string
	premium  []string
	approval []string
}

func NewGatekeeper(cfg GateConfig, resolver *SessionResolver) *Gatekeeper {
	return &Gatekeeper{
		cfg:      cfg,
		resolver: resolver,
		public:   normalizePrefixes(cfg.PublicPrefixes),
		premium:  normalizePrefixes(cfg.PremiumPrefixes),
		approval: normalizePrefixes(cfg.ApprovalPrefixes),
	}
}

func (g *Gatekeeper) IsPublic(path string) bool {
	return matchesAny(g.public, path)
}

// Decide applies the access rules in order: public paths, authentication,
// approval, then premium tier. claims may be nil.
func (g *Gatekeeper) Decide(path string, claims *SessionClaims) Decision {
	if g.IsPublic(path) {
		return Allow
	}

	if claims == nil {
		return RedirectLogin
	}

	if matchesAny(g.approval, path) && !claims.Approved {
		return RedirectPendingApproval
	}

	if matchesAny(g.premium, path) && !claims.IsPremium() {
		return DenyPremium
	}

	return Allow
}

func (g *Gatekeeper) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if g.IsPublic(path) {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := g.resolver.Resolve(r)
		if err != nil {
			claims = nil
		}

		switch g.Decide(path, claims) {
		case RedirectLogin:
			http.Redirect(w, r, g.loginURL(r), http.StatusFound)
		case RedirectPendingApproval:
			http.Redirect(w, r, g.cfg.PendingApprovalPath, http.StatusFound)
		case DenyPremium:
			if g.cfg.UpgradePath == "" {
				core.Forbidden(w, "premium subscription required")
				return
			}
			http.Redirect(w, r, g.cfg.UpgradePath, http.StatusFound)
		default:
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		}
	})
}

func (g *Gatekeeper) loginURL(r *http.Request) string {
	next := r.URL.RequestURI()
	return g.cfg.LoginPath + "?next=" + url.QueryEscape(next)
}

func normalizePrefixes(prefixes []string) []string {
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if p != "/" {
			p = strings.TrimSuffix(p, "/")
		}
		out = append(out, p)
	}
	return out
}

// matchesAny matches whole path segments: /premium covers /premium and
// /premium/x but not /premiumx.
func matchesAny(prefixes []string, path string) bool {
	for _, p := range prefixes {
		if p == "/" || path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
