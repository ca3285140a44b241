// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/config"
	"github.com/carterperez-dev/edu-platform/auth-service/internal/core"
	"github.com/carterperez-dev/edu-platform/auth-service/internal/middleware"
)

const (
	forgotPasswordMessage = "if an account exists for that email, a reset link has been sent"
	ssoFailedParam        = "sso_failed"
)

type HandlerConfig struct {
	// Platform is the application this handler runs inside; Origin is
	// the sibling that issues handoff links to it.
	Platform    Platform
	Origin      Platform
	Production  bool
	Cookie      config.SessionCookieConfig
	SuccessPath string
	LoginURLs   map[string]string
}

func HandlerConfigFromConfig(cfg *config.Config) HandlerConfig {
	return HandlerConfig{
		Platform:    Platform(cfg.App.Platform),
		Origin:      Platform(cfg.OriginPlatform()),
		Production:  cfg.IsProduction(),
		Cookie:      cfg.SessionCookie,
		SuccessPath: cfg.SSO.SuccessPath,
		LoginURLs:   cfg.SSO.LoginURLs,
	}
}

type Handler struct {
	service   *Service
	validator *validator.Validate
	cfg       HandlerConfig
}

func NewHandler(service *Service, cfg HandlerConfig) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
		cfg:       cfg,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	credentialLimiter func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(credentialLimiter)
			r.Post("/forgot-password", h.ForgotPassword)
			r.Post("/reset-password", h.ResetPassword)
			r.Post("/login", h.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/me", h.GetMe)
			r.Post("/logout", h.Logout)
			r.Post("/sso/handoff", h.SSOHandoff)
		})
	})
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.ValidationFailed(w, err)
		return
	}

	issue, err := h.service.RequestReset(r.Context(), req.Email)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	resp := ForgotPasswordResponse{Message: forgotPasswordMessage}
	if issue != nil && !h.cfg.Production {
		resp.ResetURL = issue.URL
	}

	core.OK(w, resp)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.ValidationFailed(w, err)
		return
	}

	err := h.service.RedeemReset(r.Context(), req.Token, req.Password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooShort) {
			core.JSONError(w, core.ValidationError(map[string]string{
				"password": "must be at least 6 characters",
			}))
			return
		}
		if errors.Is(err, ErrInvalidOrExpiredToken) {
			core.JSONError(w, invalidOrExpiredTokenError())
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, MessageResponse{Message: "password has been reset"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.ValidationFailed(w, err)
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			core.JSONError(
				w,
				core.UnauthorizedError("invalid email or password"),
			)
			return
		}
		core.InternalServerError(w, err)
		return
	}

	h.setSessionCookie(w, session.Token, session.ExpiresAt)
	core.OK(w, toSessionResponse(session))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		core.Unauthorized(w, "")
		return
	}

	if err := h.service.Logout(r.Context(), claims); err != nil {
		core.InternalServerError(w, err)
		return
	}

	h.clearSessionCookie(w)
	core.NoContent(w)
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		core.Unauthorized(w, "")
		return
	}

	core.OK(w, ToClaimsResponse(claims))
}

func (h *Handler) SSOHandoff(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	var req SSOHandoffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.ValidationFailed(w, err)
		return
	}

	issue, err := h.service.IssueSSO(r.Context(), userID, Platform(req.Platform))
	if err != nil {
		if errors.Is(err, ErrInvalidPlatform) {
			core.BadRequest(w, "unsupported platform")
			return
		}
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, SSOHandoffResponse{
		URL:       issue.URL,
		Platform:  string(issue.Platform),
		ExpiresAt: issue.ExpiresAt,
	})
}

// ReceiveSSO is the browser landing page for a handoff link. Every outcome
// is a redirect; failures send the user back to the login page of the
// application that issued the link.
func (h *Handler) ReceiveSSO(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	secret := r.URL.Query().Get("token")
	if secret == "" {
		http.Redirect(w, r, h.loginURL(h.cfg.Platform, false), http.StatusFound)
		return
	}

	session, err := h.service.RedeemSSO(r.Context(), secret, h.cfg.Platform)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, ErrInvalidSSOToken) {
			level = slog.LevelError
		}
		slog.Log(r.Context(), level, "sso redemption failed",
			"platform", h.cfg.Platform,
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		http.Redirect(w, r, h.loginURL(h.cfg.Origin, true), http.StatusFound)
		return
	}

	h.setSessionCookie(w, session.Token, session.ExpiresAt)
	http.Redirect(w, r, h.cfg.SuccessPath, http.StatusFound)
}

func (h *Handler) loginURL(p Platform, failed bool) string {
	target := h.cfg.LoginURLs[string(p)]
	if target == "" {
		target = "/login"
	}
	if !failed {
		return target
	}

	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("error", ssoFailedParam)
	u.RawQuery = q.Encode()
	return u.String()
}

func (h *Handler) setSessionCookie(
	w http.ResponseWriter,
	token string,
	expiresAt time.Time,
) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.Cookie.Name,
		Value:    token,
		Path:     cookiePath(h.cfg.Cookie.Path),
		Domain:   h.cfg.Cookie.Domain,
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.Cookie.Secure,
		SameSite: parseSameSite(h.cfg.Cookie.SameSite),
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.Cookie.Name,
		Value:    "",
		Path:     cookiePath(h.cfg.Cookie.Path),
		Domain:   h.cfg.Cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.Cookie.Secure,
		SameSite: parseSameSite(h.cfg.Cookie.SameSite),
	})
}

func cookiePath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func invalidOrExpiredTokenError() *core.AppError {
	return core.NewAppError(
		ErrInvalidOrExpiredToken,
		"invalid or expired token",
		http.StatusBadRequest,
		"INVALID_OR_EXPIRED_TOKEN",
	)
}
