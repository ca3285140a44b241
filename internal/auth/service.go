// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/config"
	"github.com/carterperez-dev/edu-platform/auth-service/internal/core"
	"github.com/carterperez-dev/edu-platform/auth-service/internal/middleware"
)

const MinPasswordLength = 6

const notifyTimeout = 30 * time.Second

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrInvalidSSOToken       = errors.New("invalid sso token")
	ErrPasswordTooShort      = errors.New("password must be at least 6 characters")
	ErrInvalidPlatform       = errors.New("invalid platform")
)

type UserInfo struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         string
	Approved     bool
	Tier         string
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

type SessionRevoker interface {
	RevokeSession(ctx context.Context, jti string, expiresAt time.Time) error
	RevokeUser(ctx context.Context, userID string, at time.Time) error
}

type Options struct {
	ResetTTL        time.Duration
	ResetURLBase    string
	SSOTTL          time.Duration
	SSOReceiverPath string
	AppURLs         map[string]string
	// ResetResponseFloor is the least time RequestReset takes, whether or
	// not the account exists.
	ResetResponseFloor time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ResetTTL:           cfg.Reset.TokenTTL,
		ResetURLBase:       cfg.Reset.URLBase,
		SSOTTL:             cfg.SSO.TokenTTL,
		SSOReceiverPath:    cfg.SSO.ReceiverPath,
		AppURLs:            cfg.SSO.AppURLs,
		ResetResponseFloor: cfg.Reset.ResponseFloor,
	}
}

// ResetIssue carries the raw secret back to the caller exactly once.
type ResetIssue struct {
	Secret    string
	URL       string
	ExpiresAt time.Time
}

type SSOIssue struct {
	Secret    string
	URL       string
	Platform  Platform
	ExpiresAt time.Time
}

type Session struct {
	Token     string
	ExpiresAt time.Time
	Claims    middleware.SessionClaims
}

type Service struct {
	repo        Repository
	tx          Transactor
	jwt         *JWTManager
	users       UserProvider
	revocations SessionRevoker
	notifier    Notifier
	opts        Options
	now         func() time.Time
	pending     sync.WaitGroup
}

func NewService(
	repo Repository,
	tx Transactor,
	jwt *JWTManager,
	users UserProvider,
	revocations SessionRevoker,
	notifier Notifier,
	opts Options,
) *Service {
	if notifier == nil {
		notifier = NewLogNotifier(nil)
	}

	return &Service{
		repo:        repo,
		tx:          tx,
		jwt:         jwt,
		users:       users,
		revocations: revocations,
		notifier:    notifier,
		opts:        opts,
		now:         time.Now,
	}
}

// RequestReset issues a reset secret for the account behind email. An
// unknown email yields a nil issue and a nil error, the same outcome the
// caller reports for a real account. Delivery happens in the background and
// both outcomes are held to the same minimum duration.
func (s *Service) RequestReset(
	ctx context.Context,
	email string,
) (*ResetIssue, error) {
	defer s.holdUntilFloor(ctx, time.Now())

	ctx, span := core.StartSpan(ctx, "auth.RequestReset")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.AddSpanEvent(ctx, "reset.unknown_account")
			return nil, nil
		}
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf("get user: %w", err)
	}

	secret, err := core.GenerateSecret()
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	token := &PasswordResetToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: core.HashSecret(secret),
		ExpiresAt: s.now().Add(s.opts.ResetTTL),
	}

	var superseded int64
	err = s.tx.WithinTx(ctx, func(tokens Repository, _ PasswordWriter) error {
		n, err := tokens.DeleteResetTokensForUser(ctx, user.ID)
		if err != nil {
			return err
		}
		superseded = n
		return tokens.CreateResetToken(ctx, token)
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf("store reset token: %w", err)
	}

	core.AddSpanEvent(ctx, "reset.issued",
		attribute.Int64("superseded", superseded),
	)

	issue := &ResetIssue{
		Secret:    secret,
		URL:       withTokenParam(s.opts.ResetURLBase, secret),
		ExpiresAt: token.ExpiresAt,
	}

	s.notifyReset(ctx, ResetNotice{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		URL:       issue.URL,
		ExpiresAt: issue.ExpiresAt,
	})

	return issue, nil
}

func (s *Service) notifyReset(ctx context.Context, notice ResetNotice) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()

		if err := s.notifier.SendPasswordReset(ctx, notice); err != nil {
			slog.ErrorContext(ctx, "reset notification failed",
				"user_id", notice.UserID,
				"error", err,
			)
		}
	}()
}

// Wait blocks until background reset notifications have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) holdUntilFloor(ctx context.Context, start time.Time) {
	remaining := s.opts.ResetResponseFloor - time.Since(start)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// RedeemReset consumes the token and sets the new password in one
// transaction. Unknown, expired and already used secrets are
// indistinguishable to the caller.
func (s *Service) RedeemReset(
	ctx context.Context,
	secret, newPassword string,
) error {
	ctx, span := core.StartSpan(ctx, "auth.RedeemReset")
	defer span.End()

	if utf8.RuneCountInString(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	if secret == "" {
		return ErrInvalidOrExpiredToken
	}

	passwordHash, err := core.HashPassword(newPassword)
	if err != nil {
		core.SetSpanError(ctx, err)
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	var userID string

	err = s.tx.WithinTx(
		ctx,
		func(tokens Repository, passwords PasswordWriter) error {
			token, err := tokens.ConsumeResetToken(
				ctx,
				core.HashSecret(secret),
				now,
			)
			if err != nil {
				return err
			}

			if err := passwords.UpdatePassword(
				ctx,
				token.UserID,
				passwordHash,
			); err != nil {
				return err
			}

			userID = token.UserID
			return nil
		},
	)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.AddSpanEvent(ctx, "reset.rejected")
			return ErrInvalidOrExpiredToken
		}
		core.SetSpanError(ctx, err)
		return fmt.Errorf("redeem reset token: %w", err)
	}

	if s.revocations != nil {
		if err := s.revocations.RevokeUser(ctx, userID, now); err != nil {
			slog.WarnContext(ctx, "session revocation after reset failed",
				"user_id", userID,
				"error", err,
			)
		}
	}

	return nil
}

// IssueSSO creates a handoff secret the target application can redeem once.
func (s *Service) IssueSSO(
	ctx context.Context,
	userID string,
	target Platform,
) (*SSOIssue, error) {
	ctx, span := core.StartSpan(ctx, "auth.IssueSSO",
		attribute.String("platform", string(target)),
	)
	defer span.End()

	if _, err := ParsePlatform(string(target)); err != nil {
		return nil, err
	}

	appURL, ok := s.opts.AppURLs[string(target)]
	if !ok || appURL == "" {
		return nil, fmt.Errorf("issue sso: no app url for %s: %w",
			target, ErrInvalidPlatform)
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	secret, err := core.GenerateSecret()
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	token := &SSOToken{
		ID:        uuid.New().String(),
		TokenHash: core.HashSecret(secret),
		Platform:  target,
		UserID:    userID,
		ExpiresAt: s.now().Add(s.opts.SSOTTL),
	}

	if err := s.repo.CreateSSOToken(ctx, token); err != nil {
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf("store sso token: %w", err)
	}

	return &SSOIssue{
		Secret:    secret,
		URL:       withTokenParam(joinURL(appURL, s.opts.SSOReceiverPath), secret),
		Platform:  target,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// RedeemSSO marks the token used and opens a session for its owner. Only
// one of any number of concurrent calls with the same secret succeeds.
func (s *Service) RedeemSSO(
	ctx context.Context,
	secret string,
	platform Platform,
) (*Session, error) {
	ctx, span := core.StartSpan(ctx, "auth.RedeemSSO",
		attribute.String("platform", string(platform)),
	)
	defer span.End()

	if secret == "" {
		return nil, ErrInvalidSSOToken
	}
	if _, err := ParsePlatform(string(platform)); err != nil {
		return nil, ErrInvalidSSOToken
	}

	token, err := s.repo.RedeemSSOToken(
		ctx,
		core.HashSecret(secret),
		platform,
		s.now(),
	)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.AddSpanEvent(ctx, "sso.rejected")
			return nil, ErrInvalidSSOToken
		}
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf("redeem sso token: %w", err)
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			slog.WarnContext(ctx, "sso token owner missing",
				"token_id", token.ID,
				"user_id", token.UserID,
			)
			return nil, ErrInvalidSSOToken
		}
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf("get user: %w", err)
	}

	return s.openSession(user)
}

func (s *Service) Login(
	ctx context.Context,
	email, password string,
) (*Session, error) {
	ctx, span := core.StartSpan(ctx, "auth.Login")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _, _ = core.VerifyPasswordTimingSafe(password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(
		password,
		&user.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return nil, ErrInvalidCredentials
	}

	if newHash != "" {
		//nolint:errcheck // best-effort rehash upgrade
		_ = s.users.UpdatePassword(ctx, user.ID, newHash)
	}

	return s.openSession(user)
}

func (s *Service) Logout(
	ctx context.Context,
	claims *middleware.SessionClaims,
) error {
	if claims == nil || s.revocations == nil {
		return nil
	}

	if err := s.revocations.RevokeSession(
		ctx,
		claims.TokenID,
		claims.ExpiresAt,
	); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	return nil
}

func (s *Service) openSession(user *UserInfo) (*Session, error) {
	claims := BuildClaims(user)

	issued, err := s.jwt.CreateSessionToken(claims)
	if err != nil {
		return nil, fmt.Errorf("create session token: %w", err)
	}

	claims.TokenID = issued.TokenID
	claims.ExpiresAt = issued.ExpiresAt

	return &Session{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		Claims:    claims,
	}, nil
}

func withTokenParam(base, secret string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(secret)
	}

	q := u.Query()
	q.Set("token", secret)
	u.RawQuery = q.Encode()
	return u.String()
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
