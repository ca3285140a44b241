// AngelaMos | 2026
// fakes_test.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/config"
	"github.com/carterperez-dev/edu-platform/auth-service/internal/core"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeStore struct {
	mu     sync.Mutex
	resets map[string]PasswordResetToken
	ssos   map[string]SSOToken
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		resets: map[string]PasswordResetToken{},
		ssos:   map[string]SSOToken{},
	}
}

func (s *fakeStore) CreateResetToken(
	_ context.Context,
	token *PasswordResetToken,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, t := range s.resets {
		if t.UserID == token.UserID {
			delete(s.resets, hash)
		}
	}
	s.resets[token.TokenHash] = *token
	return nil
}

func (s *fakeStore) DeleteResetTokensForUser(
	_ context.Context,
	userID string,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, t := range s.resets {
		if t.UserID == userID {
			delete(s.resets, hash)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) ConsumeResetToken(
	_ context.Context,
	tokenHash string,
	now time.Time,
) (*PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.resets[tokenHash]
	if !ok || t.IsExpired(now) {
		return nil, fmt.Errorf("consume reset token: %w", core.ErrNotFound)
	}
	delete(s.resets, tokenHash)
	return &t, nil
}

func (s *fakeStore) CreateSSOToken(_ context.Context, token *SSOToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ssos[token.TokenHash] = *token
	return nil
}

func (s *fakeStore) RedeemSSOToken(
	_ context.Context,
	tokenHash string,
	platform Platform,
	now time.Time,
) (*SSOToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.ssos[tokenHash]
	if !ok || !t.IsRedeemable(platform, now) {
		return nil, fmt.Errorf("redeem sso token: %w", core.ErrNotFound)
	}
	usedAt := now
	t.UsedAt = &usedAt
	s.ssos[tokenHash] = t
	return &t, nil
}

func (s *fakeStore) DeleteExpired(
	_ context.Context,
	before time.Time,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, t := range s.resets {
		if t.ExpiresAt.Before(before) {
			delete(s.resets, hash)
			n++
		}
	}
	for hash, t := range s.ssos {
		if t.ExpiresAt.Before(before) ||
			(t.UsedAt != nil && t.UsedAt.Before(before)) {
			delete(s.ssos, hash)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) resetTokensFor(userID string) []PasswordResetToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []PasswordResetToken
	for _, t := range s.resets {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

func (s *fakeStore) resetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resets)
}

var errUpdateFailed = errors.New("update failed")

type fakeUsers struct {
	mu         sync.Mutex
	byID       map[string]*UserInfo
	failUpdate bool
	updates    int
}

func newFakeUsers(users ...*UserInfo) *fakeUsers {
	f := &fakeUsers{byID: map[string]*UserInfo{}}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByEmail(
	_ context.Context,
	email string,
) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) UpdatePassword(
	_ context.Context,
	userID, passwordHash string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failUpdate {
		return errUpdateFailed
	}
	u, ok := f.byID[userID]
	if !ok {
		return fmt.Errorf("update password: %w", core.ErrNotFound)
	}
	u.PasswordHash = passwordHash
	f.updates++
	return nil
}

func (f *fakeUsers) passwordHash(userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[userID].PasswordHash
}

// fakeTransactor serializes units of work and restores the reset table
// when fn fails, which is the part of rollback the flows depend on.
type fakeTransactor struct {
	mu    sync.Mutex
	store *fakeStore
	users *fakeUsers
}

func (t *fakeTransactor) WithinTx(
	ctx context.Context,
	fn func(tokens Repository, passwords PasswordWriter) error,
) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.store.mu.Lock()
	snapshot := maps.Clone(t.store.resets)
	t.store.mu.Unlock()

	if err := fn(t.store, t.users); err != nil {
		t.store.mu.Lock()
		t.store.resets = snapshot
		t.store.mu.Unlock()
		return err
	}
	return nil
}

type revokeCall struct {
	subject string
	at      time.Time
}

type fakeRevoker struct {
	mu       sync.Mutex
	sessions []revokeCall
	users    []revokeCall
}

func (r *fakeRevoker) RevokeSession(
	_ context.Context,
	jti string,
	expiresAt time.Time,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, revokeCall{subject: jti, at: expiresAt})
	return nil
}

func (r *fakeRevoker) RevokeUser(
	_ context.Context,
	userID string,
	at time.Time,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, revokeCall{subject: userID, at: at})
	return nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []ResetNotice
}

func (n *fakeNotifier) SendPasswordReset(
	_ context.Context,
	notice ResetNotice,
) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}

func newTestJWT(t *testing.T) *JWTManager {
	t.Helper()

	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")

	if err := GenerateKeyPair(priv, pub); err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	m, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath: priv,
		PublicKeyPath:  pub,
		SessionExpire:  time.Hour,
		Issuer:         "edu-platform-test",
		Audience:       "edu-platform-test",
	})
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	return m
}

func testOptions() Options {
	return Options{
		ResetTTL:        time.Hour,
		ResetURLBase:    "http://localhost:3001/reset-password",
		SSOTTL:          5 * time.Minute,
		SSOReceiverPath: "/sso",
		AppURLs: map[string]string{
			"student": "http://localhost:3001",
			"teacher": "http://localhost:3002",
		},
	}
}

type testEnv struct {
	svc      *Service
	store    *fakeStore
	users    *fakeUsers
	revoker  *fakeRevoker
	notifier *fakeNotifier
	clock    *fakeClock
	jwt      *JWTManager
}

func newTestEnv(t *testing.T, users ...*UserInfo) *testEnv {
	t.Helper()

	env := &testEnv{
		store:    newFakeStore(),
		users:    newFakeUsers(users...),
		revoker:  &fakeRevoker{},
		notifier: &fakeNotifier{},
		clock:    newFakeClock(),
		jwt:      newTestJWT(t),
	}

	tx := &fakeTransactor{store: env.store, users: env.users}
	env.svc = NewService(
		env.store,
		tx,
		env.jwt,
		env.users,
		env.revoker,
		env.notifier,
		testOptions(),
	)
	env.svc.now = env.clock.Now
	return env
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := core.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	return h
}
