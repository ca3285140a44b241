// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

type Platform string

const (
	PlatformTeacher Platform = "teacher"
	PlatformStudent Platform = "student"
)

func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformTeacher, PlatformStudent:
		return Platform(s), nil
	default:
		return "", ErrInvalidPlatform
	}
}

// PasswordResetToken is one outstanding reset request. Only the digest of
// the secret is stored.
type PasswordResetToken struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (t *PasswordResetToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// SSOToken is one cross-application handoff. Setting UsedAt is its only
// state transition.
type SSOToken struct {
	ID        string     `db:"id"`
	TokenHash string     `db:"token_hash"`
	Platform  Platform   `db:"platform"`
	UserID    string     `db:"user_id"`
	ExpiresAt time.Time  `db:"expires_at"`
	UsedAt    *time.Time `db:"used_at"`
	CreatedAt time.Time  `db:"created_at"`
}

// IsRedeemable mirrors the predicate of the redeem UPDATE.
func (t *SSOToken) IsRedeemable(platform Platform, now time.Time) bool {
	return t.UsedAt == nil && t.ExpiresAt.After(now) && t.Platform == platform
}
