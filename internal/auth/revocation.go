// AngelaMos | 2026
// revocation.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/middleware"
)

const (
	blacklistPrefix     = "session:blacklist:"
	revokedBeforePrefix = "session:revoked_before:"
)

// RevocationStore records sessions that must stop verifying before their
// signed expiry.
type RevocationStore struct {
	redis       *redis.Client
	sessionLife time.Duration
}

func NewRevocationStore(
	rdb *redis.Client,
	sessionLife time.Duration,
) *RevocationStore {
	return &RevocationStore{redis: rdb, sessionLife: sessionLife}
}

// RevokeSession blacklists one token until it would have expired anyway.
func (s *RevocationStore) RevokeSession(
	ctx context.Context,
	jti string,
	expiresAt time.Time,
) error {
	if jti == "" {
		return nil
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, blacklistPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist session: %w", err)
	}

	return nil
}

// RevokeUser invalidates every session of the user issued at or before at,
// compared in microseconds so a session opened right after a reset
// survives. The marker outlives the longest session that could predate it.
func (s *RevocationStore) RevokeUser(
	ctx context.Context,
	userID string,
	at time.Time,
) error {
	err := s.redis.Set(
		ctx,
		revokedBeforePrefix+userID,
		strconv.FormatInt(at.UnixMicro(), 10),
		s.sessionLife,
	).Err()
	if err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}

	return nil
}

func (s *RevocationStore) IsRevoked(
	ctx context.Context,
	claims *middleware.SessionClaims,
) (bool, error) {
	if claims.TokenID != "" {
		exists, err := s.redis.Exists(ctx, blacklistPrefix+claims.TokenID).Result()
		if err != nil {
			return false, fmt.Errorf("check blacklist: %w", err)
		}
		if exists > 0 {
			return true, nil
		}
	}

	marker, err := s.redis.Get(ctx, revokedBeforePrefix+claims.UserID).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check user revocation: %w", err)
	}

	return claims.IssuedAt.UnixMicro() <= marker, nil
}

var _ middleware.RevocationChecker = (*RevocationStore)(nil)
