// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/core"
)

// Repository is the token store. Every lookup is by digest; raw secrets
// never reach it.
type Repository interface {
	CreateResetToken(ctx context.Context, token *PasswordResetToken) error
	DeleteResetTokensForUser(ctx context.Context, userID string) (int64, error)
	// ConsumeResetToken deletes and returns the live token with the given
	// digest. Expired, unknown and already-consumed digests all yield
	// core.ErrNotFound.
	ConsumeResetToken(
		ctx context.Context,
		tokenHash string,
		now time.Time,
	) (*PasswordResetToken, error)

	CreateSSOToken(ctx context.Context, token *SSOToken) error
	// RedeemSSOToken marks a matching unused, unexpired token as used and
	// returns it, in one conditional update. Any mismatch yields
	// core.ErrNotFound.
	RedeemSSOToken(
		ctx context.Context,
		tokenHash string,
		platform Platform,
		now time.Time,
	) (*SSOToken, error)

	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// CreateResetToken replaces whatever token the user holds. The unique
// user_id index keeps two concurrent requests from leaving two live rows.
func (r *repository) CreateResetToken(
	ctx context.Context,
	token *PasswordResetToken,
) error {
	query := `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET id = EXCLUDED.id,
			token_hash = EXCLUDED.token_hash,
			expires_at = EXCLUDED.expires_at,
			created_at = NOW()
		RETURNING created_at`

	err := r.db.GetContext(ctx, &token.CreatedAt, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create reset token: %w", err)
	}

	return nil
}

func (r *repository) DeleteResetTokensForUser(
	ctx context.Context,
	userID string,
) (int64, error) {
	query := `DELETE FROM password_reset_tokens WHERE user_id = $1`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("delete reset tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete reset tokens: %w", err)
	}

	return rows, nil
}

func (r *repository) ConsumeResetToken(
	ctx context.Context,
	tokenHash string,
	now time.Time,
) (*PasswordResetToken, error) {
	query := `
		DELETE FROM password_reset_tokens
		WHERE token_hash = $1 AND expires_at > $2
		RETURNING id, user_id, token_hash, expires_at, created_at`

	var token PasswordResetToken
	err := r.db.GetContext(ctx, &token, query, tokenHash, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("consume reset token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("consume reset token: %w", err)
	}

	return &token, nil
}

func (r *repository) CreateSSOToken(ctx context.Context, token *SSOToken) error {
	query := `
		INSERT INTO sso_tokens (id, token_hash, platform, user_id, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &token.CreatedAt, query,
		token.ID,
		token.TokenHash,
		string(token.Platform),
		token.UserID,
		token.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create sso token: %w", err)
	}

	return nil
}

func (r *repository) RedeemSSOToken(
	ctx context.Context,
	tokenHash string,
	platform Platform,
	now time.Time,
) (*SSOToken, error) {
	query := `
		UPDATE sso_tokens
		SET used_at = $3
		WHERE token_hash = $1
			AND platform = $2
			AND used_at IS NULL
			AND expires_at > $3
		RETURNING id, token_hash, platform, user_id, expires_at, used_at, created_at`

	var token SSOToken
	err := r.db.GetContext(ctx, &token, query, tokenHash, string(platform), now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("redeem sso token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redeem sso token: %w", err)
	}

	return &token, nil
}

// DeleteExpired purges rows that can no longer be redeemed. Redemption never
// depends on it having run.
func (r *repository) DeleteExpired(
	ctx context.Context,
	before time.Time,
) (int64, error) {
	var total int64

	for _, query := range []string{
		`DELETE FROM password_reset_tokens WHERE expires_at < $1`,
		`DELETE FROM sso_tokens WHERE expires_at < $1 OR used_at < $1`,
	} {
		result, err := r.db.ExecContext(ctx, query, before)
		if err != nil {
			return total, fmt.Errorf("delete expired tokens: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("delete expired tokens: %w", err)
		}
		total += rows
	}

	return total, nil
}
