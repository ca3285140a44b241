// AngelaMos | 2026
// notifier.go

package auth

import (
	"context"
	"log/slog"
	"time"
)

// ResetNotice is what a delivery channel needs to send a reset link. The
// link embeds the secret; implementations must not persist or log it.
type ResetNotice struct {
	UserID    string
	Email     string
	FirstName string
	URL       string
	ExpiresAt time.Time
}

type Notifier interface {
	SendPasswordReset(ctx context.Context, notice ResetNotice) error
}

// LogNotifier stands in for a mail transport. It records that a reset
// went out, never the link.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendPasswordReset(
	ctx context.Context,
	notice ResetNotice,
) error {
	n.logger.InfoContext(ctx, "password reset issued",
		"user_id", notice.UserID,
		"expires_at", notice.ExpiresAt,
	)
	return nil
}
