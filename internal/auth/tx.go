// AngelaMos | 2026
// tx.go

package auth

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/core"
)

// PasswordWriter is the slice of the user store a reset needs inside its
// transaction.
type PasswordWriter interface {
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// Transactor runs fn with a token repository and a password writer bound to
// the same transaction.
type Transactor interface {
	WithinTx(
		ctx context.Context,
		fn func(tokens Repository, passwords PasswordWriter) error,
	) error
}

type sqlTransactor struct {
	db        *sqlx.DB
	passwords func(core.DBTX) PasswordWriter
}

func NewTransactor(
	db *sqlx.DB,
	passwords func(core.DBTX) PasswordWriter,
) Transactor {
	return &sqlTransactor{db: db, passwords: passwords}
}

func (t *sqlTransactor) WithinTx(
	ctx context.Context,
	fn func(tokens Repository, passwords PasswordWriter) error,
) error {
	return core.InTx(ctx, t.db, func(tx *sqlx.Tx) error {
		return fn(NewRepository(tx), t.passwords(tx))
	})
}
