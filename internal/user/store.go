// Package user persists per-user subscription and free-tier usage state.
// The contract every backend honors: records survive restarts, and updates
// for one user id are linearizable, so racing debits (a double-tapped
// button) never lose an increment.
package user

import (
	"context"

	"github.com/cryptomind/analyst/models"
)

// Store is the entitlement store used by the analysis flow and the admin
// commands.
type Store interface {
	// GetOrCreate returns the user's record, creating it with defaults
	// {subscribed: false, analysisUsed: 0} on first contact. Idempotent.
	GetOrCreate(ctx context.Context, id int64, name, username string) (*models.UserEntitlement, error)

	// IsAuthorized reports whether the user may run an analysis: either
	// subscribed or still under the free limit.
	IsAuthorized(ctx context.Context, id int64) (bool, error)

	// DebitOnSuccess increments the user's usage counter, unless the user
	// is subscribed, in which case it is a no-op.
	DebitOnSuccess(ctx context.Context, id int64) error

	// Activate flips the user to subscribed. Returns
	// models.ErrUserNotFound for unknown ids.
	Activate(ctx context.Context, id int64) error

	// ListAll enumerates every known user.
	ListAll(ctx context.Context) ([]models.UserEntitlement, error)

	Close() error
}
