package repository

import (
	"context"
	"time"

	"saas-subscription-api/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	Save(ctx context.Context, qx any, u *model.User) error
	FindByID(ctx context.Context, qx any, id string) (*model.User, error)
	FindByEmail(ctx context.Context, qx any, email string) (*model.User, error)

	// UpdateSubscription writes tier + window + auto_renew in one statement;
	// the only two callers are a success reconciliation and the sweeper.
	UpdateSubscription(ctx context.Context, qx any, u *model.User) error

	// ListExpired returns paid-tier users whose end date passed and whose
	// auto_renew is off, bounded by limit.
	ListExpired(ctx context.Context, qx any, now time.Time, limit int) ([]*model.User, error)
	// DowngradeIfUnchanged performs the downgrade conditioned on the end date
	// still matching what the sweep read, so a concurrent reconciliation that
	// extended the window is never clobbered. Returns false when skipped.
	DowngradeIfUnchanged(ctx context.Context, qx any, userID string, endDate time.Time) (bool, error)
	// ListExpiring returns paid-tier users whose end date falls inside (now, until].
	ListExpiring(ctx context.Context, qx any, now, until time.Time) ([]*model.User, error)
}
