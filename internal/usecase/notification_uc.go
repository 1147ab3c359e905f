package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"saas-subscription-api/internal/domain"
	"saas-subscription-api/internal/domain/ports/repository"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

type NotificationUseCase interface {
	// CheckExpiring counts active paid subscriptions expiring within N days.
	// Read-only: no state is mutated.
	CheckExpiring(ctx context.Context, withinDays int) (int, error)
}

type notificationUC struct {
	users repository.UserRepository
	log   *zerolog.Logger
}

func NewNotificationUseCase(users repository.UserRepository, logger *zerolog.Logger) *notificationUC {
	ucLog := logger.With().Str("component", "NotificationUC").Logger()
	return &notificationUC{users: users, log: &ucLog}
}

func (n *notificationUC) CheckExpiring(ctx context.Context, withinDays int) (int, error) {
	now := time.Now()
	until := now.Add(time.Duration(withinDays) * 24 * time.Hour)
	users, err := n.users.ListExpiring(ctx, repository.NoTX, now, until)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	for _, u := range users {
		daysLeft := int(u.SubscriptionEndDate.Sub(now).Hours() / 24)
		n.log.Debug().Str("user_id", u.ID).Int("days_left", daysLeft).Msg("subscription expiring soon")
	}
	return len(users), nil
}
