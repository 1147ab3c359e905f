package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"saas-subscription-api/internal/usecase"
)

// NotificationWorker periodically logs subscriptions approaching expiry.
// Read-only; delivery of actual notifications is out of scope.
type NotificationWorker struct {
	interval   time.Duration
	withinDays int
	notifUC    usecase.NotificationUseCase
	log        *zerolog.Logger
}

func NewNotificationWorker(interval time.Duration, withinDays int, notifUC usecase.NotificationUseCase, logger *zerolog.Logger) *NotificationWorker {
	compLog := logger.With().Str("component", "NotificationWorker").Logger()
	return &NotificationWorker{
		interval:   interval,
		withinDays: withinDays,
		notifUC:    notifUC,
		log:        &compLog,
	}
}

func (w *NotificationWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting notification worker")
	// Run once on startup, then on every tick
	w.runCheck(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping notification worker")
			return ctx.Err()
		case <-ticker.C:
			w.runCheck(ctx)
		}
	}
}

func (w *NotificationWorker) runCheck(ctx context.Context) {
	n, err := w.notifUC.CheckExpiring(ctx, w.withinDays)
	if err != nil {
		w.log.Error().Err(err).Msg("expiring check failed")
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("subscriptions expiring soon")
	}
}
