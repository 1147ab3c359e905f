package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"saas-subscription-api/internal/infra/metrics"
	"saas-subscription-api/internal/usecase"
)

// ExpiryWorker periodically downgrades lapsed paid subscriptions via the use case.
type ExpiryWorker struct {
	interval time.Duration
	subUC    usecase.SubscriptionUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, subUC usecase.SubscriptionUseCase, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		subUC:    subUC,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.subUC.SweepExpired(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry sweep error")
			}
			if n > 0 {
				metrics.IncSubscriptionsExpired(n)
				w.log.Info().Int("count", n).Msg("expired subscriptions downgraded")
			}
		}
	}
}
