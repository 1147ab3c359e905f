package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"saas-subscription-api/internal/domain/ports/repository"
	"saas-subscription-api/internal/usecase"
)

// PaymentReconciler periodically scans for stale pending ledger entries and
// tries to finalize them through the same Reconcile routine the webhook and
// poll paths use. This covers cases where the webhook was lost or the process
// crashed mid-verify.
type PaymentReconciler struct {
	subUC      usecase.SubscriptionUseCase
	ledger     repository.TransactionRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending entry must be to retry
	limit      int
	log        *zerolog.Logger
}

func NewPaymentReconciler(subUC usecase.SubscriptionUseCase, ledger repository.TransactionRepository, interval, staleAfter time.Duration, limit int, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if limit <= 0 {
		limit = 200
	}
	recLog := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{subUC: subUC, ledger: ledger, interval: interval, staleAfter: staleAfter, limit: limit, log: &recLog}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.ledger.ListPendingOlderThan(ctx, repository.NoTX, cutoff, w.limit)
	if err != nil {
		w.log.Error().Err(err).Msg("list stale pending failed")
		return
	}
	for _, t := range pending {
		out, err := w.subUC.Reconcile(ctx, t.Reference)
		if err != nil {
			w.log.Warn().Err(err).Str("reference", t.Reference).Msg("reconcile retry failed")
			continue
		}
		w.log.Info().Str("reference", t.Reference).Str("status", string(out.Status)).Msg("stale transaction reconciled")
	}
}
