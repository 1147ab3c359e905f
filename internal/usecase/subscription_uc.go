// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"saas-subscription-api/internal/domain"
	"saas-subscription-api/internal/domain/model"
	"saas-subscription-api/internal/domain/ports/adapter"
	"saas-subscription-api/internal/domain/ports/repository"
	"saas-subscription-api/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// SubscriptionUseCase is the reconciliation engine plus the subscription-state
// operations built on it. Poll, webhook and the background reconciler all
// funnel into Reconcile so there is exactly one reconciliation algorithm.
type SubscriptionUseCase interface {
	// Initiate starts a subscription to planID for the user. The free plan is
	// applied immediately with no ledger entry; paid plans create a pending
	// ledger entry and return the gateway checkout URL.
	Initiate(ctx context.Context, userID, planID string) (*InitiateResult, error)
	// Reconcile resolves the ledger entry for reference using the gateway's
	// authoritative status. Calling it again for a resolved reference returns
	// the recorded outcome without re-applying anything.
	Reconcile(ctx context.Context, reference string) (*ReconcileOutcome, error)
	// ReconcileManual simulates a successful charge for dev/test flows,
	// synthesizing the ledger entry from the reference when absent.
	ReconcileManual(ctx context.Context, reference, planID string) (*ReconcileOutcome, error)
	// Cancel turns off auto-renew; the user keeps the paid tier until the
	// sweeper catches the elapsed window.
	Cancel(ctx context.Context, userID string) (*model.User, error)
	Status(ctx context.Context, userID string) (*model.User, error)
	History(ctx context.Context, userID string) ([]*model.Transaction, error)
	// SweepExpired downgrades lapsed paid users with auto-renew off and
	// returns the number downgraded. Per-user failures are logged, never
	// abort the batch.
	SweepExpired(ctx context.Context) (int, error)
}

type InitiateResult struct {
	Plan             *model.Plan
	Reference        string     // empty for the free plan
	AuthorizationURL string     // empty for the free plan
	ValidUntil       *time.Time // nil for the free plan
}

type ReconcileOutcome struct {
	Reference string
	Status    model.TransactionStatus
	PlanID    string
	Activated bool // true when this call (or an earlier one) granted the entitlement
	StartDate *time.Time
	EndDate   *time.Time
	Message   string
}

type subscriptionUC struct {
	users       repository.UserRepository
	ledger      repository.TransactionRepository
	plans       repository.PlanRepository
	gateway     adapter.PaymentGateway
	tm          repository.TransactionManager
	callbackURL string
	sweepBatch  int
	log         *zerolog.Logger
}

func NewSubscriptionUseCase(
	users repository.UserRepository,
	ledger repository.TransactionRepository,
	plans repository.PlanRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	callbackURL string,
	sweepBatch int,
	logger *zerolog.Logger,
) *subscriptionUC {
	ucLog := logger.With().Str("component", "SubscriptionUC").Logger()
	if sweepBatch <= 0 {
		sweepBatch = 500
	}
	return &subscriptionUC{
		users:       users,
		ledger:      ledger,
		plans:       plans,
		gateway:     gateway,
		tm:          tm,
		callbackURL: callbackURL,
		sweepBatch:  sweepBatch,
		log:         &ucLog,
	}
}

func (uc *subscriptionUC) Initiate(ctx context.Context, userID, planID string) (*InitiateResult, error) {
	plan, err := uc.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	user, err := uc.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}

	// Zero-cost tier: no payment step, no ledger entry.
	if plan.IsFree() {
		user.Downgrade()
		if err := uc.users.UpdateSubscription(ctx, repository.NoTX, user); err != nil {
			return nil, err
		}
		uc.log.Info().Str("user_id", user.ID).Msg("subscribed to free plan")
		return &InitiateResult{Plan: plan}, nil
	}

	start := time.Now()
	end := start.Add(time.Duration(plan.PeriodDays) * 24 * time.Hour)
	t, err := model.NewPendingTransaction(user.ID, string(plan.ID), plan.Price, plan.Currency, start, end)
	if err != nil {
		return nil, err
	}
	if err := uc.ledger.Save(ctx, repository.NoTX, t); err != nil {
		return nil, err
	}

	// Minor-unit conversion happens only here, at the gateway boundary.
	authURL, err := uc.gateway.Initialize(ctx, user.Email, plan.Price*100, t.Reference, uc.callbackURL, t.Meta)
	if err != nil {
		// The ledger must never show pending for an attempt whose
		// initialization definitively failed.
		diag := err.Error()
		if _, rerr := uc.ledger.ResolveIfPending(ctx, repository.NoTX, t.Reference, model.TransactionStatusFailed, nil, nil, &diag, nil); rerr != nil {
			uc.log.Error().Err(rerr).Str("reference", t.Reference).Msg("failed to record init failure")
		}
		metrics.IncTransaction(string(model.TransactionStatusFailed))
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentInit, err)
	}

	uc.log.Info().Str("user_id", user.ID).Str("plan", planID).Str("reference", t.Reference).Msg("payment initialized")
	return &InitiateResult{
		Plan:             plan,
		Reference:        t.Reference,
		AuthorizationURL: authURL,
		ValidUntil:       &end,
	}, nil
}

func (uc *subscriptionUC) Reconcile(ctx context.Context, reference string) (*ReconcileOutcome, error) {
	t, err := uc.ledger.FindByReference(ctx, repository.NoTX, reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}

	// Idempotency guarantee: a resolved entry is returned as recorded, with
	// no state changes and no duplicate side effects.
	if t.Status.IsTerminal() {
		return outcomeFrom(t), nil
	}

	vr, err := uc.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVerificationFailed, err)
	}

	if !vr.Succeeded() {
		return uc.applyFailure(ctx, t, vr)
	}
	return uc.applySuccess(ctx, t, vr)
}

// applyFailure resolves the entry to failed without touching subscription
// state. A gateway-reported failed charge is a normal outcome, not an error.
func (uc *subscriptionUC) applyFailure(ctx context.Context, t *model.Transaction, vr *adapter.VerifyResult) (*ReconcileOutcome, error) {
	diag := vr.Raw
	if diag == "" {
		diag = vr.Status
	}
	won, err := uc.ledger.ResolveIfPending(ctx, repository.NoTX, t.Reference, model.TransactionStatusFailed, strPtr(vr.GatewayID), strPtr(vr.Channel), &diag, nil)
	if err != nil {
		return nil, err
	}
	if !won {
		// Another reconciliation resolved it first; report what it recorded.
		cur, err := uc.ledger.FindByReference(ctx, repository.NoTX, t.Reference)
		if err != nil {
			return nil, err
		}
		return outcomeFrom(cur), nil
	}
	metrics.IncTransaction(string(model.TransactionStatusFailed))
	uc.log.Info().Str("reference", t.Reference).Str("gateway_status", vr.Status).Msg("payment not successful")
	return &ReconcileOutcome{
		Reference: t.Reference,
		Status:    model.TransactionStatusFailed,
		PlanID:    t.PlanID,
		Message:   "payment not successful",
	}, nil
}

// applySuccess resolves the entry to success and activates the entitlement
// atomically. Exactly one concurrent caller wins the conditional update; all
// others observe the terminal row and short-circuit.
func (uc *subscriptionUC) applySuccess(ctx context.Context, t *model.Transaction, vr *adapter.VerifyResult) (*ReconcileOutcome, error) {
	paidAt := vr.PaidAt
	if paidAt == nil {
		now := time.Now()
		paidAt = &now
	}
	start, end := uc.recoverWindow(t, vr)

	var won bool
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		won, err = uc.ledger.ResolveIfPending(ctx, tx, t.Reference, model.TransactionStatusSuccess, strPtr(vr.GatewayID), strPtr(vr.Channel), strPtr(vr.Raw), paidAt)
		if err != nil || !won {
			return err
		}
		user, err := uc.users.FindByID(ctx, tx, t.UserID)
		if err != nil {
			return err
		}
		tier, err := model.ParseTier(t.PlanID)
		if err != nil {
			return err
		}
		if err := user.Activate(tier, start, end); err != nil {
			return err
		}
		return uc.users.UpdateSubscription(ctx, tx, user)
	})
	if err != nil {
		return nil, err
	}

	if !won {
		cur, err := uc.ledger.FindByReference(ctx, repository.NoTX, t.Reference)
		if err != nil {
			return nil, err
		}
		return outcomeFrom(cur), nil
	}

	metrics.IncTransaction(string(model.TransactionStatusSuccess))
	metrics.AddRevenue(t.Currency, t.Amount)
	metrics.IncSubscriptionActivated(t.PlanID)
	uc.log.Info().Str("reference", t.Reference).Str("user_id", t.UserID).Str("plan", t.PlanID).Time("valid_until", end).Msg("subscription activated")

	return &ReconcileOutcome{
		Reference: t.Reference,
		Status:    model.TransactionStatusSuccess,
		PlanID:    t.PlanID,
		Activated: true,
		StartDate: &start,
		EndDate:   &end,
		Message:   "payment successful, subscription activated",
	}, nil
}

// recoverWindow prefers the validity window echoed back by the gateway, then
// the one recorded locally at initiation. It is never recomputed from the
// resolution time, so webhook and poll agree even when they fire apart.
func (uc *subscriptionUC) recoverWindow(t *model.Transaction, vr *adapter.VerifyResult) (time.Time, time.Time) {
	echo := &model.Transaction{Meta: vr.Metadata}
	if s, e, ok := echo.Window(); ok {
		return s, e
	}
	if s, e, ok := t.Window(); ok {
		return s, e
	}
	// Metadata lost on both sides; fall back to a fresh window.
	uc.log.Warn().Str("reference", t.Reference).Msg("validity window missing from metadata, recomputing")
	days := 30
	if plan, err := uc.plans.FindByID(context.Background(), t.PlanID); err == nil && plan.PeriodDays > 0 {
		days = plan.PeriodDays
	}
	start := time.Now()
	return start, start.Add(time.Duration(days) * 24 * time.Hour)
}

func (uc *subscriptionUC) ReconcileManual(ctx context.Context, reference, planID string) (*ReconcileOutcome, error) {
	userID, err := model.UserIDFromReference(reference)
	if err != nil {
		return nil, err
	}
	t, err := uc.ledger.FindByReference(ctx, repository.NoTX, reference)
	if errors.Is(err, domain.ErrNotFound) {
		plan, perr := uc.plans.FindByID(ctx, planID)
		if perr != nil {
			return nil, perr
		}
		start := time.Now()
		end := start.Add(time.Duration(plan.PeriodDays) * 24 * time.Hour)
		t = &model.Transaction{
			ID:        ulid.Make().String(),
			UserID:    userID,
			Reference: reference,
			Amount:    plan.Price,
			Currency:  plan.Currency,
			Status:    model.TransactionStatusPending,
			PlanID:    string(plan.ID),
			Meta: map[string]interface{}{
				model.MetaUserID:    userID,
				model.MetaPlanID:    string(plan.ID),
				model.MetaReference: reference,
				model.MetaStartDate: start.UTC().Format(time.RFC3339),
				model.MetaEndDate:   end.UTC().Format(time.RFC3339),
			},
			CreatedAt: start,
			UpdatedAt: start,
		}
		if err := uc.ledger.Save(ctx, repository.NoTX, t); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return outcomeFrom(t), nil
	}

	now := time.Now()
	return uc.applySuccess(ctx, t, &adapter.VerifyResult{
		Status:    "success",
		GatewayID: "manual-" + reference,
		Channel:   "manual",
		PaidAt:    &now,
		Metadata:  t.Meta,
		Raw:       "simulated",
	})
}

func (uc *subscriptionUC) Cancel(ctx context.Context, userID string) (*model.User, error) {
	user, err := uc.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	if user.SubscriptionTier == model.TierFree {
		return nil, domain.ErrNoPaidSubscription
	}
	user.AutoRenew = false
	if err := uc.users.UpdateSubscription(ctx, repository.NoTX, user); err != nil {
		return nil, err
	}
	uc.log.Info().Str("user_id", userID).Msg("auto-renew cancelled")
	return user, nil
}

func (uc *subscriptionUC) Status(ctx context.Context, userID string) (*model.User, error) {
	return uc.users.FindByID(ctx, repository.NoTX, userID)
}

func (uc *subscriptionUC) History(ctx context.Context, userID string) ([]*model.Transaction, error) {
	return uc.ledger.ListByUser(ctx, repository.NoTX, userID)
}

func (uc *subscriptionUC) SweepExpired(ctx context.Context) (int, error) {
	now := time.Now()
	expired, err := uc.users.ListExpired(ctx, repository.NoTX, now, uc.sweepBatch)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	count := 0
	for _, u := range expired {
		if u.SubscriptionEndDate == nil {
			continue
		}
		ok, err := uc.users.DowngradeIfUnchanged(ctx, repository.NoTX, u.ID, *u.SubscriptionEndDate)
		if err != nil {
			// One user's failure must not abort the batch.
			uc.log.Warn().Err(err).Str("user_id", u.ID).Msg("downgrade failed, skipping")
			continue
		}
		if !ok {
			// End date moved under us: a reconciliation extended the window.
			continue
		}
		count++
		uc.log.Info().Str("user_id", u.ID).Str("from_tier", string(u.SubscriptionTier)).Msg("downgraded expired subscription")
	}
	return count, nil
}

func outcomeFrom(t *model.Transaction) *ReconcileOutcome {
	out := &ReconcileOutcome{
		Reference: t.Reference,
		Status:    t.Status,
		PlanID:    t.PlanID,
	}
	if t.Status == model.TransactionStatusSuccess {
		out.Activated = true
		out.Message = "payment successful, subscription activated"
		if s, e, ok := t.Window(); ok {
			out.StartDate = &s
			out.EndDate = &e
		}
	} else {
		out.Message = "payment not successful"
	}
	return out
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
