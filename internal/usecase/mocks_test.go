//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"saas-subscription-api/internal/domain"
	"saas-subscription-api/internal/domain/model"
	"saas-subscription-api/internal/domain/ports/adapter"
	"saas-subscription-api/internal/domain/ports/repository"
)

// =============================
// Repositories
// =============================

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu   sync.Mutex
	byID map[string]*model.User

	SaveFunc               func(ctx context.Context, qx any, u *model.User) error
	FindByIDFunc           func(ctx context.Context, qx any, id string) (*model.User, error)
	UpdateSubscriptionFunc func(ctx context.Context, qx any, u *model.User) error

	Updates int // UpdateSubscription invocations
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{byID: map[string]*model.User{}}
}

func cloneUser(u *model.User) *model.User {
	cp := *u
	if u.SubscriptionStartDate != nil {
		s := *u.SubscriptionStartDate
		cp.SubscriptionStartDate = &s
	}
	if u.SubscriptionEndDate != nil {
		e := *u.SubscriptionEndDate
		cp.SubscriptionEndDate = &e
	}
	return &cp
}

func (r *MockUserRepo) Save(ctx context.Context, qx any, u *model.User) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, qx, u)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = cloneUser(u)
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, qx any, id string) (*model.User, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, qx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *MockUserRepo) FindByEmail(ctx context.Context, qx any, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) UpdateSubscription(ctx context.Context, qx any, u *model.User) error {
	if r.UpdateSubscriptionFunc != nil {
		return r.UpdateSubscriptionFunc(ctx, qx, u)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[u.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cur.SubscriptionTier = u.SubscriptionTier
	cur.SubscriptionStartDate = u.SubscriptionStartDate
	cur.SubscriptionEndDate = u.SubscriptionEndDate
	cur.AutoRenew = u.AutoRenew
	cur.UpdatedAt = u.UpdatedAt
	r.Updates++
	return nil
}

func (r *MockUserRepo) ListExpired(ctx context.Context, qx any, now time.Time, limit int) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.User
	for _, u := range r.byID {
		if u.SubscriptionTier == model.TierFree || u.AutoRenew {
			continue
		}
		if u.SubscriptionEndDate != nil && u.SubscriptionEndDate.Before(now) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockUserRepo) DowngradeIfUnchanged(ctx context.Context, qx any, userID string, endDate time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if u.SubscriptionTier == model.TierFree || u.SubscriptionEndDate == nil || !u.SubscriptionEndDate.Equal(endDate) {
		return false, nil
	}
	u.Downgrade()
	return true, nil
}

func (r *MockUserRepo) ListExpiring(ctx context.Context, qx any, now, until time.Time) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.User
	for _, u := range r.byID {
		if u.SubscriptionTier == model.TierFree || u.SubscriptionEndDate == nil {
			continue
		}
		if u.SubscriptionEndDate.After(now) && !u.SubscriptionEndDate.After(until) {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

// Get returns the stored user directly (test assertions only).
func (r *MockUserRepo) Get(id string) *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil
	}
	return cloneUser(u)
}

// ---- Mock TransactionRepository ----

type MockTransactionRepo struct {
	mu    sync.Mutex
	byRef map[string]*model.Transaction

	SaveFunc             func(ctx context.Context, qx any, t *model.Transaction) error
	ResolveIfPendingFunc func(ctx context.Context, qx any, reference string, status model.TransactionStatus, gatewayTxID, channel, gatewayResponse *string, paidAt *time.Time) (bool, error)
}

var _ repository.TransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{byRef: map[string]*model.Transaction{}}
}

func cloneTransaction(t *model.Transaction) *model.Transaction {
	cp := *t
	if t.Meta != nil {
		cp.Meta = make(map[string]interface{}, len(t.Meta))
		for k, v := range t.Meta {
			cp.Meta[k] = v
		}
	}
	return &cp
}

func (r *MockTransactionRepo) Save(ctx context.Context, qx any, t *model.Transaction) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, qx, t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byRef[t.Reference] = cloneTransaction(t)
	return nil
}

func (r *MockTransactionRepo) FindByReference(ctx context.Context, qx any, reference string) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byRef[reference]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTransaction(t), nil
}

func (r *MockTransactionRepo) ListByUser(ctx context.Context, qx any, userID string) ([]*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Transaction
	for _, t := range r.byRef {
		if t.UserID == userID {
			out = append(out, cloneTransaction(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MockTransactionRepo) ListPendingOlderThan(ctx context.Context, qx any, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Transaction
	for _, t := range r.byRef {
		if t.Status == model.TransactionStatusPending && t.CreatedAt.Before(olderThan) {
			out = append(out, cloneTransaction(t))
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ResolveIfPending mirrors the conditional UPDATE: the check and the write
// happen under one lock so concurrent callers see exactly one winner.
func (r *MockTransactionRepo) ResolveIfPending(ctx context.Context, qx any, reference string, status model.TransactionStatus, gatewayTxID, channel, gatewayResponse *string, paidAt *time.Time) (bool, error) {
	if r.ResolveIfPendingFunc != nil {
		return r.ResolveIfPendingFunc(ctx, qx, reference, status, gatewayTxID, channel, gatewayResponse, paidAt)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byRef[reference]
	if !ok {
		return false, domain.ErrNotFound
	}
	if t.Status != model.TransactionStatusPending {
		return false, nil
	}
	t.Status = status
	t.GatewayTransactionID = gatewayTxID
	t.PaymentChannel = channel
	t.GatewayResponse = gatewayResponse
	t.PaidAt = paidAt
	t.UpdatedAt = time.Now()
	return true, nil
}

// Get returns the stored entry directly (test assertions only).
func (r *MockTransactionRepo) Get(reference string) *model.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byRef[reference]
	if !ok {
		return nil
	}
	return cloneTransaction(t)
}

func (r *MockTransactionRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byRef)
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu sync.Mutex

	InitializeFunc      func(ctx context.Context, email string, amountMinor int64, reference, callbackURL string, meta map[string]interface{}) (string, error)
	VerifyFunc          func(ctx context.Context, reference string) (*adapter.VerifyResult, error)
	VerifySignatureFunc func(signature string, body []byte) bool

	// tracing of invocations
	Calls struct {
		Initialize []struct {
			Reference   string
			AmountMinor int64
			Meta        map[string]interface{}
		}
		Verify []string
	}
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (g *MockPaymentGateway) Name() string { return "mock" }

func (g *MockPaymentGateway) Initialize(ctx context.Context, email string, amountMinor int64, reference, callbackURL string, meta map[string]interface{}) (string, error) {
	g.mu.Lock()
	g.Calls.Initialize = append(g.Calls.Initialize, struct {
		Reference   string
		AmountMinor int64
		Meta        map[string]interface{}
	}{reference, amountMinor, meta})
	g.mu.Unlock()
	if g.InitializeFunc != nil {
		return g.InitializeFunc(ctx, email, amountMinor, reference, callbackURL, meta)
	}
	return "https://checkout.example.com/" + reference, nil
}

func (g *MockPaymentGateway) Verify(ctx context.Context, reference string) (*adapter.VerifyResult, error) {
	g.mu.Lock()
	g.Calls.Verify = append(g.Calls.Verify, reference)
	g.mu.Unlock()
	if g.VerifyFunc != nil {
		return g.VerifyFunc(ctx, reference)
	}
	return &adapter.VerifyResult{Status: "success"}, nil
}

func (g *MockPaymentGateway) VerifyCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls.Verify)
}

func (g *MockPaymentGateway) VerifySignature(signature string, body []byte) bool {
	if g.VerifySignatureFunc != nil {
		return g.VerifySignatureFunc(signature, body)
	}
	return true
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

// WithTx runs the function immediately without a real transaction. Assign
// WithTxFunc to exercise rollback behavior.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// newTestLogger creates a silent zerolog.Logger so test output stays clean.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
