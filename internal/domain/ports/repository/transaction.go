package repository

import (
	"context"
	"time"

	"saas-subscription-api/internal/domain/model"
)

// -----------------------------
// Ledger
// -----------------------------

type TransactionRepository interface {
	// Save upserts by reference: a second write for the same reference updates
	// the existing row, never creates a duplicate.
	Save(ctx context.Context, qx any, t *model.Transaction) error
	FindByReference(ctx context.Context, qx any, reference string) (*model.Transaction, error)
	ListByUser(ctx context.Context, qx any, userID string) ([]*model.Transaction, error)
	// ListPendingOlderThan returns stale pending entries for reconciliation retries.
	ListPendingOlderThan(ctx context.Context, qx any, olderThan time.Time, limit int) ([]*model.Transaction, error)
	// ResolveIfPending atomically moves the row out of pending. Returns false
	// when another writer already resolved it; the caller must then re-read
	// and take the short-circuit path.
	ResolveIfPending(ctx context.Context, qx any, reference string, status model.TransactionStatus, gatewayTxID, channel, gatewayResponse *string, paidAt *time.Time) (bool, error)
}
