package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-subscription-api/internal/domain"
	"saas-subscription-api/internal/domain/model"
	"saas-subscription-api/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const txCols = `id, user_id, reference, gateway_transaction_id, amount, currency, status, plan_id, payment_channel, paid_at, gateway_response, meta, created_at, updated_at`

func (r *transactionRepo) Save(ctx context.Context, qx any, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (
  id, user_id, reference, gateway_transaction_id, amount, currency, status, plan_id, payment_channel, paid_at, gateway_response, meta, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
) ON CONFLICT (reference) DO UPDATE SET
  gateway_transaction_id=$4, status=$7, payment_channel=$9, paid_at=$10, gateway_response=$11, meta=$12, updated_at=$14;`

	_, err := execSQL(ctx, r.pool, qx, q, t.ID, t.UserID, t.Reference, t.GatewayTransactionID, t.Amount, t.Currency, t.Status, t.PlanID, t.PaymentChannel, t.PaidAt, t.GatewayResponse, t.Meta, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *transactionRepo) FindByReference(ctx context.Context, qx any, reference string) (*model.Transaction, error) {
	q := `SELECT ` + txCols + ` FROM transactions WHERE reference=$1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, qx, q, reference)
	if err != nil {
		return nil, err
	}
	return scanTransaction(row)
}

func (r *transactionRepo) ListByUser(ctx context.Context, qx any, userID string) ([]*model.Transaction, error) {
	const q = `SELECT ` + txCols + ` FROM transactions WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, qx, q, userID)
	if err != nil {
		return nil, wrapListErr(err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *transactionRepo) ListPendingOlderThan(ctx context.Context, qx any, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + txCols + ` FROM transactions WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, qx, q, olderThan, limit)
	if err != nil {
		return nil, wrapListErr(err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ResolveIfPending atomically updates status only when the row is still
// pending. This is the per-reference serialization point: whichever of
// webhook, poll or reconciler gets here first wins.
func (r *transactionRepo) ResolveIfPending(
	ctx context.Context, qx any, reference string, status model.TransactionStatus, gatewayTxID, channel, gatewayResponse *string, paidAt *time.Time,
) (bool, error) {
	const q = `
    UPDATE transactions
       SET status = $2,
           gateway_transaction_id = COALESCE($3, gateway_transaction_id),
           payment_channel = COALESCE($4, payment_channel),
           gateway_response = COALESCE($5, gateway_response),
           paid_at = COALESCE($6, paid_at),
           updated_at = NOW()
     WHERE reference = $1
       AND status = 'pending';`

	cmd, err := execSQL(ctx, r.pool, qx, q, reference, string(status), gatewayTxID, channel, gatewayResponse, paidAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	t := &model.Transaction{}
	if err := row.Scan(&t.ID, &t.UserID, &t.Reference, &t.GatewayTransactionID, &t.Amount, &t.Currency, &t.Status, &t.PlanID, &t.PaymentChannel, &t.PaidAt, &t.GatewayResponse, &t.Meta, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return t, nil
}

func collectTransactions(rows pgx.Rows) ([]*model.Transaction, error) {
	var out []*model.Transaction
	for rows.Next() {
		t := new(model.Transaction)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Reference, &t.GatewayTransactionID, &t.Amount, &t.Currency, &t.Status, &t.PlanID, &t.PaymentChannel, &t.PaidAt, &t.GatewayResponse, &t.Meta, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	return out, nil
}

func wrapListErr(err error) error {
	switch err {
	case pgx.ErrNoRows:
		return domain.ErrNotFound
	case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
		return err
	default:
		return domain.ErrOperationFailed
	}
}
