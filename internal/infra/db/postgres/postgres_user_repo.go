package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-subscription-api/internal/domain"
	"saas-subscription-api/internal/domain/model"
	"saas-subscription-api/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

const userCols = `id, email, password_hash, full_name, subscription_tier, subscription_start_date, subscription_end_date, auto_renew, is_active, created_at, updated_at`

func (r *PostgresUserRepo) Save(ctx context.Context, qx any, u *model.User) error {
	const q = `
INSERT INTO users (
  id, email, password_hash, full_name, subscription_tier, subscription_start_date, subscription_end_date, auto_renew, is_active, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
) ON CONFLICT (id) DO UPDATE SET
  email=$2, password_hash=$3, full_name=$4, subscription_tier=$5,
  subscription_start_date=$6, subscription_end_date=$7, auto_renew=$8, is_active=$9, updated_at=$11;`

	_, err := execSQL(ctx, r.pool, qx, q, u.ID, u.Email, u.PasswordHash, u.FullName, u.SubscriptionTier, u.SubscriptionStartDate, u.SubscriptionEndDate, u.AutoRenew, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation on email
			return domain.ErrAlreadyExists
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, qx any, id string) (*model.User, error) {
	q := `SELECT ` + userCols + ` FROM users WHERE id=$1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *PostgresUserRepo) FindByEmail(ctx context.Context, qx any, email string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, email)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *PostgresUserRepo) UpdateSubscription(ctx context.Context, qx any, u *model.User) error {
	const q = `
UPDATE users SET subscription_tier=$2, subscription_start_date=$3, subscription_end_date=$4, auto_renew=$5, updated_at=NOW()
 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, qx, q, u.ID, u.SubscriptionTier, u.SubscriptionStartDate, u.SubscriptionEndDate, u.AutoRenew)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *PostgresUserRepo) ListExpired(ctx context.Context, qx any, now time.Time, limit int) ([]*model.User, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + userCols + ` FROM users
 WHERE subscription_tier <> 'free' AND subscription_end_date < $1 AND auto_renew = FALSE
 ORDER BY subscription_end_date ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, qx, q, now, limit)
	if err != nil {
		return nil, wrapListErr(err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

// DowngradeIfUnchanged applies the free transition only while the end date the
// sweep observed is still current, so a racing reconciliation that extended
// the window wins.
func (r *PostgresUserRepo) DowngradeIfUnchanged(ctx context.Context, qx any, userID string, endDate time.Time) (bool, error) {
	const q = `
UPDATE users SET subscription_tier='free', subscription_start_date=NULL, subscription_end_date=NULL, auto_renew=FALSE, updated_at=NOW()
 WHERE id=$1 AND subscription_tier <> 'free' AND subscription_end_date=$2;`
	cmd, err := execSQL(ctx, r.pool, qx, q, userID, endDate)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *PostgresUserRepo) ListExpiring(ctx context.Context, qx any, now, until time.Time) ([]*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users
 WHERE subscription_tier <> 'free' AND subscription_end_date > $1 AND subscription_end_date <= $2;`
	rows, err := queryRows(ctx, r.pool, qx, q, now, until)
	if err != nil {
		return nil, wrapListErr(err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.SubscriptionTier, &u.SubscriptionStartDate, &u.SubscriptionEndDate, &u.AutoRenew, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}

func collectUsers(rows pgx.Rows) ([]*model.User, error) {
	var out []*model.User
	for rows.Next() {
		u := new(model.User)
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.SubscriptionTier, &u.SubscriptionStartDate, &u.SubscriptionEndDate, &u.AutoRenew, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, u)
	}
	return out, nil
}
