package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager provides a thin abstraction to execute a function within
// a database transaction, passing the underlying transaction handle via `qx`.
//
// Keeps use-case interfaces clean (no transaction types leaking out) while
// letting repository methods that accept `qx any` run tx-bound Exec/Query
// (SELECT ... FOR UPDATE and conditional updates) when a tx is present.
// Repositories MUST gracefully accept nil qx (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
