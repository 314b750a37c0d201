// Package sqlxrepos implements the repositories on PostgreSQL via sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/rkabuya/evaldesk/core"
)

// int64Array converts ids for a Postgres ANY() clause. Always non-nil so an
// empty exclusion list encodes as '{}' rather than NULL.
func int64Array(ids []int) pq.Int64Array {
	arr := make(pq.Int64Array, 0, len(ids))
	for _, id := range ids {
		arr = append(arr, int64(id))
	}
	return arr
}

// txDB adapts a sqlx handle to core.DB so transactions handed out by
// core.AtomicDB are *sqlx.Tx values, which the repositories use directly.
type txDB struct {
	*sqlx.DB
}

var _ core.DB = txDB{}

// NewTxDB wraps db for use with core.AtomicDB.
func NewTxDB(db *sqlx.DB) core.DB {
	return txDB{DB: db}
}

func (d txDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.DBTransactor, error) {
	return d.DB.BeginTxx(ctx, opts)
}

// extOf resolves the executor for a call: the service-provided transaction
// when there is one, the repository's own handle otherwise.
func extOf(db *sqlx.DB, svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 && svcExec[0] != nil {
		if e, ok := svcExec[0].(sqlx.ExtContext); ok {
			return e
		}
	}
	return db
}
