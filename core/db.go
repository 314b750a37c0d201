package core

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

type (
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	// DB is a database handle that can open transactions. BeginTx returns
	// a DBTransactor so implementations can hand out richer transaction
	// values than *sql.Tx (the sqlx store returns *sqlx.Tx).
	DB interface {
		DBExecutor

		BeginTx(context.Context, *sql.TxOptions) (DBTransactor, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}

	// DBTransactionner can run a function within a single transaction;
	// the function receives the transaction as a DBExecutor to pass down
	// to repositories. Any error rolls the whole transaction back.
	DBTransactionner interface {
		RunInTx(ctx context.Context, fn func(tx DBExecutor) error) error
	}
)

// AtomicDB adapts a DB into a DBTransactionner.
type AtomicDB struct {
	DB
}

var _ DBTransactionner = (*AtomicDB)(nil)

func (adb AtomicDB) RunInTx(ctx context.Context, fn func(tx DBExecutor) error) error {
	tx, err := adb.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back transaction: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
