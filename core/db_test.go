package core

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pkg/errors"
)

type stubTx struct {
	DBExecutor
	committed  bool
	rolledBack bool
}

func (tx *stubTx) Commit() error   { tx.committed = true; return nil }
func (tx *stubTx) Rollback() error { tx.rolledBack = true; return nil }

type stubDB struct {
	DBExecutor
	tx *stubTx
}

func (db stubDB) BeginTx(context.Context, *sql.TxOptions) (DBTransactor, error) {
	return db.tx, nil
}

func TestAtomicDB_RunInTx(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		tx := &stubTx{}
		adb := AtomicDB{DB: stubDB{tx: tx}}

		var got DBExecutor
		err := adb.RunInTx(context.Background(), func(exec DBExecutor) error {
			got = exec
			return nil
		})
		if err != nil {
			t.Fatalf("RunInTx(): %v", err)
		}
		if got != DBExecutor(tx) {
			t.Error("fn must receive the opened transaction")
		}
		if !tx.committed || tx.rolledBack {
			t.Errorf("committed = %t, rolledBack = %t; want committed only", tx.committed, tx.rolledBack)
		}
	})

	t.Run("rolls back on error", func(t *testing.T) {
		tx := &stubTx{}
		adb := AtomicDB{DB: stubDB{tx: tx}}

		boom := errors.New("boom")
		err := adb.RunInTx(context.Background(), func(DBExecutor) error { return boom })
		if err != boom {
			t.Fatalf("RunInTx() error = %v, want %v", err, boom)
		}
		if !tx.rolledBack || tx.committed {
			t.Errorf("committed = %t, rolledBack = %t; want rolled back only", tx.committed, tx.rolledBack)
		}
	})
}
