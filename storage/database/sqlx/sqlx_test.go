package sqlxrepos

import (
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/rkabuya/evaldesk/core"
)

// transactions handed out by txDB must be usable both as the services'
// executor and directly by the repositories
var (
	_ core.DBTransactor = (*sqlx.Tx)(nil)
	_ sqlx.ExtContext   = (*sqlx.Tx)(nil)
)

func TestExtOf(t *testing.T) {
	db := sqlx.NewDb(new(sql.DB), "postgres")

	if got := extOf(db, nil); got != sqlx.ExtContext(db) {
		t.Error("extOf() without an executor must return the handle")
	}
	if got := extOf(db, []core.DBExecutor{nil}); got != sqlx.ExtContext(db) {
		t.Error("extOf() with a nil executor must return the handle")
	}

	tx := &sqlx.Tx{}
	if got := extOf(db, []core.DBExecutor{tx}); got != sqlx.ExtContext(tx) {
		t.Error("extOf() must return the service-provided transaction")
	}
}
