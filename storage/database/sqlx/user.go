package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/rkabuya/evaldesk/core"
	"github.com/rkabuya/evaldesk/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) ext(exec []core.DBExecutor) sqlx.ExtContext {
	return extOf(repo.db, exec)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username string, exec ...core.DBExecutor) error {
	var exists bool
	err := sqlx.GetContext(ctx, repo.ext(exec), &exists,
		`SELECT EXISTS(SELECT 1 FROM "user" WHERE username = $1)`, username)
	if err != nil {
		return errors.Wrap(err, "checking username")
	}
	if exists {
		return user.ErrUsernameExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	err := sqlx.GetContext(ctx, repo.ext(exec), &usr.ID,
		`INSERT INTO "user" (username, password_hash, created_at) VALUES ($1, $2, $3) RETURNING id`,
		usr.Username, usr.PasswordHash, usr.CreatedAt,
	)
	return usr, err
}

func (repo userRepository) GetUserByUsername(ctx context.Context, username string, exec ...core.DBExecutor) (user.User, error) {
	var usr user.User
	err := sqlx.GetContext(ctx, repo.ext(exec), &usr,
		`SELECT id, username, password_hash, created_at, COALESCE(last_login, 'epoch'::timestamptz) AS last_login
		 FROM "user" WHERE username = $1`, username)
	if err == sql.ErrNoRows {
		return user.User{}, user.ErrNotFound
	}
	return usr, err
}

func (repo userRepository) SetUserPassword(ctx context.Context, id int, hash []byte, exec ...core.DBExecutor) error {
	_, err := repo.ext(exec).ExecContext(ctx, `UPDATE "user" SET password_hash = $1 WHERE id = $2`, hash, id)
	return err
}

func (repo userRepository) SetLastLogin(ctx context.Context, id int, t time.Time, exec ...core.DBExecutor) error {
	_, err := repo.ext(exec).ExecContext(ctx, `UPDATE "user" SET last_login = $1 WHERE id = $2`, t, id)
	return err
}
