package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/rkabuya/evaldesk/core"
	"github.com/rkabuya/evaldesk/core/setting"
)

type settingRepository struct {
	db *sqlx.DB
}

var _ setting.Repository = (*settingRepository)(nil) // interface compliance check

func NewSettingRepository(db *sqlx.DB) *settingRepository {
	return &settingRepository{db: db}
}

func (repo settingRepository) GetSetting(ctx context.Context, key string, exec ...core.DBExecutor) (setting.Setting, error) {
	var s setting.Setting
	err := sqlx.GetContext(ctx, extOf(repo.db, exec), &s, `SELECT * FROM setting WHERE key = $1`, key)
	if err == sql.ErrNoRows {
		return setting.Setting{}, setting.ErrNotFound
	}
	return s, err
}

func (repo settingRepository) UpsertSetting(ctx context.Context, s setting.Setting, exec ...core.DBExecutor) error {
	_, err := extOf(repo.db, exec).ExecContext(ctx,
		`INSERT INTO setting (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		s.Key, s.Value,
	)
	return err
}
