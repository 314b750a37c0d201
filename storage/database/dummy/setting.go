package dummydb

import (
	"context"

	"github.com/rkabuya/evaldesk/core"
	"github.com/rkabuya/evaldesk/core/setting"
)

type settingRepository struct {
	db *settingTable
}

var _ setting.Repository = (*settingRepository)(nil) // interface compliance check

func NewSettingRepository(db *DB) *settingRepository {
	return &settingRepository{db: db.setting}
}

func (repo *settingRepository) GetSetting(_ context.Context, key string, _ ...core.DBExecutor) (setting.Setting, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if value, ok := repo.db.table[key]; ok {
		return setting.Setting{Key: key, Value: value}, nil
	}
	return setting.Setting{}, setting.ErrNotFound
}

func (repo *settingRepository) UpsertSetting(_ context.Context, s setting.Setting, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[s.Key] = s.Value
	return nil
}
