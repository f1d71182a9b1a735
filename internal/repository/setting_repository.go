package repository

import (
	"context"

	"homechat/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepository 键值配置仓储
type SettingRepository struct {
	orm *gorm.DB
}

func NewSettingRepository(orm *gorm.DB) *SettingRepository {
	return &SettingRepository{orm: orm}
}

// Get 返回值与是否存在
func (r *SettingRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var settings []model.Setting
	err := r.orm.WithContext(ctx).Where("setting_key = ?", key).Limit(1).Find(&settings).Error
	if err != nil || len(settings) == 0 {
		return "", false, err
	}
	return settings[0].Value, true, nil
}

// Set 写入（存在则覆盖）
func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	return r.orm.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "setting_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&model.Setting{Key: key, Value: value}).Error
}

func (r *SettingRepository) All(ctx context.Context) ([]model.Setting, error) {
	var settings []model.Setting
	err := r.orm.WithContext(ctx).Order("setting_key ASC").Find(&settings).Error
	return settings, err
}
