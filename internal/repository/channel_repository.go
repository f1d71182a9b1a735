package repository

import (
	"context"
	"strings"

	"homechat/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChannelRepository 频道数据仓储
type ChannelRepository struct {
	orm *gorm.DB
}

func NewChannelRepository(orm *gorm.DB) *ChannelRepository {
	return &ChannelRepository{orm: orm}
}

func (r *ChannelRepository) WithTx(tx *gorm.DB) *ChannelRepository {
	return &ChannelRepository{orm: tx}
}

func (r *ChannelRepository) Create(ctx context.Context, channel *model.Channel) error {
	return r.orm.WithContext(ctx).Create(channel).Error
}

// CreateIfAbsent 名称不存在时插入；已存在时把已有记录加载到 channel
func (r *ChannelRepository) CreateIfAbsent(ctx context.Context, channel *model.Channel) (bool, error) {
	res := r.orm.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(channel)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	existing, err := r.GetByName(ctx, channel.Name)
	if err != nil {
		return false, err
	}
	*channel = *existing
	return false, nil
}

func (r *ChannelRepository) GetByID(ctx context.Context, id uint) (*model.Channel, error) {
	var c model.Channel
	if err := r.orm.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ChannelRepository) GetByName(ctx context.Context, name string) (*model.Channel, error) {
	var c model.Channel
	if err := r.orm.WithContext(ctx).Where("name = ?", name).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// accessible 可访问条件：公开、创建者或成员
func (r *ChannelRepository) accessible(db *gorm.DB, userID uint) *gorm.DB {
	memberOf := r.orm.Model(&model.ChannelMembership{}).Select("channel_id").Where("user_id = ?", userID)
	return db.Where("channel_type = ? OR created_by_id = ? OR id IN (?)", model.ChannelPublic, userID, memberOf)
}

// ListAccessible 用户可访问的频道，按名称排序
func (r *ChannelRepository) ListAccessible(ctx context.Context, userID uint) ([]model.Channel, error) {
	var channels []model.Channel
	err := r.accessible(r.orm.WithContext(ctx), userID).Order("name ASC").Find(&channels).Error
	return channels, err
}

// AccessibleIDs 用户可访问频道的ID子查询
func (r *ChannelRepository) AccessibleIDs(userID uint) *gorm.DB {
	return r.accessible(r.orm.Model(&model.Channel{}).Select("id"), userID)
}

// Search 在可访问频道中按名称/描述搜索
func (r *ChannelRepository) Search(ctx context.Context, userID uint, query string, limit int) ([]model.Channel, error) {
	var channels []model.Channel
	like := "%" + strings.ToLower(query) + "%"
	err := r.accessible(r.orm.WithContext(ctx), userID).
		Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like).
		Order("name ASC").
		Limit(limit).
		Find(&channels).Error
	return channels, err
}

// Delete 删除频道及其消息、成员关系
func (r *ChannelRepository) Delete(ctx context.Context, id uint) error {
	return r.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("channel_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("channel_id = ?", id).Delete(&model.ChannelMembership{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Channel{}, id).Error
	})
}
