package repository

import (
	"context"
	"time"

	"homechat/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MembershipRepository 频道成员关系仓储
type MembershipRepository struct {
	orm *gorm.DB
}

func NewMembershipRepository(orm *gorm.DB) *MembershipRepository {
	return &MembershipRepository{orm: orm}
}

func (r *MembershipRepository) WithTx(tx *gorm.DB) *MembershipRepository {
	return &MembershipRepository{orm: tx}
}

// Add 条件插入：依赖 (channel_id, user_id) 唯一索引，已存在时不插入并返回 false
func (r *MembershipRepository) Add(ctx context.Context, channelID, userID uint, joinedAt time.Time) (bool, error) {
	m := &model.ChannelMembership{ChannelID: channelID, UserID: userID, JoinedAt: joinedAt}
	res := r.orm.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Remove 删除成员关系，返回是否删除了记录
func (r *MembershipRepository) Remove(ctx context.Context, channelID, userID uint) (bool, error) {
	res := r.orm.WithContext(ctx).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Delete(&model.ChannelMembership{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *MembershipRepository) Exists(ctx context.Context, channelID, userID uint) (bool, error) {
	var count int64
	err := r.orm.WithContext(ctx).Model(&model.ChannelMembership{}).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *MembershipRepository) Count(ctx context.Context, channelID uint) (int64, error) {
	var count int64
	err := r.orm.WithContext(ctx).Model(&model.ChannelMembership{}).
		Where("channel_id = ?", channelID).
		Count(&count).Error
	return count, err
}

// CountOnline 频道内在线成员数
func (r *MembershipRepository) CountOnline(ctx context.Context, channelID uint) (int64, error) {
	var count int64
	err := r.orm.WithContext(ctx).Model(&model.User{}).
		Joins("JOIN channel_membership ON channel_membership.user_id = user.id").
		Where("channel_membership.channel_id = ? AND user.is_online = ?", channelID, true).
		Count(&count).Error
	return count, err
}

// Members 频道成员，按用户名排序
func (r *MembershipRepository) Members(ctx context.Context, channelID uint) ([]model.User, error) {
	var users []model.User
	err := r.orm.WithContext(ctx).
		Joins("JOIN channel_membership ON channel_membership.user_id = user.id").
		Where("channel_membership.channel_id = ?", channelID).
		Order("user.username ASC").
		Find(&users).Error
	return users, err
}
