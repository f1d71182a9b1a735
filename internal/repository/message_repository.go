package repository

import (
	"context"

	"homechat/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository 消息数据仓储，消息只增不改
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建MessageRepository实例
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// WithTx 返回绑定事务的仓储
func (r *MessageRepository) WithTx(tx *gorm.DB) *MessageRepository {
	return &MessageRepository{db: tx}
}

// Create 创建消息（不写关联）
func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(message).Error
}

// GetByID 根据ID获取消息
func (r *MessageRepository) GetByID(ctx context.Context, id uint) (*model.Message, error) {
	var message model.Message
	if err := r.db.WithContext(ctx).Preload("User").First(&message, id).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

// ListByChannel 频道内最新的消息（新的在前）
func (r *MessageRepository) ListByChannel(ctx context.Context, channelID uint, limit int) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("channel_id = ?", channelID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// ListInChannels 在给定频道集合（子查询）中的最新消息
func (r *MessageRepository) ListInChannels(ctx context.Context, channelIDs *gorm.DB, limit int) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Channel").
		Where("channel_id IN (?)", channelIDs).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// Last 频道内最后一条消息，没有时返回 nil
func (r *MessageRepository) Last(ctx context.Context, channelID uint) (*model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("channel_id = ?", channelID).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&messages).Error
	if err != nil || len(messages) == 0 {
		return nil, err
	}
	return &messages[0], nil
}

// CountByChannel 频道消息数
func (r *MessageRepository) CountByChannel(ctx context.Context, channelID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).Where("channel_id = ?", channelID).Count(&count).Error
	return count, err
}

// CountByUser 用户发送的消息数
func (r *MessageRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
