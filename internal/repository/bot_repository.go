package repository

import (
	"context"

	"homechat/internal/model"

	"gorm.io/gorm"
)

// BotRepository 机器人仓储
type BotRepository struct {
	orm *gorm.DB
}

func NewBotRepository(orm *gorm.DB) *BotRepository {
	return &BotRepository{orm: orm}
}

func (r *BotRepository) Create(ctx context.Context, bot *model.Bot) error {
	return r.orm.WithContext(ctx).Create(bot).Error
}

func (r *BotRepository) GetByID(ctx context.Context, id uint) (*model.Bot, error) {
	var b model.Bot
	if err := r.orm.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BotRepository) GetByName(ctx context.Context, name string) (*model.Bot, error) {
	var b model.Bot
	if err := r.orm.WithContext(ctx).Where("name = ?", name).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// FindByWebhookID 按 webhook 路由键查找
func (r *BotRepository) FindByWebhookID(ctx context.Context, webhookID string) (*model.Bot, error) {
	var b model.Bot
	if err := r.orm.WithContext(ctx).Where("webhook_id = ?", webhookID).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BotRepository) List(ctx context.Context) ([]model.Bot, error) {
	var bots []model.Bot
	err := r.orm.WithContext(ctx).Order("name ASC").Find(&bots).Error
	return bots, err
}

// Update 更新指定字段
func (r *BotRepository) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.orm.WithContext(ctx).Model(&model.Bot{}).Where("id = ?", id).Updates(fields).Error
}

func (r *BotRepository) Delete(ctx context.Context, id uint) error {
	return r.orm.WithContext(ctx).Delete(&model.Bot{}, id).Error
}
