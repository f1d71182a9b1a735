package repository

import (
	"context"
	"time"

	"homechat/internal/model"

	"gorm.io/gorm"
)

// ApiTokenRepository API令牌仓储，只按摘要查询
type ApiTokenRepository struct {
	orm *gorm.DB
}

func NewApiTokenRepository(orm *gorm.DB) *ApiTokenRepository {
	return &ApiTokenRepository{orm: orm}
}

func (r *ApiTokenRepository) Create(ctx context.Context, t *model.ApiToken) error {
	return r.orm.WithContext(ctx).Create(t).Error
}

func (r *ApiTokenRepository) GetByID(ctx context.Context, id uint) (*model.ApiToken, error) {
	var t model.ApiToken
	if err := r.orm.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *ApiTokenRepository) GetByName(ctx context.Context, name string) (*model.ApiToken, error) {
	var t model.ApiToken
	if err := r.orm.WithContext(ctx).Where("name = ?", name).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// FindActiveByDigest 按摘要查找启用中的令牌
func (r *ApiTokenRepository) FindActiveByDigest(ctx context.Context, digest string) (*model.ApiToken, error) {
	var t model.ApiToken
	err := r.orm.WithContext(ctx).
		Where("token_digest = ? AND active = ?", digest, true).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *ApiTokenRepository) TouchLastUsed(ctx context.Context, id uint, at time.Time) error {
	return r.orm.WithContext(ctx).Model(&model.ApiToken{}).Where("id = ?", id).Update("last_used_at", at).Error
}

func (r *ApiTokenRepository) UpdateDigest(ctx context.Context, id uint, digest string) error {
	return r.orm.WithContext(ctx).Model(&model.ApiToken{}).Where("id = ?", id).Update("token_digest", digest).Error
}

func (r *ApiTokenRepository) SetActive(ctx context.Context, id uint, active bool) error {
	return r.orm.WithContext(ctx).Model(&model.ApiToken{}).Where("id = ?", id).Update("active", active).Error
}

func (r *ApiTokenRepository) Delete(ctx context.Context, id uint) error {
	return r.orm.WithContext(ctx).Delete(&model.ApiToken{}, id).Error
}

func (r *ApiTokenRepository) List(ctx context.Context) ([]model.ApiToken, error) {
	var tokens []model.ApiToken
	err := r.orm.WithContext(ctx).Order("name ASC").Find(&tokens).Error
	return tokens, err
}

func (r *ApiTokenRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.orm.WithContext(ctx).Model(&model.ApiToken{}).Where("active = ?", true).Count(&count).Error
	return count, err
}
