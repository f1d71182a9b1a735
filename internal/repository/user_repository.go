package repository

import (
	"context"
	"strings"
	"time"

	"homechat/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	orm *gorm.DB
}

func NewUserRepository(orm *gorm.DB) *UserRepository {
	return &UserRepository{orm: orm}
}

// WithTx 返回绑定事务的仓储
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{orm: tx}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.orm.WithContext(ctx).Create(user).Error
}

// CreateIfAbsent 用户名不存在时插入，存在时加载已有记录到 user
func (r *UserRepository) CreateIfAbsent(ctx context.Context, user *model.User) (bool, error) {
	res := r.orm.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "username"}}, DoNothing: true}).
		Create(user)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	existing, err := r.GetByUsername(ctx, user.Username)
	if err != nil {
		return false, err
	}
	*user = *existing
	return false, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := r.orm.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	if err := r.orm.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetFirstAdmin 获取最早的管理员
func (r *UserRepository) GetFirstAdmin(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := r.orm.WithContext(ctx).Where("role = ?", model.RoleAdmin).Order("id ASC").First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.orm.WithContext(ctx).Model(&model.User{}).Count(&count).Error
	return count, err
}

// UpdatePresence 更新在线标记与最近在线时间
func (r *UserRepository) UpdatePresence(ctx context.Context, id uint, online bool, at time.Time) error {
	return r.orm.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_online": online, "last_seen_at": at}).Error
}

// Touch 仅刷新最近在线时间
func (r *UserRepository) Touch(ctx context.Context, id uint, at time.Time) error {
	return r.orm.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("last_seen_at", at).Error
}

func (r *UserRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	return r.orm.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *UserRepository) UpdateRole(ctx context.Context, id uint, role string) error {
	return r.orm.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("role", role).Error
}

func (r *UserRepository) UpdatePushToken(ctx context.Context, id uint, token string) error {
	return r.orm.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("push_token", token).Error
}

// ListOnline 在线用户
func (r *UserRepository) ListOnline(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.orm.WithContext(ctx).Where("is_online = ?", true).Order("username ASC").Find(&users).Error
	return users, err
}

// ListStaleOnline 标记在线但 last_seen_at 早于 cutoff 的用户
func (r *UserRepository) ListStaleOnline(ctx context.Context, cutoff time.Time) ([]model.User, error) {
	var users []model.User
	err := r.orm.WithContext(ctx).
		Where("is_online = ? AND (last_seen_at IS NULL OR last_seen_at < ?)", true, cutoff).
		Find(&users).Error
	return users, err
}

// Search 按用户名模糊搜索
func (r *UserRepository) Search(ctx context.Context, query string, excludeID uint, limit int) ([]model.User, error) {
	var users []model.User
	err := r.orm.WithContext(ctx).
		Where("LOWER(username) LIKE ?", "%"+strings.ToLower(query)+"%").
		Where("id <> ?", excludeID).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

// Delete 删除用户及其消息、成员关系、创建的频道（连同频道内的消息与成员）
func (r *UserRepository) Delete(ctx context.Context, id uint) error {
	return r.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created := func() *gorm.DB {
			return tx.Model(&model.Channel{}).Select("id").Where("created_by_id = ?", id)
		}
		if err := tx.Where("channel_id IN (?)", created()).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("channel_id IN (?)", created()).Delete(&model.ChannelMembership{}).Error; err != nil {
			return err
		}
		if err := tx.Where("created_by_id = ?", id).Delete(&model.Channel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.ChannelMembership{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.User{}, id).Error
	})
}

// List 全部用户，按用户名排序
func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.orm.WithContext(ctx).Order("username ASC").Find(&users).Error
	return users, err
}
