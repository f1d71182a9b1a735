package service

import (
	"context"
	"fmt"
	"sync"

	"homechat/internal/model"
	"homechat/internal/repository"
	"homechat/pkg/password"
	"homechat/pkg/token"
)

// SystemUsername API令牌请求与自动创建的频道所使用的用户
const SystemUsername = "system"

// SystemAccount 系统用户，首次使用时条件插入，之后缓存
type SystemAccount struct {
	users *repository.UserRepository

	mu   sync.Mutex
	user *model.User
}

func NewSystemAccount(users *repository.UserRepository) *SystemAccount {
	return &SystemAccount{users: users}
}

// Get 返回系统用户，不存在时创建
func (a *SystemAccount) Get(ctx context.Context) (*model.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.user != nil {
		return a.user, nil
	}

	u, err := a.users.GetByUsername(ctx, SystemUsername)
	if err == nil {
		a.user = u
		return u, nil
	}
	if !repository.IsNotFound(err) {
		return nil, fmt.Errorf("get system user: %w", err)
	}

	u, err = newLockedUser(SystemUsername)
	if err != nil {
		return nil, err
	}
	if _, err := a.users.CreateIfAbsent(ctx, u); err != nil {
		return nil, fmt.Errorf("create system user: %w", err)
	}
	a.user = u
	return u, nil
}

// newLockedUser 使用随机密码的用户，无法登录
func newLockedUser(username string) (*model.User, error) {
	secret, err := token.Generate()
	if err != nil {
		return nil, err
	}
	hash, err := password.Hash(secret[:64])
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &model.User{
		Username:     username,
		PasswordHash: hash,
		Role:         model.RoleUser,
		Status:       model.DefaultStatus,
	}, nil
}
