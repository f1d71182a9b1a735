package service

import (
	"context"
	"fmt"

	"homechat/internal/repository"

	"go.uber.org/zap"
)

// Bootstrap 启动时执行一次：系统用户与默认 home 频道，可重复执行
type Bootstrap struct {
	system   *SystemAccount
	users    *repository.UserRepository
	channels *ChannelService
	log      *zap.Logger
}

func NewBootstrap(system *SystemAccount, users *repository.UserRepository, channels *ChannelService, log *zap.Logger) *Bootstrap {
	return &Bootstrap{system: system, users: users, channels: channels, log: log}
}

func (b *Bootstrap) Run(ctx context.Context) error {
	system, err := b.system.Get(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap system user: %w", err)
	}

	// home 频道的创建者优先为最早的管理员
	creatorID := system.ID
	admin, err := b.users.GetFirstAdmin(ctx)
	switch {
	case err == nil:
		creatorID = admin.ID
	case !repository.IsNotFound(err):
		return fmt.Errorf("bootstrap find admin: %w", err)
	}

	home, err := b.channels.FindOrCreateByName(ctx, HomeChannel, creatorID, "Default home channel for all users")
	if err != nil {
		return fmt.Errorf("bootstrap home channel: %w", err)
	}
	b.log.Info("初始化完成",
		zap.Uint("system_user_id", system.ID),
		zap.Uint("home_channel_id", home.ID),
	)
	return nil
}
