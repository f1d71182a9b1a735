package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StaleSweeper 将心跳超时的在线用户标记为离线
type StaleSweeper interface {
	SweepStale(ctx context.Context) (int, error)
}

// Pruner 清理过期的在线状态镜像
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}

// Sweeper 按 cron 表达式周期性清理在线状态
type Sweeper struct {
	presence StaleSweeper
	mirror   Pruner
	log      *zap.Logger
}

// NewSweeper mirror 可为 nil
func NewSweeper(presence StaleSweeper, mirror Pruner, log *zap.Logger) *Sweeper {
	return &Sweeper{presence: presence, mirror: mirror, log: log}
}

// Sweep 执行一次清理
func (s *Sweeper) Sweep(ctx context.Context) {
	n, err := s.presence.SweepStale(ctx)
	if err != nil {
		s.log.Error("清理超时在线用户失败", zap.Error(err))
	} else if n > 0 {
		s.log.Info("已将超时用户标记为离线", zap.Int("count", n))
	}

	if s.mirror == nil {
		return
	}
	pruned, err := s.mirror.Prune(ctx)
	if err != nil {
		s.log.Warn("清理在线状态镜像失败", zap.Error(err))
	} else if pruned > 0 {
		s.log.Debug("已清理在线状态镜像", zap.Int("count", pruned))
	}
}

// Run 按 cron 表达式调度清理任务直到 ctx 结束
func (s *Sweeper) Run(ctx context.Context, spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { s.Sweep(ctx) }); err != nil {
		return err
	}
	c.Start()
	s.log.Info("在线状态清理任务已启动", zap.String("spec", spec))

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
