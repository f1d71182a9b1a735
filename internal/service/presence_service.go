package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"homechat/internal/model"
	"homechat/internal/repository"
	"homechat/pkg/broadcast"
	apperrors "homechat/pkg/errors"
	"homechat/pkg/redis"

	"go.uber.org/zap"
)

// MaxStatusLength 状态文字最大长度
const MaxStatusLength = 100

// PresenceCache 在线状态镜像（Redis），失败只记录日志
type PresenceCache interface {
	Save(ctx context.Context, p redis.PresenceData) error
	Refresh(ctx context.Context, userID uint) error
}

// Connections 实时连接登记（WebSocket），持有连接的用户不会被超时清理
type Connections interface {
	IsOnline(userID uint) bool
}

// PresenceService 在线状态：连接/心跳/断开驱动，变化时广播到 presence 主题
// 同一用户的状态只由其自身连接写入，后写覆盖
type PresenceService struct {
	users    *repository.UserRepository
	pub      Publisher
	cache    PresenceCache
	conns    Connections
	ttl      time.Duration
	debounce time.Duration
	log      *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	published map[uint]time.Time // 心跳上线的最近广播时间
}

// PresenceOptions 超时与去抖配置
type PresenceOptions struct {
	TTL      time.Duration
	Debounce time.Duration
	// Connections 为 nil 时只按心跳时间判断
	Connections Connections
}

// NewPresenceService cache 可以为 nil
func NewPresenceService(users *repository.UserRepository, pub Publisher, cache PresenceCache, opts PresenceOptions, log *zap.Logger) *PresenceService {
	return &PresenceService{
		users:     users,
		pub:       pub,
		cache:     cache,
		conns:     opts.Connections,
		ttl:       opts.TTL,
		debounce:  opts.Debounce,
		log:       log,
		now:       time.Now,
		published: make(map[uint]time.Time),
	}
}

// MarkOnline 标记在线并广播
func (s *PresenceService) MarkOnline(ctx context.Context, userID uint) error {
	return s.transition(ctx, userID, true)
}

// MarkOffline 标记离线并广播
func (s *PresenceService) MarkOffline(ctx context.Context, userID uint) error {
	s.mu.Lock()
	delete(s.published, userID)
	s.mu.Unlock()
	return s.transition(ctx, userID, false)
}

func (s *PresenceService) transition(ctx context.Context, userID uint, online bool) error {
	now := s.now()
	if err := s.users.UpdatePresence(ctx, userID, online, now); err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	s.mirror(ctx, user)
	s.publish(user)
	return nil
}

// Heartbeat 刷新最近在线时间；离线用户被提升为在线
// 在线用户的心跳不广播，去抖窗口内的重复提升也不广播
func (s *PresenceService) Heartbeat(ctx context.Context, userID uint) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	now := s.now()

	if user.IsOnline {
		if err := s.users.Touch(ctx, userID, now); err != nil {
			return fmt.Errorf("touch presence: %w", err)
		}
		if s.cache != nil {
			if err := s.cache.Refresh(ctx, userID); err != nil {
				s.log.Warn("刷新在线状态缓存失败", zap.Uint("user_id", userID), zap.Error(err))
			}
		}
		return nil
	}

	if err := s.users.UpdatePresence(ctx, userID, true, now); err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	user.IsOnline = true
	user.LastSeenAt = &now
	s.mirror(ctx, user)

	s.mu.Lock()
	last, seen := s.published[userID]
	recent := seen && now.Sub(last) < s.debounce
	if !recent {
		s.published[userID] = now
	}
	s.mu.Unlock()

	if !recent {
		s.publish(user)
	}
	return nil
}

// SetStatus 更新状态文字并广播
func (s *PresenceService) SetStatus(ctx context.Context, userID uint, status string) (*model.User, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, apperrors.Field("status", "Status can't be blank")
	}
	if utf8.RuneCountInString(status) > MaxStatusLength {
		return nil, apperrors.Field("status", fmt.Sprintf("Status is too long (maximum is %d characters)", MaxStatusLength))
	}
	if err := s.users.UpdateStatus(ctx, userID, status); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.mirror(ctx, user)
	s.publish(user)
	return user, nil
}

// SweepStale 将超过 TTL 未心跳且没有实时连接的在线用户标记为离线，返回处理人数
// 仍持有连接的用户只刷新最近在线时间
func (s *PresenceService) SweepStale(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	now := s.now()
	stale, err := s.users.ListStaleOnline(ctx, now.Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("list stale presence: %w", err)
	}
	swept := 0
	for _, u := range stale {
		if s.conns != nil && s.conns.IsOnline(u.ID) {
			s.keepAlive(ctx, u.ID, now)
			continue
		}
		if err := s.MarkOffline(ctx, u.ID); err != nil {
			s.log.Warn("清理过期在线状态失败", zap.Uint("user_id", u.ID), zap.Error(err))
			continue
		}
		swept++
	}
	if swept > 0 {
		s.log.Info("清理过期在线状态", zap.Int("count", swept))
	}
	return swept, nil
}

func (s *PresenceService) keepAlive(ctx context.Context, userID uint, now time.Time) {
	if err := s.users.Touch(ctx, userID, now); err != nil {
		s.log.Warn("刷新在线时间失败", zap.Uint("user_id", userID), zap.Error(err))
		return
	}
	if s.cache != nil {
		if err := s.cache.Refresh(ctx, userID); err != nil {
			s.log.Warn("刷新在线状态缓存失败", zap.Uint("user_id", userID), zap.Error(err))
		}
	}
}

// Online 当前在线用户
func (s *PresenceService) Online(ctx context.Context) ([]model.User, error) {
	return s.users.ListOnline(ctx)
}

func (s *PresenceService) getUser(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *PresenceService) mirror(ctx context.Context, u *model.User) {
	if s.cache == nil {
		return
	}
	p := redis.PresenceData{UserID: u.ID, Username: u.Username, Online: u.IsOnline, Status: u.Status}
	if u.LastSeenAt != nil {
		p.LastSeen = *u.LastSeenAt
	}
	if err := s.cache.Save(ctx, p); err != nil {
		s.log.Warn("写入在线状态缓存失败", zap.Uint("user_id", u.ID), zap.Error(err))
	}
}

func (s *PresenceService) publish(u *model.User) {
	s.pub.Publish(broadcast.PresenceTopic, Event{
		Type:      EventPresence,
		User:      NewUserView(u),
		Timestamp: s.now(),
	})
}
