package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceData 在线状态快照
type PresenceData struct {
	UserID   uint      `json:"user_id"`
	Username string    `json:"username"`
	Online   bool      `json:"online"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

// 在线状态相关key
const (
	PresenceKeyPrefix = "homechat:presence:user:" // 用户在线状态key前缀
	OnlineUsersKey    = "homechat:online:users"   // 在线用户集合key
)

// PresenceKey 用户在线状态key
func PresenceKey(userID uint) string {
	return PresenceKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

// PresenceMirror 将在线状态镜像到Redis，数据库仍是唯一可信来源
type PresenceMirror struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPresenceMirror ttl 与心跳超时一致，镜像过期即视为离线
func NewPresenceMirror(client *redis.Client, ttl time.Duration) *PresenceMirror {
	return &PresenceMirror{client: client, ttl: ttl}
}

// Save 写入用户在线状态并维护在线集合
func (m *PresenceMirror) Save(ctx context.Context, p PresenceData) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("序列化在线状态失败: %w", err)
	}

	pipe := m.client.TxPipeline()
	pipe.Set(ctx, PresenceKey(p.UserID), data, m.ttl)
	if p.Online {
		pipe.SAdd(ctx, OnlineUsersKey, p.UserID)
	} else {
		pipe.SRem(ctx, OnlineUsersKey, p.UserID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("更新在线状态失败: %w", err)
	}
	return nil
}

// Refresh 延长在线状态TTL
func (m *PresenceMirror) Refresh(ctx context.Context, userID uint) error {
	if err := m.client.Expire(ctx, PresenceKey(userID), m.ttl).Err(); err != nil {
		return fmt.Errorf("刷新用户在线状态失败: %w", err)
	}
	return nil
}

// OnlineIDs 在线用户ID列表
func (m *PresenceMirror) OnlineIDs(ctx context.Context) ([]uint, error) {
	members, err := m.client.SMembers(ctx, OnlineUsersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("获取在线用户列表失败: %w", err)
	}
	ids := make([]uint, 0, len(members))
	for _, member := range members {
		if id, err := strconv.ParseUint(member, 10, 64); err == nil {
			ids = append(ids, uint(id))
		}
	}
	return ids, nil
}

// Prune 清理集合中状态key已过期的用户
func (m *PresenceMirror) Prune(ctx context.Context) (int, error) {
	ids, err := m.OnlineIDs(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		n, err := m.client.Exists(ctx, PresenceKey(id)).Result()
		if err != nil {
			continue
		}
		if n == 0 {
			m.client.SRem(ctx, OnlineUsersKey, id)
			removed++
		}
	}
	return removed, nil
}
