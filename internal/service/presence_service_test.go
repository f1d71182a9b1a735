package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"homechat/internal/model"
	"homechat/pkg/broadcast"
	apperrors "homechat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withClock(e *testEnv) *fakeClock {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	e.presence.now = clock.Now
	return clock
}

func TestMarkOnlineAndOffline(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice", model.RoleUser)

	require.NoError(t, e.presence.MarkOnline(ctx, alice.ID))
	u, err := e.usersRepo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, u.IsOnline)
	require.NotNil(t, u.LastSeenAt)

	require.NoError(t, e.presence.MarkOffline(ctx, alice.ID))
	u, err = e.usersRepo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, u.IsOnline)

	events := e.pub.On(broadcast.PresenceTopic)
	require.Len(t, events, 2)
	assert.Equal(t, EventPresence, events[0].Type)
	assert.True(t, events[0].User.IsOnline)
	assert.False(t, events[1].User.IsOnline)
	assert.Equal(t, "alice", events[1].User.Username)

	require.Len(t, e.cache.saved, 2)
	assert.True(t, e.cache.saved[0].Online)
	assert.False(t, e.cache.saved[1].Online)
}

func TestMarkOnline_UnknownUser(t *testing.T) {
	e := newTestEnv(t)
	err := e.presence.MarkOnline(context.Background(), 42)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	assert.Empty(t, e.pub.On(broadcast.PresenceTopic))
}

func TestHeartbeat_OnlineUserOnlyRefreshes(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	clock := withClock(e)
	alice := e.user(t, "alice", model.RoleUser)
	require.NoError(t, e.presence.MarkOnline(ctx, alice.ID))
	e.pub.Reset()

	clock.Advance(time.Minute)
	require.NoError(t, e.presence.Heartbeat(ctx, alice.ID))

	assert.Empty(t, e.pub.On(broadcast.PresenceTopic))
	assert.Equal(t, []uint{alice.ID}, e.cache.refreshed)

	u, err := e.usersRepo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, u.LastSeenAt)
	assert.True(t, u.LastSeenAt.Equal(clock.Now()))
}

func TestHeartbeat_PromotesOfflineUserWithDebounce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	clock := withClock(e)
	alice := e.user(t, "alice", model.RoleUser)

	require.NoError(t, e.presence.Heartbeat(ctx, alice.ID))
	require.Len(t, e.pub.On(broadcast.PresenceTopic), 1)

	// 其他途径把用户置为离线，去抖窗口内再次提升不广播
	require.NoError(t, e.usersRepo.UpdatePresence(ctx, alice.ID, false, clock.Now()))
	clock.Advance(2 * time.Second)
	require.NoError(t, e.presence.Heartbeat(ctx, alice.ID))
	assert.Len(t, e.pub.On(broadcast.PresenceTopic), 1)

	u, err := e.usersRepo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, u.IsOnline)

	require.NoError(t, e.usersRepo.UpdatePresence(ctx, alice.ID, false, clock.Now()))
	clock.Advance(6 * time.Second)
	require.NoError(t, e.presence.Heartbeat(ctx, alice.ID))
	assert.Len(t, e.pub.On(broadcast.PresenceTopic), 2)
}

func TestHeartbeat_AfterMarkOfflinePublishesAgain(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	withClock(e)
	alice := e.user(t, "alice", model.RoleUser)

	require.NoError(t, e.presence.Heartbeat(ctx, alice.ID))
	require.NoError(t, e.presence.MarkOffline(ctx, alice.ID))
	require.NoError(t, e.presence.Heartbeat(ctx, alice.ID))

	events := e.pub.On(broadcast.PresenceTopic)
	require.Len(t, events, 3)
	assert.True(t, events[2].User.IsOnline)
}

func TestSweepStale(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	clock := withClock(e)
	alice := e.user(t, "alice", model.RoleUser)
	bob := e.user(t, "bob", model.RoleUser)

	require.NoError(t, e.presence.MarkOnline(ctx, alice.ID))
	clock.Advance(90 * time.Second)
	require.NoError(t, e.presence.MarkOnline(ctx, bob.ID))
	clock.Advance(time.Minute)

	swept, err := e.presence.SweepStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	online, err := e.presence.Online(ctx)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, "bob", online[0].Username)

	swept, err = e.presence.SweepStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept)
}

// fakeConnections 持有实时连接的用户
type fakeConnections map[uint]bool

func (c fakeConnections) IsOnline(userID uint) bool { return c[userID] }

func TestSweepStale_KeepsConnectedUsersOnline(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice", model.RoleUser)
	bob := e.user(t, "bob", model.RoleUser)
	e.presence.conns = fakeConnections{alice.ID: true}
	clock := withClock(e)

	// 两人都只在连接时上线，之后没有心跳帧
	require.NoError(t, e.presence.MarkOnline(ctx, alice.ID))
	require.NoError(t, e.presence.MarkOnline(ctx, bob.ID))
	e.pub.Reset()
	clock.Advance(3 * time.Minute)

	swept, err := e.presence.SweepStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	u, err := e.usersRepo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, u.IsOnline)
	require.NotNil(t, u.LastSeenAt)
	assert.True(t, u.LastSeenAt.Equal(clock.Now()))
	assert.Contains(t, e.cache.refreshed, alice.ID)

	events := e.pub.On(broadcast.PresenceTopic)
	require.Len(t, events, 1)
	assert.Equal(t, "bob", events[0].User.Username)
	assert.False(t, events[0].User.IsOnline)

	// 刷新后的连接用户在下一个 TTL 内不再被处理
	clock.Advance(time.Minute)
	swept, err = e.presence.SweepStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept)
}

func TestSetStatus(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice", model.RoleUser)

	u, err := e.presence.SetStatus(ctx, alice.ID, "  cooking  ")
	require.NoError(t, err)
	assert.Equal(t, "cooking", u.Status)

	events := e.pub.On(broadcast.PresenceTopic)
	require.Len(t, events, 1)
	assert.Equal(t, "cooking", events[0].User.Status)

	_, err = e.presence.SetStatus(ctx, alice.ID, " ")
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(err))

	_, err = e.presence.SetStatus(ctx, alice.ID, strings.Repeat("x", MaxStatusLength+1))
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(err))
	assert.Len(t, e.pub.On(broadcast.PresenceTopic), 1)
}
