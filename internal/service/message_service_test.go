package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"homechat/internal/model"
	"homechat/pkg/broadcast"
	apperrors "homechat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIngest_RejectsInvalidContentWithoutSideEffects(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice", model.RoleUser)
	ch := e.channel(t, "general", model.ChannelPublic, alice)

	cases := map[string]string{
		"empty":    "",
		"blank":    "   ",
		"too long": strings.Repeat("é", MaxMessageLength+1),
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.messages.Ingest(ctx, IngestRequest{Channel: ch, Author: alice, Content: content})
			assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(err))
		})
	}

	n, err := e.messagesRepo.CountByChannel(ctx, ch.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, e.pub.On(broadcast.ChannelTopic(ch.ID)))
}

func TestIngest_AcceptsMaximumLength(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice", model.RoleUser)
	ch := e.channel(t, "general", model.ChannelPublic, alice)

	m, err := e.messages.Ingest(context.Background(), IngestRequest{Channel: ch, Author: alice, Content: strings.Repeat("é", MaxMessageLength)})
	require.NoError(t, err)
	assert.NotZero(t, m.ID)
}

func TestIngest_AttachmentOnly(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice", model.RoleUser)
	ch := e.channel(t, "general", model.ChannelPublic, alice)

	m, err := e.messages.Ingest(context.Background(), IngestRequest{Channel: ch, Author: alice, Attachments: []string{"photo.jpg"}})
	require.NoError(t, err)
	assert.Equal(t, AttachmentContent, m.Content)
	assert.Equal(t, []string{"photo.jpg"}, m.Attachments)
}

func TestIngest_PublicChannelAutoJoinsWithSingleBroadcast(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice", model.RoleUser)
	bob := e.user(t, "bob", model.RoleUser)
	ch := e.channel(t, "general", model.ChannelPublic, alice)

	m, err := e.messages.Ingest(ctx, IngestRequest{Channel: ch, Author: bob, Content: "hi"})
	require.NoError(t, err)

	member, err := e.membersRepo.Exists(ctx, ch.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, member)

	events := e.pub.On(broadcast.ChannelTopic(ch.ID))
	require.Len(t, events, 1)
	assert.Equal(t, EventNewMessage, events[0].Type)
	require.NotNil(t, events[0].Message)
	assert.Equal(t, m.ID, events[0].Message.ID)
	assert.Equal(t, "bob", events[0].Message.User.Username)
	assert.Equal(t, "general", events[0].Message.Channel)
}

func TestIngest_FailedSaveRollsBackAutoJoin(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice", model.RoleUser)
	bob := e.user(t, "bob", model.RoleUser)
	ch := e.channel(t, "general", model.ChannelPublic, alice)

	// 消息表写入失败，成员关系写入正常
	require.NoError(t, e.orm.Callback().Create().Before("gorm:create").Register("test:fail_message", func(db *gorm.DB) {
		if db.Statement.Table == "message" {
			_ = db.AddError(errors.New("disk full"))
		}
	}))

	_, err := e.messages.Ingest(ctx, IngestRequest{Channel: ch, Author: bob, Content: "hi"})
	assert.Equal(t, apperrors.CodeInternal, apperrors.CodeOf(err))

	member, err := e.membersRepo.Exists(ctx, ch.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, member)
	assert.Empty(t, e.pub.On(broadcast.ChannelTopic(ch.ID)))
	assert.Empty(t, e.notifier.Sent())
}

func TestIngest_PrivateChannelRequiresMembership(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice", model.RoleUser)
	bob := e.user(t, "bob", model.RoleUser)
	ch := e.channel(t, "secret", model.ChannelPrivate, alice)

	_, err := e.messages.Ingest(ctx, IngestRequest{Channel: ch, Author: bob, Content: "let me in"})
	assert.ErrorIs(t, err, apperrors.ErrNotChannelMember)

	member, err := e.membersRepo.Exists(ctx, ch.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, member)
	assert.Empty(t, e.pub.On(broadcast.ChannelTopic(ch.ID)))
}

func TestIngest_NotifiesOtherMembers(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice", model.RoleUser)
	bob := e.user(t, "bob", model.RoleUser)
	carol := e.user(t, "carol", model.RoleUser)
	require.NoError(t, e.usersRepo.UpdatePushToken(ctx, alice.ID, "device-alice"))
	require.NoError(t, e.usersRepo.UpdatePushToken(ctx, bob.ID, "device-bob"))
	ch := e.channel(t, "general", model.ChannelPublic, alice)
	_, err := e.channels.AddMember(ctx, ch, bob.ID)
	require.NoError(t, err)
	_, err = e.channels.AddMember(ctx, ch, carol.ID)
	require.NoError(t, err)

	_, err = e.messages.Ingest(ctx, IngestRequest{Channel: ch, Author: alice, Content: "dinner is ready"})
	require.NoError(t, err)

	// alice 是作者，carol 没有设备令牌
	sent := e.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, bob.ID, sent[0].UserID)
	assert.Equal(t, "general", sent[0].Title)
	assert.Equal(t, "alice: dinner is ready", sent[0].Body)
}

func TestPost_UnknownChannel(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice", model.RoleUser)

	_, err := e.messages.Post(context.Background(), session(alice), 404, PostInput{Content: "hi"})
	assert.ErrorIs(t, err, apperrors.ErrChannelNotFound)
}

func TestFormatAPIContent(t *testing.T) {
	tests := []struct {
		name, message, title, sender, want string
	}{
		{"plain", "Door opened", "", "", "Door opened"},
		{"title", "Door opened", "Security", "", "**Security**\nDoor opened"},
		{"default sender", "Door opened", "", DefaultAPISender, "Door opened"},
		{"custom sender", "Door opened", "Security", "Node-RED", "**Security**\nDoor opened\n\n_From: Node-RED_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAPIContent(tt.message, tt.title, tt.sender))
		})
	}
}

func TestPostAPIMessage_CreatesRoomAndUsesSystemActor(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	m, err := e.messages.PostAPIMessage(ctx, e.tokenPrincipal(t), APIMessageInput{
		Message: "Garage left open",
		RoomID:  "garage",
		Title:   "Alert",
	})
	require.NoError(t, err)
	assert.Equal(t, model.MessageAPI, m.MessageType)
	assert.Equal(t, "**Alert**\nGarage left open", m.Content)
	assert.Equal(t, SystemUsername, m.User.Username)
	assert.Equal(t, "garage", m.Channel.Name)
	assert.True(t, m.Channel.IsPublic())
}

func TestPostAPIMessage_DefaultChannelAndExplicitAuthor(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice", model.RoleUser)
	e.channel(t, HomeChannel, model.ChannelPublic, alice)

	m, err := e.messages.PostAPIMessage(ctx, e.tokenPrincipal(t), APIMessageInput{Message: "hello", UserID: &alice.ID})
	require.NoError(t, err)
	assert.Equal(t, HomeChannel, m.Channel.Name)
	assert.Equal(t, alice.ID, m.UserID)

	_, err = e.messages.PostAPIMessage(ctx, e.tokenPrincipal(t), APIMessageInput{Message: " "})
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(err))
}

func TestSendDirect(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice", model.RoleUser)
	bob := e.user(t, "bob", model.RoleUser)

	m, err := e.messages.SendDirect(ctx, session(alice), bob.ID, "psst")
	require.NoError(t, err)
	assert.Equal(t, DMName(alice, bob), m.Channel.Name)

	_, err = e.messages.SendDirect(ctx, session(alice), alice.ID, "me")
	assert.ErrorIs(t, err, apperrors.ErrCannotDMSelf)

	_, err = e.messages.SendDirect(ctx, session(alice), 999, "ghost")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestHistoryAndRecent_RespectAccess(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice", model.RoleUser)
	bob := e.user(t, "bob", model.RoleUser)
	general := e.channel(t, "general", model.ChannelPublic, alice)
	secret := e.channel(t, "secret", model.ChannelPrivate, alice)
	for _, ch := range []uint{general.ID, secret.ID} {
		_, err := e.messages.Post(ctx, session(alice), ch, PostInput{Content: "message"})
		require.NoError(t, err)
	}

	_, err := e.messages.History(ctx, session(bob), secret.ID, 10)
	assert.ErrorIs(t, err, apperrors.ErrChannelForbidden)

	history, err := e.messages.History(ctx, session(bob), general.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	recent, err := e.messages.Recent(ctx, session(bob), 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, general.ID, recent[0].ChannelID)

	recent, err = e.messages.Recent(ctx, session(alice), 0)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultHistorySize, ClampLimit(0))
	assert.Equal(t, DefaultHistorySize, ClampLimit(-5))
	assert.Equal(t, 20, ClampLimit(20))
	assert.Equal(t, MaxHistorySize, ClampLimit(1000))
}
