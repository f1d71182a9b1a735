package service

import (
	"context"
	"testing"

	"homechat/internal/model"
	"homechat/pkg/broadcast"
	apperrors "homechat/pkg/errors"
	"homechat/pkg/signature"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhookBot(t *testing.T, e *testEnv, name string) *BotWithSecret {
	t.Helper()
	bot, err := e.bots.Create(context.Background(), CreateBotInput{Name: name})
	require.NoError(t, err)
	return bot
}

func receive(e *testEnv, bot *BotWithSecret, body string) (*WebhookResult, error) {
	raw := []byte(body)
	return e.webhooks.Receive(context.Background(), *bot.WebhookID, raw, signature.Sign(raw, bot.Secret))
}

func TestWebhook_CommandPing(t *testing.T) {
	e := newTestEnv(t)
	bot := newWebhookBot(t, e, "Doorbell")

	res, err := receive(e, bot, `{"action":"command","command":"ping"}`)
	require.NoError(t, err)
	require.NotNil(t, res.Message)
	assert.Equal(t, ActionCommand, res.Action)
	assert.Equal(t, "pong", res.Message.Content)
	assert.Equal(t, model.MessageBotResponse, res.Message.MessageType)
	assert.Equal(t, HomeAssistantChannel, res.Message.Channel.Name)
	assert.Equal(t, "doorbell", res.Message.User.Username)

	events := e.pub.On(broadcast.ChannelTopic(res.Message.ChannelID))
	require.Len(t, events, 1)
	assert.Equal(t, EventNewMessage, events[0].Type)
}

func TestWebhook_SendMessageToRoom(t *testing.T) {
	e := newTestEnv(t)
	bot := newWebhookBot(t, e, "Doorbell")

	res, err := receive(e, bot, `{"action":"send_message","message":"Someone is at the door","room_id":"front-door","title":"Doorbell"}`)
	require.NoError(t, err)
	assert.Equal(t, "front-door", res.Message.Channel.Name)
	assert.Equal(t, "**Doorbell**\nSomeone is at the door", res.Message.Content)
	assert.Equal(t, model.MessageBot, res.Message.MessageType)

	// 第二次调用复用同一个机器人用户
	res2, err := receive(e, bot, `{"action":"send_message","message":"again","room_id":"front-door"}`)
	require.NoError(t, err)
	assert.Equal(t, res.Message.UserID, res2.Message.UserID)
	assert.Equal(t, res.Message.ChannelID, res2.Message.ChannelID)
}

func TestWebhook_StatusUpdate(t *testing.T) {
	e := newTestEnv(t)
	bot := newWebhookBot(t, e, "Doorbell")

	res, err := receive(e, bot, `{"action":"status_update","status":"battery low"}`)
	require.NoError(t, err)
	assert.Equal(t, "bot-status", res.Message.Channel.Name)
	assert.Equal(t, model.MessageStatus, res.Message.MessageType)
	assert.Contains(t, res.Message.Content, "battery low")
}

func TestWebhook_EmptyMessageProducesNothing(t *testing.T) {
	e := newTestEnv(t)
	bot := newWebhookBot(t, e, "Doorbell")

	res, err := receive(e, bot, `{"action":"send_message","message":"  "}`)
	require.NoError(t, err)
	assert.Nil(t, res.Message)
	assert.Empty(t, e.pub.All())
}

func TestWebhook_Rejections(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	bot := newWebhookBot(t, e, "Doorbell")
	body := []byte(`{"action":"send_message","message":"hi"}`)

	_, err := e.webhooks.Receive(ctx, *bot.WebhookID, body, signature.Sign(body, "wrong"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)

	_, err = e.webhooks.Receive(ctx, "unknown", body, signature.Sign(body, bot.Secret))
	assert.ErrorIs(t, err, apperrors.ErrInvalidWebhook)

	bad := []byte(`{not json`)
	_, err = e.webhooks.Receive(ctx, *bot.WebhookID, bad, signature.Sign(bad, bot.Secret))
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(err))

	require.NoError(t, e.bots.SetActive(ctx, bot.ID, false))
	_, err = e.webhooks.Receive(ctx, *bot.WebhookID, body, signature.Sign(body, bot.Secret))
	assert.ErrorIs(t, err, apperrors.ErrInvalidWebhook)

	assert.Empty(t, e.pub.All())
}

func TestCommandReply(t *testing.T) {
	bot := &model.Bot{Name: "Doorbell"}
	assert.Equal(t, "pong", CommandReply(bot, "ping", nil))
	assert.Equal(t, "Bot Doorbell is active", CommandReply(bot, "status", nil))
	assert.Equal(t, "a b", CommandReply(bot, "echo", []string{"a", "b"}))
	assert.Equal(t, "Unknown command: dance", CommandReply(bot, "dance", nil))
}
