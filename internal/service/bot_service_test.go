package service

import (
	"context"
	"testing"

	"homechat/internal/model"
	apperrors "homechat/pkg/errors"
	"homechat/pkg/signature"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBotService_Create(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	hook, err := e.bots.Create(ctx, CreateBotInput{Name: "Doorbell"})
	require.NoError(t, err)
	assert.Equal(t, model.BotWebhook, hook.BotType)
	require.NotNil(t, hook.WebhookID)
	assert.NotEmpty(t, *hook.WebhookID)
	assert.Len(t, hook.Secret, 64)

	api, err := e.bots.Create(ctx, CreateBotInput{Name: "Scripts", BotType: model.BotAPI})
	require.NoError(t, err)
	assert.Nil(t, api.WebhookID)
	assert.Empty(t, api.Secret)

	_, err = e.bots.Create(ctx, CreateBotInput{Name: "Doorbell"})
	assert.ErrorIs(t, err, apperrors.ErrBotNameTaken)

	_, err = e.bots.Create(ctx, CreateBotInput{Name: "x", BotType: "email"})
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(err))
}

func TestBotService_RegenerateSecret(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	body := []byte(`{}`)

	hook, err := e.bots.Create(ctx, CreateBotInput{Name: "Doorbell"})
	require.NoError(t, err)
	oldSig := signature.Sign(body, hook.Secret)

	renewed, err := e.bots.RegenerateSecret(ctx, hook.ID)
	require.NoError(t, err)
	assert.NotEqual(t, hook.Secret, renewed.Secret)

	stored, err := e.bots.Get(ctx, hook.ID)
	require.NoError(t, err)
	assert.False(t, e.verifier.VerifyWebhookSignature(body, oldSig, stored))
	assert.True(t, e.verifier.VerifyWebhookSignature(body, signature.Sign(body, renewed.Secret), stored))

	api, err := e.bots.Create(ctx, CreateBotInput{Name: "Scripts", BotType: model.BotAPI})
	require.NoError(t, err)
	_, err = e.bots.RegenerateSecret(ctx, api.ID)
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(err))
}

func TestBotService_UpdateAndStatus(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	hook, err := e.bots.Create(ctx, CreateBotInput{Name: "Doorbell"})
	require.NoError(t, err)

	desc := "front door"
	bot, err := e.bots.Update(ctx, hook.ID, UpdateBotInput{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "front door", bot.Description)

	require.NoError(t, e.bots.SetActive(ctx, hook.ID, false))
	st, err := e.bots.Status(ctx, hook.ID)
	require.NoError(t, err)
	assert.Equal(t, "inactive", st.Status)
	assert.Zero(t, st.MessageCount)

	_, err = e.bots.Status(ctx, 999)
	assert.ErrorIs(t, err, apperrors.ErrBotNotFound)
}

func TestBotUsername(t *testing.T) {
	assert.Equal(t, "front-door-bot", BotUsername("Front Door Bot"))
	assert.Equal(t, "ha_sensor-1", BotUsername("HA_Sensor #1"))
	assert.Equal(t, "bot", BotUsername("  Bot!! "))
}
