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

func TestValidateBearerToken(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	issued, err := e.tokens.Create(ctx, "node-red")
	require.NoError(t, err)
	require.NotEmpty(t, issued.Plain)
	assert.NotEqual(t, issued.Plain, issued.TokenDigest)

	found, ok := e.verifier.ValidateBearerToken(ctx, issued.Plain)
	require.True(t, ok)
	assert.Equal(t, issued.ID, found.ID)
	assert.NotNil(t, found.LastUsedAt)

	_, ok = e.verifier.ValidateBearerToken(ctx, "")
	assert.False(t, ok)
	_, ok = e.verifier.ValidateBearerToken(ctx, "not-a-token")
	assert.False(t, ok)
}

func TestValidateBearerToken_DeactivatedImmediately(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	issued, err := e.tokens.Create(ctx, "node-red")
	require.NoError(t, err)

	require.NoError(t, e.tokens.Deactivate(ctx, issued.ID))
	_, ok := e.verifier.ValidateBearerToken(ctx, issued.Plain)
	assert.False(t, ok)

	require.NoError(t, e.tokens.Activate(ctx, issued.ID))
	_, ok = e.verifier.ValidateBearerToken(ctx, issued.Plain)
	assert.True(t, ok)
}

func TestRegenerateToken_InvalidatesOldValue(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	issued, err := e.tokens.Create(ctx, "node-red")
	require.NoError(t, err)

	renewed, err := e.tokens.Regenerate(ctx, issued.ID)
	require.NoError(t, err)
	assert.NotEqual(t, issued.Plain, renewed.Plain)

	_, ok := e.verifier.ValidateBearerToken(ctx, issued.Plain)
	assert.False(t, ok)
	_, ok = e.verifier.ValidateBearerToken(ctx, renewed.Plain)
	assert.True(t, ok)
}

func TestTokenService_Errors(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.tokens.Create(ctx, " ")
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(err))

	_, err = e.tokens.Create(ctx, "node-red")
	require.NoError(t, err)
	_, err = e.tokens.Create(ctx, "node-red")
	assert.ErrorIs(t, err, apperrors.ErrTokenNameTaken)

	assert.ErrorIs(t, e.tokens.Deactivate(ctx, 999), apperrors.ErrTokenNotFound)
	assert.ErrorIs(t, e.tokens.Delete(ctx, 999), apperrors.ErrTokenNotFound)
}

func TestTokenService_ListMasksDigest(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	issued, err := e.tokens.Create(ctx, "node-red")
	require.NoError(t, err)

	list, err := e.tokens.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotContains(t, list[0].Masked, issued.Plain)
	assert.Contains(t, list[0].Masked, "*")
}

func TestVerifyWebhookSignature(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	body := []byte(`{"action":"send_message","message":"hi"}`)

	hook, err := e.bots.Create(ctx, CreateBotInput{Name: "Doorbell"})
	require.NoError(t, err)
	apiBot, err := e.bots.Create(ctx, CreateBotInput{Name: "Scripts", BotType: model.BotAPI})
	require.NoError(t, err)

	assert.True(t, e.verifier.VerifyWebhookSignature(body, signature.Sign(body, hook.Secret), hook.Bot))
	assert.False(t, e.verifier.VerifyWebhookSignature(body, signature.Sign(body, "wrong"), hook.Bot))
	assert.False(t, e.verifier.VerifyWebhookSignature(append(body, ' '), signature.Sign(body, hook.Secret), hook.Bot))
	assert.False(t, e.verifier.VerifyWebhookSignature(body, "", hook.Bot))
	assert.False(t, e.verifier.VerifyWebhookSignature(body, signature.Sign(body, hook.Secret), nil))
	assert.False(t, e.verifier.VerifyWebhookSignature(body, signature.Sign(body, ""), apiBot.Bot))
}
