package service

import (
	"context"
	"time"

	"homechat/internal/model"
	"homechat/internal/repository"
	"homechat/pkg/signature"
	"homechat/pkg/token"

	"go.uber.org/zap"
)

// Verifier 校验外部调用方：API 令牌与 webhook 签名
type Verifier struct {
	tokens *repository.ApiTokenRepository
	log    *zap.Logger
	now    func() time.Time
}

func NewVerifier(tokens *repository.ApiTokenRepository, log *zap.Logger) *Verifier {
	return &Verifier{tokens: tokens, log: log, now: time.Now}
}

// ValidateBearerToken 按摘要查找启用中的令牌，成功时记录使用时间
// 失败不区分“缺失”与“无效”
func (v *Verifier) ValidateBearerToken(ctx context.Context, plain string) (*model.ApiToken, bool) {
	if plain == "" {
		return nil, false
	}
	t, err := v.tokens.FindActiveByDigest(ctx, token.Digest(plain))
	if err != nil {
		if !repository.IsNotFound(err) {
			v.log.Error("查询API令牌失败", zap.Error(err))
		}
		return nil, false
	}

	now := v.now()
	if err := v.tokens.TouchLastUsed(ctx, t.ID, now); err != nil {
		v.log.Warn("更新令牌使用时间失败", zap.Uint("token_id", t.ID), zap.Error(err))
	}
	t.LastUsedAt = &now
	return t, true
}

// VerifyWebhookSignature 对原始请求体校验 HMAC-SHA256 签名
func (v *Verifier) VerifyWebhookSignature(payload []byte, header string, bot *model.Bot) bool {
	if bot == nil || !bot.IsWebhook() || bot.WebhookSecret == "" {
		return false
	}
	return signature.Verify(payload, header, bot.WebhookSecret)
}
