package service

import (
	"context"
	"fmt"
	"strings"

	"homechat/internal/model"
	"homechat/internal/repository"
	apperrors "homechat/pkg/errors"
	"homechat/pkg/token"

	"go.uber.org/zap"
)

// TokenService API令牌管理，明文只在创建/重置时返回一次
type TokenService struct {
	tokens *repository.ApiTokenRepository
	log    *zap.Logger
}

func NewTokenService(tokens *repository.ApiTokenRepository, log *zap.Logger) *TokenService {
	return &TokenService{tokens: tokens, log: log}
}

// TokenInfo 令牌列表项，不含明文
type TokenInfo struct {
	*model.ApiToken
	Masked string `json:"masked_token"`
}

// IssuedToken 新签发的令牌，Plain 仅此一次可见
type IssuedToken struct {
	*model.ApiToken
	Plain string `json:"token"`
}

// Create 创建令牌
func (s *TokenService) Create(ctx context.Context, name string) (*IssuedToken, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Field("name", "Name can't be blank")
	}
	plain, err := token.Generate()
	if err != nil {
		return nil, apperrors.Internal("generate token", err)
	}
	t := &model.ApiToken{Name: name, TokenDigest: token.Digest(plain), Active: true}
	if err := s.tokens.Create(ctx, t); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperrors.ErrTokenNameTaken
		}
		return nil, fmt.Errorf("create token: %w", err)
	}
	s.log.Info("创建API令牌", zap.Uint("token_id", t.ID), zap.String("name", t.Name))
	return &IssuedToken{ApiToken: t, Plain: plain}, nil
}

// Regenerate 重置令牌，旧明文立即失效
func (s *TokenService) Regenerate(ctx context.Context, id uint) (*IssuedToken, error) {
	t, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	plain, err := token.Generate()
	if err != nil {
		return nil, apperrors.Internal("generate token", err)
	}
	t.TokenDigest = token.Digest(plain)
	if err := s.tokens.UpdateDigest(ctx, t.ID, t.TokenDigest); err != nil {
		return nil, fmt.Errorf("regenerate token: %w", err)
	}
	s.log.Info("重置API令牌", zap.Uint("token_id", t.ID))
	return &IssuedToken{ApiToken: t, Plain: plain}, nil
}

// Activate 启用
func (s *TokenService) Activate(ctx context.Context, id uint) error {
	return s.setActive(ctx, id, true)
}

// Deactivate 停用，立即生效
func (s *TokenService) Deactivate(ctx context.Context, id uint) error {
	return s.setActive(ctx, id, false)
}

func (s *TokenService) setActive(ctx context.Context, id uint, active bool) error {
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	if err := s.tokens.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	s.log.Info("更新API令牌状态", zap.Uint("token_id", id), zap.Bool("active", active))
	return nil
}

func (s *TokenService) Delete(ctx context.Context, id uint) error {
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	return s.tokens.Delete(ctx, id)
}

// List 列出令牌；只保存摘要，因此遮蔽的是摘要
func (s *TokenService) List(ctx context.Context) ([]TokenInfo, error) {
	tokens, err := s.tokens.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	out := make([]TokenInfo, 0, len(tokens))
	for i := range tokens {
		out = append(out, TokenInfo{ApiToken: &tokens[i], Masked: token.Mask(tokens[i].TokenDigest)})
	}
	return out, nil
}

func (s *TokenService) get(ctx context.Context, id uint) (*model.ApiToken, error) {
	t, err := s.tokens.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.ErrTokenNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}
