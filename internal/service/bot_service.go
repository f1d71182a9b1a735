package service

import (
	"context"
	"fmt"
	"strings"

	"homechat/internal/model"
	"homechat/internal/repository"
	apperrors "homechat/pkg/errors"
	"homechat/pkg/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BotService 机器人管理
type BotService struct {
	bots     *repository.BotRepository
	messages *repository.MessageRepository
	users    *repository.UserRepository
	log      *zap.Logger
}

func NewBotService(bots *repository.BotRepository, messages *repository.MessageRepository, users *repository.UserRepository, log *zap.Logger) *BotService {
	return &BotService{bots: bots, messages: messages, users: users, log: log}
}

// CreateBotInput 创建参数
type CreateBotInput struct {
	Name        string
	Description string
	BotType     string
	WebhookID   string
}

// BotWithSecret 新建或重置后的机器人，Secret 仅此一次可见
type BotWithSecret struct {
	*model.Bot
	Secret string `json:"webhook_secret,omitempty"`
}

// BotStatus 机器人状态摘要
type BotStatus struct {
	BotID        uint   `json:"bot_id"`
	Name         string `json:"name"`
	Active       bool   `json:"active"`
	Status       string `json:"status"`
	MessageCount int64  `json:"message_count"`
	LastActivity string `json:"last_activity"`
}

// Create 创建机器人；webhook 机器人自动生成路由键与密钥
func (s *BotService) Create(ctx context.Context, in CreateBotInput) (*BotWithSecret, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.Field("name", "Name can't be blank")
	}
	botType := in.BotType
	if botType == "" {
		botType = model.BotWebhook
	}
	if botType != model.BotWebhook && botType != model.BotAPI {
		return nil, apperrors.Field("bot_type", "Bot type is not included in the list")
	}

	bot := &model.Bot{Name: name, Description: in.Description, BotType: botType, Active: true}
	var secret string
	if bot.IsWebhook() {
		webhookID := in.WebhookID
		if webhookID == "" {
			webhookID = uuid.NewString()
		}
		bot.WebhookID = &webhookID

		var err error
		if secret, err = token.Generate(); err != nil {
			return nil, apperrors.Internal("generate webhook secret", err)
		}
		bot.WebhookSecret = secret
	}

	if err := s.bots.Create(ctx, bot); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperrors.ErrBotNameTaken
		}
		return nil, fmt.Errorf("create bot: %w", err)
	}
	s.log.Info("创建机器人", zap.Uint("bot_id", bot.ID), zap.String("name", bot.Name), zap.String("type", bot.BotType))
	return &BotWithSecret{Bot: bot, Secret: secret}, nil
}

// RegenerateSecret 重置 webhook 密钥，旧签名立即失效
func (s *BotService) RegenerateSecret(ctx context.Context, id uint) (*BotWithSecret, error) {
	bot, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !bot.IsWebhook() {
		return nil, apperrors.Field("bot_type", "Only webhook bots have a secret")
	}
	secret, err := token.Generate()
	if err != nil {
		return nil, apperrors.Internal("generate webhook secret", err)
	}
	if err := s.bots.Update(ctx, id, map[string]interface{}{"webhook_secret": secret}); err != nil {
		return nil, fmt.Errorf("regenerate secret: %w", err)
	}
	bot.WebhookSecret = secret
	s.log.Info("重置机器人密钥", zap.Uint("bot_id", id))
	return &BotWithSecret{Bot: bot, Secret: secret}, nil
}

// UpdateBotInput 可修改字段，nil 表示不修改
type UpdateBotInput struct {
	Name        *string
	Description *string
	Active      *bool
}

func (s *BotService) Update(ctx context.Context, id uint, in UpdateBotInput) (*model.Bot, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperrors.Field("name", "Name can't be blank")
		}
		fields["name"] = name
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.Active != nil {
		fields["active"] = *in.Active
	}
	if len(fields) > 0 {
		if err := s.bots.Update(ctx, id, fields); err != nil {
			if repository.IsDuplicate(err) {
				return nil, apperrors.ErrBotNameTaken
			}
			return nil, fmt.Errorf("update bot: %w", err)
		}
	}
	return s.Get(ctx, id)
}

func (s *BotService) SetActive(ctx context.Context, id uint, active bool) error {
	_, err := s.Update(ctx, id, UpdateBotInput{Active: &active})
	return err
}

func (s *BotService) Get(ctx context.Context, id uint) (*model.Bot, error) {
	bot, err := s.bots.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.ErrBotNotFound
		}
		return nil, fmt.Errorf("get bot: %w", err)
	}
	return bot, nil
}

func (s *BotService) List(ctx context.Context) ([]model.Bot, error) {
	return s.bots.List(ctx)
}

func (s *BotService) Delete(ctx context.Context, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.bots.Delete(ctx, id)
}

// Status 状态摘要，消息数按机器人对应用户统计
func (s *BotService) Status(ctx context.Context, id uint) (*BotStatus, error) {
	bot, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	st := &BotStatus{
		BotID:        bot.ID,
		Name:         bot.Name,
		Active:       bot.Active,
		Status:       "inactive",
		LastActivity: bot.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if bot.Active {
		st.Status = "active"
	}
	if u, err := s.users.GetByUsername(ctx, BotUsername(bot.Name)); err == nil {
		if st.MessageCount, err = s.messages.CountByUser(ctx, u.ID); err != nil {
			return nil, fmt.Errorf("count bot messages: %w", err)
		}
	}
	return st, nil
}
