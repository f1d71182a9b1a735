package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"homechat/internal/model"
	"homechat/internal/repository"
	apperrors "homechat/pkg/errors"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// webhook 动作
const (
	ActionSendMessage  = "send_message"
	ActionStatusUpdate = "status_update"
	ActionCommand      = "command"
)

// WebhookPayload webhook 请求体，签名校验通过后才解析
type WebhookPayload struct {
	Action   string   `json:"action"`
	Message  string   `json:"message"`
	RoomID   string   `json:"room_id"`
	Title    string   `json:"title"`
	Status   string   `json:"status"`
	Priority string   `json:"priority"`
	Command  string   `json:"command"`
	Args     []string `json:"args"`
}

// WebhookResult 处理结果；Message 为空表示没有产生消息
type WebhookResult struct {
	Bot     *model.Bot
	Action  string
	Message *model.Message
}

// WebhookOptions 默认频道与限速
type WebhookOptions struct {
	DefaultRoom   string
	StatusRoom    string
	RatePerSecond int
}

// WebhookService 机器人 webhook 入口：校验签名 → 解析 → 按动作写入消息
type WebhookService struct {
	bots     *repository.BotRepository
	users    *repository.UserRepository
	verifier *Verifier
	channels *ChannelService
	messages *MessageService
	system   *SystemAccount
	opts     WebhookOptions
	log      *zap.Logger

	mu       sync.Mutex
	limiters map[uint]ratelimit.Limiter
}

func NewWebhookService(
	bots *repository.BotRepository,
	users *repository.UserRepository,
	verifier *Verifier,
	channels *ChannelService,
	messages *MessageService,
	system *SystemAccount,
	opts WebhookOptions,
	log *zap.Logger,
) *WebhookService {
	if opts.DefaultRoom == "" {
		opts.DefaultRoom = HomeAssistantChannel
	}
	if opts.StatusRoom == "" {
		opts.StatusRoom = "bot-status"
	}
	return &WebhookService{
		bots:     bots,
		users:    users,
		verifier: verifier,
		channels: channels,
		messages: messages,
		system:   system,
		opts:     opts,
		log:      log,
		limiters: make(map[uint]ratelimit.Limiter),
	}
}

// Receive 处理一次 webhook 调用，rawBody 为未经解析的原始请求体
func (s *WebhookService) Receive(ctx context.Context, webhookID string, rawBody []byte, signatureHeader string) (*WebhookResult, error) {
	bot, err := s.bots.FindByWebhookID(ctx, webhookID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.ErrInvalidWebhook
		}
		return nil, fmt.Errorf("find bot: %w", err)
	}
	if !bot.Active {
		return nil, apperrors.ErrInvalidWebhook
	}
	if !s.verifier.VerifyWebhookSignature(rawBody, signatureHeader, bot) {
		s.log.Warn("webhook签名校验失败", zap.Uint("bot_id", bot.ID), zap.String("webhook_id", webhookID))
		return nil, apperrors.ErrInvalidSignature
	}

	var payload WebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, apperrors.Field("body", "Invalid JSON payload")
	}

	s.limiter(bot.ID).Take()

	s.log.Info("收到webhook",
		zap.Uint("bot_id", bot.ID),
		zap.String("bot", bot.Name),
		zap.String("action", payload.Action),
	)

	result := &WebhookResult{Bot: bot, Action: payload.Action}
	switch payload.Action {
	case ActionSendMessage:
		result.Message, err = s.sendMessage(ctx, bot, payload.Message, payload.RoomID, payload.Title)
	case ActionStatusUpdate:
		result.Message, err = s.statusUpdate(ctx, bot, payload)
	case ActionCommand:
		result.Message, err = s.command(ctx, bot, payload)
	default:
		message := payload.Message
		if message == "" {
			message = string(rawBody)
		}
		result.Message, err = s.sendMessage(ctx, bot, message, payload.RoomID, "")
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *WebhookService) limiter(botID uint) ratelimit.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[botID]
	if !ok {
		if s.opts.RatePerSecond > 0 {
			l = ratelimit.New(s.opts.RatePerSecond)
		} else {
			l = ratelimit.NewUnlimited()
		}
		s.limiters[botID] = l
	}
	return l
}

func (s *WebhookService) sendMessage(ctx context.Context, bot *model.Bot, message, room, title string) (*model.Message, error) {
	if strings.TrimSpace(message) == "" {
		return nil, nil
	}
	content := message
	if strings.TrimSpace(title) != "" {
		content = "**" + title + "**\n" + content
	}
	return s.post(ctx, bot, room, content, model.MessageBot)
}

func (s *WebhookService) statusUpdate(ctx context.Context, bot *model.Bot, payload WebhookPayload) (*model.Message, error) {
	status := payload.Status
	if status == "" {
		status = payload.Message
	}
	s.log.Info("机器人状态更新", zap.String("bot", bot.Name), zap.String("status", status))
	if strings.TrimSpace(status) == "" {
		return nil, nil
	}
	return s.post(ctx, bot, s.opts.StatusRoom, "🤖 **Bot Status Update**: "+status, model.MessageStatus)
}

// CommandReply 命令的回复内容；空字符串表示不回复
func CommandReply(bot *model.Bot, command string, args []string) string {
	switch command {
	case "ping":
		return "pong"
	case "status":
		return fmt.Sprintf("Bot %s is active", bot.Name)
	case "echo":
		return strings.Join(args, " ")
	default:
		return "Unknown command: " + command
	}
}

func (s *WebhookService) command(ctx context.Context, bot *model.Bot, payload WebhookPayload) (*model.Message, error) {
	reply := CommandReply(bot, payload.Command, payload.Args)
	if strings.TrimSpace(reply) == "" {
		return nil, nil
	}
	return s.post(ctx, bot, payload.RoomID, reply, model.MessageBotResponse)
}

func (s *WebhookService) post(ctx context.Context, bot *model.Bot, room, content, messageType string) (*model.Message, error) {
	system, err := s.system.Get(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(room) == "" {
		room = s.opts.DefaultRoom
	}
	ch, err := s.channels.FindOrCreateByName(ctx, room, system.ID, "Auto-created channel for "+room)
	if err != nil {
		return nil, err
	}
	return s.messages.Ingest(ctx, IngestRequest{
		Channel:     ch,
		Author:      s.botUser(ctx, bot, system),
		Content:     content,
		MessageType: messageType,
	})
}

// botUser 机器人对应的用户，无法创建时使用系统用户
func (s *WebhookService) botUser(ctx context.Context, bot *model.Bot, system *model.User) *model.User {
	username := BotUsername(bot.Name)
	if n := len(username); n < MinUsername || n > MaxUsername || username == SystemUsername {
		return system
	}
	if u, err := s.users.GetByUsername(ctx, username); err == nil {
		return u
	}
	u, err := newLockedUser(username)
	if err != nil {
		s.log.Warn("创建机器人用户失败", zap.String("bot", bot.Name), zap.Error(err))
		return system
	}
	if _, err := s.users.CreateIfAbsent(ctx, u); err != nil {
		s.log.Warn("创建机器人用户失败", zap.String("bot", bot.Name), zap.Error(err))
		return system
	}
	return u
}

// BotUsername 机器人名转为用户名：小写，非字母数字替换为连字符
func BotUsername(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
