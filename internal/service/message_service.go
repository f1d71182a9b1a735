package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"homechat/internal/auth"
	"homechat/internal/model"
	"homechat/internal/repository"
	"homechat/pkg/broadcast"
	apperrors "homechat/pkg/errors"
	"homechat/pkg/push"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 消息限制
const (
	MaxMessageLength   = 2000
	DefaultHistorySize = 50
	MaxHistorySize     = 100
	AttachmentContent  = "Attachment"
	DefaultAPISender   = "Home Assistant"
	pushBodyLength     = 100
)

// MessageService 消息写入管道：鉴权 → 校验 → 公开频道自动加入 → 持久化 → 广播 → 推送
// 广播与推送在持久化成功之后显式调用，失败只记录日志
type MessageService struct {
	orm      *gorm.DB
	messages *repository.MessageRepository
	members  *repository.MembershipRepository
	users    *repository.UserRepository
	channels *ChannelService
	system   *SystemAccount
	pub      Publisher
	notifier push.Notifier
	log      *zap.Logger
	now      func() time.Time
}

// NewMessageService 创建MessageService实例
func NewMessageService(
	orm *gorm.DB,
	messages *repository.MessageRepository,
	members *repository.MembershipRepository,
	users *repository.UserRepository,
	channels *ChannelService,
	system *SystemAccount,
	pub Publisher,
	notifier push.Notifier,
	log *zap.Logger,
) *MessageService {
	return &MessageService{
		orm:      orm,
		messages: messages,
		members:  members,
		users:    users,
		channels: channels,
		system:   system,
		pub:      pub,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// IngestRequest 写入一条消息
type IngestRequest struct {
	Channel     *model.Channel
	Author      *model.User
	Content     string
	Attachments []string
	MessageType string
}

// ValidateContent 校验消息内容；只有附件时内容为 Attachment
func ValidateContent(content string, attachments []string) (string, error) {
	if strings.TrimSpace(content) == "" {
		if len(attachments) == 0 {
			return "", apperrors.ErrMessageRequired
		}
		content = AttachmentContent
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return "", apperrors.ErrMessageTooLong
	}
	return content, nil
}

// Ingest 写入消息并广播
func (s *MessageService) Ingest(ctx context.Context, req IngestRequest) (*model.Message, error) {
	ch, author := req.Channel, req.Author

	// 1. 鉴权：私有/私聊频道必须是成员
	ok, err := s.channels.IsAccessible(ctx, ch, author.ID)
	if err != nil {
		return nil, fmt.Errorf("check access: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrNotChannelMember
	}

	// 2. 校验
	content, err := ValidateContent(req.Content, req.Attachments)
	if err != nil {
		return nil, err
	}

	// 3. 持久化；公开频道首次发言自动加入，与消息写入同一事务
	// 新消息本身即代表成员变化，这里不单独广播成员数
	messageType := req.MessageType
	if messageType == "" {
		messageType = model.MessageChat
	}
	message := &model.Message{
		ChannelID:   ch.ID,
		UserID:      author.ID,
		Content:     content,
		Attachments: req.Attachments,
		MessageType: messageType,
	}
	err = s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ch.IsPublic() {
			if _, err := s.members.WithTx(tx).Add(ctx, ch.ID, author.ID, s.now()); err != nil {
				return fmt.Errorf("auto join: %w", err)
			}
		}
		return s.messages.WithTx(tx).Create(ctx, message)
	})
	if err != nil {
		return nil, apperrors.Internal("Failed to save message", err)
	}
	message.User = author
	message.Channel = ch

	// 4. 广播
	s.pub.Publish(broadcast.ChannelTopic(ch.ID), Event{
		Type:      EventNewMessage,
		Message:   NewMessageView(message),
		ChannelID: ch.ID,
		Timestamp: s.now(),
	})

	// 5. 推送
	s.notifyMembers(ctx, message)

	return message, nil
}

func (s *MessageService) notifyMembers(ctx context.Context, m *model.Message) {
	members, err := s.members.Members(ctx, m.ChannelID)
	if err != nil {
		s.log.Warn("获取推送对象失败", zap.Uint("channel_id", m.ChannelID), zap.Error(err))
		return
	}
	title := m.Channel.Name
	body := m.User.Username + ": " + truncate(m.Content, pushBodyLength)
	if m.Channel.IsDM() {
		title = m.User.Username
		body = truncate(m.Content, pushBodyLength)
	}
	for _, u := range members {
		if u.ID == m.UserID || u.PushToken == "" {
			continue
		}
		s.notifier.Notify(push.Notification{
			UserID:      u.ID,
			DeviceToken: u.PushToken,
			Title:       title,
			Body:        body,
			ChannelID:   m.ChannelID,
			MessageID:   m.ID,
		})
	}
}

func truncate(content string, length int) string {
	runes := []rune(content)
	if len(runes) <= length {
		return content
	}
	return string(runes[:length-3]) + "..."
}

// PostInput 频道内发消息
type PostInput struct {
	Content     string
	Attachments []string
}

// Post 以主体身份向频道发消息
func (s *MessageService) Post(ctx context.Context, p auth.Principal, channelID uint, in PostInput) (*model.Message, error) {
	ch, err := s.channels.Find(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return s.Ingest(ctx, IngestRequest{
		Channel:     ch,
		Author:      p.Actor(),
		Content:     in.Content,
		Attachments: in.Attachments,
		MessageType: model.MessageChat,
	})
}

// APIMessageInput 外部集成发消息
type APIMessageInput struct {
	Message string
	RoomID  string
	UserID  *uint
	Title   string
	Sender  string
}

// FormatAPIContent 标题加粗置顶，非默认发送方附加署名
func FormatAPIContent(message, title, sender string) string {
	content := message
	if strings.TrimSpace(title) != "" {
		content = "**" + title + "**\n" + content
	}
	if sender == "" {
		sender = DefaultAPISender
	}
	if sender != DefaultAPISender {
		content = content + "\n\n_From: " + sender + "_"
	}
	return content
}

// PostAPIMessage 按 room_id 查找或创建频道，未指定时使用默认频道
func (s *MessageService) PostAPIMessage(ctx context.Context, p auth.Principal, in APIMessageInput) (*model.Message, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, apperrors.Field("message", "Missing required parameter: message")
	}
	system, err := s.system.Get(ctx)
	if err != nil {
		return nil, err
	}

	var ch *model.Channel
	if room := strings.TrimSpace(in.RoomID); room != "" {
		ch, err = s.channels.FindOrCreateByName(ctx, room, system.ID, "Auto-created channel for Home Assistant integration")
	} else {
		ch, err = s.channels.DefaultChannel(ctx, system.ID)
	}
	if err != nil {
		return nil, err
	}

	author := p.Actor()
	if in.UserID != nil {
		if u, err := s.users.GetByID(ctx, *in.UserID); err == nil {
			author = u
		} else if !repository.IsNotFound(err) {
			return nil, fmt.Errorf("get user: %w", err)
		}
	}

	return s.Ingest(ctx, IngestRequest{
		Channel:     ch,
		Author:      author,
		Content:     FormatAPIContent(in.Message, in.Title, in.Sender),
		MessageType: model.MessageAPI,
	})
}

// SendDirect 给指定用户发私聊消息
func (s *MessageService) SendDirect(ctx context.Context, p auth.Principal, targetID uint, content string) (*model.Message, error) {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	author := p.Actor()
	if target.ID == author.ID {
		return nil, apperrors.ErrCannotDMSelf
	}
	ch, err := s.channels.FindOrCreateDM(ctx, author, target)
	if err != nil {
		return nil, err
	}
	return s.Ingest(ctx, IngestRequest{
		Channel:     ch,
		Author:      author,
		Content:     content,
		MessageType: model.MessageChat,
	})
}

// ClampLimit 分页大小，默认50，最大100
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistorySize
	}
	if limit > MaxHistorySize {
		return MaxHistorySize
	}
	return limit
}

// History 频道内最新的消息（新的在前）
func (s *MessageService) History(ctx context.Context, p auth.Principal, channelID uint, limit int) ([]model.Message, error) {
	ch, err := s.channels.Get(ctx, p, channelID)
	if err != nil {
		return nil, err
	}
	messages, err := s.messages.ListByChannel(ctx, ch.ID, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	for i := range messages {
		messages[i].Channel = ch
	}
	return messages, nil
}

// Recent 主体可访问的所有频道中最新的消息
func (s *MessageService) Recent(ctx context.Context, p auth.Principal, limit int) ([]model.Message, error) {
	ids := s.channels.accessibleIDs(auth.ActorID(p))
	messages, err := s.messages.ListInChannels(ctx, ids, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	return messages, nil
}
