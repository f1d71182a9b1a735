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

// 默认频道
const (
	HomeChannel          = "home"
	GeneralChannel       = "general"
	HomeAssistantChannel = "home-assistant"
)

// 频道字段限制
const (
	MinChannelName        = 2
	MaxChannelName        = 50
	MaxChannelDescription = 500
)

// ChannelService 频道与成员关系
// 成员关系的唯一性由 (channel_id, user_id) 唯一索引保证，加入为条件插入
type ChannelService struct {
	orm      *gorm.DB
	channels *repository.ChannelRepository
	members  *repository.MembershipRepository
	users    *repository.UserRepository
	messages *repository.MessageRepository
	pub      Publisher
	notifier push.Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewChannelService(
	orm *gorm.DB,
	channels *repository.ChannelRepository,
	members *repository.MembershipRepository,
	users *repository.UserRepository,
	messages *repository.MessageRepository,
	pub Publisher,
	notifier push.Notifier,
	log *zap.Logger,
) *ChannelService {
	return &ChannelService{
		orm:      orm,
		channels: channels,
		members:  members,
		users:    users,
		messages: messages,
		pub:      pub,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// ChannelSummary 频道列表项
type ChannelSummary struct {
	*model.Channel
	MemberCount       int64        `json:"member_count"`
	OnlineMemberCount int64        `json:"online_member_count"`
	LastMessage       *MessageView `json:"last_message"`
	IsMember          bool         `json:"is_member"`
}

// CreateChannelInput 创建频道参数
type CreateChannelInput struct {
	Name        string
	Description string
	Type        string
}

// IsAccessible 公开频道、创建者或成员可访问
func (s *ChannelService) IsAccessible(ctx context.Context, ch *model.Channel, userID uint) (bool, error) {
	if ch.IsPublic() || ch.CreatedByID == userID {
		return true, nil
	}
	return s.members.Exists(ctx, ch.ID, userID)
}

// AddMember 条件插入成员关系；已是成员返回 false
// 插入成功时广播成员数
func (s *ChannelService) AddMember(ctx context.Context, ch *model.Channel, userID uint) (bool, error) {
	added, err := s.members.Add(ctx, ch.ID, userID, s.now())
	if err != nil {
		return false, fmt.Errorf("add member: %w", err)
	}
	if added {
		s.publishMemberCount(ctx, ch.ID)
	}
	return added, nil
}

// RemoveMember 删除成员关系；不是成员返回 false
func (s *ChannelService) RemoveMember(ctx context.Context, ch *model.Channel, userID uint) (bool, error) {
	removed, err := s.members.Remove(ctx, ch.ID, userID)
	if err != nil {
		return false, fmt.Errorf("remove member: %w", err)
	}
	if removed {
		s.publishMemberCount(ctx, ch.ID)
	}
	return removed, nil
}

func (s *ChannelService) publishMemberCount(ctx context.Context, channelID uint) {
	count, err := s.members.Count(ctx, channelID)
	if err != nil {
		s.log.Warn("统计频道成员数失败", zap.Uint("channel_id", channelID), zap.Error(err))
		return
	}
	s.pub.Publish(broadcast.ChannelTopic(channelID), Event{
		Type:      EventMemberCount,
		ChannelID: channelID,
		Count:     &count,
		Timestamp: s.now(),
	})
}

// DMPrefix 私聊频道名前缀，普通频道不可使用
const DMPrefix = "dm-"

// DMName 私聊频道名 dm-<小ID>-<大ID>，与参数顺序无关
// 用户ID不含分隔符，不同的两人组合不会得到同一个名字
func DMName(a, b *model.User) string {
	lo, hi := a.ID, b.ID
	if hi < lo {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("%s%d-%d", DMPrefix, lo, hi)
}

// FindOrCreateDM 查找或创建两人私聊频道
// 频道按名称条件插入，重复或并发调用得到同一行
// 已存在的频道只允许补回这两人中退出的一方，出现其他成员时拒绝
func (s *ChannelService) FindOrCreateDM(ctx context.Context, a, b *model.User) (*model.Channel, error) {
	if a.ID == b.ID {
		return nil, apperrors.ErrCannotDMSelf
	}
	ch := &model.Channel{Name: DMName(a, b), Type: model.ChannelDM, CreatedByID: a.ID}

	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.channels.WithTx(tx).CreateIfAbsent(ctx, ch)
		if err != nil {
			return err
		}
		if !created && !ch.IsDM() {
			return apperrors.ErrChannelNameTaken
		}
		members := s.members.WithTx(tx)
		if !created {
			current, err := members.Members(ctx, ch.ID)
			if err != nil {
				return err
			}
			for _, u := range current {
				if u.ID != a.ID && u.ID != b.ID {
					return apperrors.ErrDMConflict
				}
			}
		}
		now := s.now()
		for _, id := range []uint{a.ID, b.ID} {
			if _, err := members.Add(ctx, ch.ID, id, now); err != nil {
				return err
			}
		}
		if created {
			s.log.Info("创建私聊频道", zap.Uint("channel_id", ch.ID), zap.String("name", ch.Name))
		}
		return nil
	})
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("find or create dm: %w", err)
	}
	return ch, nil
}

// StartDM 按用户名开始私聊
func (s *ChannelService) StartDM(ctx context.Context, p auth.Principal, username string) (*model.Channel, []model.User, error) {
	target, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, apperrors.ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}
	ch, err := s.FindOrCreateDM(ctx, p.Actor(), target)
	if err != nil {
		return nil, nil, err
	}
	members, err := s.members.Members(ctx, ch.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list members: %w", err)
	}
	return ch, members, nil
}

func validateChannel(name, description string) error {
	fields := map[string]string{}
	if n := utf8.RuneCountInString(name); n < MinChannelName || n > MaxChannelName {
		fields["name"] = fmt.Sprintf("Name must be between %d and %d characters", MinChannelName, MaxChannelName)
	}
	if strings.HasPrefix(strings.ToLower(name), DMPrefix) {
		fields["name"] = "Names starting with dm- are reserved for direct messages"
	}
	if utf8.RuneCountInString(description) > MaxChannelDescription {
		fields["description"] = fmt.Sprintf("Description is too long (maximum is %d characters)", MaxChannelDescription)
	}
	if len(fields) > 0 {
		return apperrors.Validation("Channel is invalid", fields)
	}
	return nil
}

// Create 创建公开或私有频道，创建者自动加入
func (s *ChannelService) Create(ctx context.Context, creator *model.User, in CreateChannelInput) (*model.Channel, error) {
	name := strings.TrimSpace(in.Name)
	description := strings.TrimSpace(in.Description)
	if err := validateChannel(name, description); err != nil {
		return nil, err
	}
	channelType := in.Type
	if channelType == "" {
		channelType = model.ChannelPublic
	}
	if channelType != model.ChannelPublic && channelType != model.ChannelPrivate {
		return nil, apperrors.Field("type", "Channel type is not included in the list")
	}

	ch := &model.Channel{Name: name, Description: description, Type: channelType, CreatedByID: creator.ID}
	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.channels.WithTx(tx).Create(ctx, ch); err != nil {
			return err
		}
		_, err := s.members.WithTx(tx).Add(ctx, ch.ID, creator.ID, s.now())
		return err
	})
	if err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperrors.ErrChannelNameTaken
		}
		return nil, fmt.Errorf("create channel: %w", err)
	}
	s.log.Info("创建频道", zap.Uint("channel_id", ch.ID), zap.String("name", ch.Name), zap.String("type", ch.Type))
	return ch, nil
}

// Find 按ID获取频道，不做访问检查
func (s *ChannelService) Find(ctx context.Context, id uint) (*model.Channel, error) {
	ch, err := s.channels.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.ErrChannelNotFound
		}
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return ch, nil
}

// Get 获取主体可访问的频道
func (s *ChannelService) Get(ctx context.Context, p auth.Principal, id uint) (*model.Channel, error) {
	ch, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureAccess(ctx, ch, p); err != nil {
		return nil, err
	}
	return ch, nil
}

func (s *ChannelService) ensureAccess(ctx context.Context, ch *model.Channel, p auth.Principal) error {
	ok, err := s.IsAccessible(ctx, ch, auth.ActorID(p))
	if err != nil {
		return fmt.Errorf("check access: %w", err)
	}
	if !ok {
		return apperrors.ErrChannelForbidden
	}
	return nil
}

// ListAccessible 主体可访问的频道及其概况
func (s *ChannelService) ListAccessible(ctx context.Context, p auth.Principal) ([]ChannelSummary, error) {
	userID := auth.ActorID(p)
	channels, err := s.channels.ListAccessible(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	out := make([]ChannelSummary, 0, len(channels))
	for i := range channels {
		summary, err := s.summarize(ctx, &channels[i], userID)
		if err != nil {
			return nil, err
		}
		out = append(out, *summary)
	}
	return out, nil
}

func (s *ChannelService) summarize(ctx context.Context, ch *model.Channel, userID uint) (*ChannelSummary, error) {
	summary := &ChannelSummary{Channel: ch}
	var err error
	if summary.MemberCount, err = s.members.Count(ctx, ch.ID); err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}
	if summary.OnlineMemberCount, err = s.members.CountOnline(ctx, ch.ID); err != nil {
		return nil, fmt.Errorf("count online members: %w", err)
	}
	if summary.IsMember, err = s.members.Exists(ctx, ch.ID, userID); err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	last, err := s.messages.Last(ctx, ch.ID)
	if err != nil {
		return nil, fmt.Errorf("last message: %w", err)
	}
	if last != nil {
		summary.LastMessage = NewMessageView(last)
	}
	return summary, nil
}

// Delete 删除频道及其消息、成员关系，仅创建者或管理员
func (s *ChannelService) Delete(ctx context.Context, p auth.Principal, id uint) error {
	ch, err := s.Find(ctx, id)
	if err != nil {
		return err
	}
	if ch.CreatedByID != auth.ActorID(p) && !auth.IsAdmin(p) {
		return apperrors.ErrChannelForbidden
	}
	if err := s.channels.Delete(ctx, ch.ID); err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	s.log.Info("删除频道", zap.Uint("channel_id", ch.ID), zap.String("name", ch.Name))
	return nil
}

// Join 加入可访问的频道
func (s *ChannelService) Join(ctx context.Context, p auth.Principal, id uint) (*model.Channel, error) {
	ch, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	added, err := s.AddMember(ctx, ch, auth.ActorID(p))
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, apperrors.ErrAlreadyMember
	}
	return ch, nil
}

// Leave 退出频道
func (s *ChannelService) Leave(ctx context.Context, p auth.Principal, id uint) error {
	ch, err := s.Find(ctx, id)
	if err != nil {
		return err
	}
	removed, err := s.RemoveMember(ctx, ch, auth.ActorID(p))
	if err != nil {
		return err
	}
	if !removed {
		return apperrors.ErrNotMember
	}
	return nil
}

// Invite 邀请用户加入私有频道，仅创建者或管理员
func (s *ChannelService) Invite(ctx context.Context, p auth.Principal, channelID uint, username string) (*model.User, error) {
	ch, err := s.Find(ctx, channelID)
	if err != nil {
		return nil, err
	}
	inviter := p.Actor()
	if ch.CreatedByID != inviter.ID && !auth.IsAdmin(p) {
		return nil, apperrors.ErrChannelForbidden
	}
	if ch.Type != model.ChannelPrivate {
		return nil, apperrors.Field("channel", "Only private channels accept invitations")
	}
	target, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	added, err := s.AddMember(ctx, ch, target.ID)
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, apperrors.ErrAlreadyMember
	}
	s.notifier.Notify(push.Notification{
		UserID:      target.ID,
		DeviceToken: target.PushToken,
		Title:       "Channel Invitation",
		Body:        fmt.Sprintf("%s invited you to join %s", inviter.Username, ch.Name),
		ChannelID:   ch.ID,
	})
	return target, nil
}

// Members 频道成员
func (s *ChannelService) Members(ctx context.Context, p auth.Principal, id uint) ([]model.User, error) {
	ch, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	members, err := s.members.Members(ctx, ch.ID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// FindOrCreateByName 按名称查找频道，不存在时创建公开频道
func (s *ChannelService) FindOrCreateByName(ctx context.Context, name string, creatorID uint, description string) (*model.Channel, error) {
	name = strings.TrimSpace(name)
	if err := validateChannel(name, description); err != nil {
		return nil, err
	}
	ch := &model.Channel{Name: name, Description: description, Type: model.ChannelPublic, CreatedByID: creatorID}
	created, err := s.channels.CreateIfAbsent(ctx, ch)
	if err != nil {
		return nil, fmt.Errorf("find or create channel %q: %w", name, err)
	}
	if created {
		s.log.Info("自动创建频道", zap.Uint("channel_id", ch.ID), zap.String("name", ch.Name))
	}
	return ch, nil
}

// DefaultChannel 依次查找 home、general、home-assistant，都不存在时创建 home-assistant
func (s *ChannelService) DefaultChannel(ctx context.Context, creatorID uint) (*model.Channel, error) {
	for _, name := range []string{HomeChannel, GeneralChannel, HomeAssistantChannel} {
		ch, err := s.channels.GetByName(ctx, name)
		if err == nil {
			return ch, nil
		}
		if !repository.IsNotFound(err) {
			return nil, fmt.Errorf("get channel %q: %w", name, err)
		}
	}
	return s.FindOrCreateByName(ctx, HomeAssistantChannel, creatorID, "Home Assistant notifications and messages")
}

// Search 在可访问频道中按名称或描述搜索
func (s *ChannelService) Search(ctx context.Context, p auth.Principal, query string, limit int) ([]ChannelSummary, error) {
	userID := auth.ActorID(p)
	channels, err := s.channels.Search(ctx, userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search channels: %w", err)
	}
	out := make([]ChannelSummary, 0, len(channels))
	for i := range channels {
		summary, err := s.summarize(ctx, &channels[i], userID)
		if err != nil {
			return nil, err
		}
		out = append(out, *summary)
	}
	return out, nil
}

// accessibleIDs 可访问频道ID子查询
func (s *ChannelService) accessibleIDs(userID uint) *gorm.DB {
	return s.channels.AccessibleIDs(userID)
}
