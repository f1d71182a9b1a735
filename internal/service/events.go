package service

import (
	"time"

	"homechat/internal/model"
)

// 广播事件类型
const (
	EventNewMessage  = "new_message"
	EventMemberCount = "member_count"
	EventPresence    = "presence"
	EventTyping      = "typing"
	EventStopTyping  = "stop_typing"
)

// Publisher 广播发布接口，由 broadcast.Bus 实现
// 发布不阻塞，返回投递到的订阅者数
type Publisher interface {
	Publish(topic string, payload interface{}) int
}

// UserView 事件与接口中暴露的用户字段
type UserView struct {
	ID         uint       `json:"id"`
	Username   string     `json:"username"`
	Role       string     `json:"role,omitempty"`
	IsOnline   bool       `json:"is_online"`
	Status     string     `json:"status,omitempty"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// NewUserView 用户视图，nil 安全
func NewUserView(u *model.User) *UserView {
	if u == nil {
		return nil
	}
	return &UserView{
		ID:         u.ID,
		Username:   u.Username,
		Role:       u.Role,
		IsOnline:   u.IsOnline,
		Status:     u.Status,
		LastSeenAt: u.LastSeenAt,
	}
}

// MessageView 消息视图
type MessageView struct {
	ID          uint      `json:"id"`
	ChannelID   uint      `json:"channel_id"`
	Channel     string    `json:"channel,omitempty"`
	Content     string    `json:"content"`
	Attachments []string  `json:"attachments,omitempty"`
	MessageType string    `json:"message_type"`
	User        *UserView `json:"user,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewMessageView 消息视图；User/Channel 关联未加载时对应字段为空
func NewMessageView(m *model.Message) *MessageView {
	v := &MessageView{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		Content:     m.Content,
		Attachments: m.Attachments,
		MessageType: m.MessageType,
		User:        NewUserView(m.User),
		CreatedAt:   m.CreatedAt,
	}
	if m.Channel != nil {
		v.Channel = m.Channel.Name
	}
	return v
}

// Event 广播事件信封
type Event struct {
	Type      string       `json:"type"`
	User      *UserView    `json:"user,omitempty"`
	Message   *MessageView `json:"message,omitempty"`
	ChannelID uint         `json:"channel_id,omitempty"`
	Count     *int64       `json:"count,omitempty"`
	Typing    *bool        `json:"typing,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
