package model

import (
	"time"
)

// 消息类型
const (
	MessageChat        = "chat"
	MessageAPI         = "api"
	MessageBot         = "bot"
	MessageBotResponse = "bot_response"
	MessageStatus      = "status"
)

// Message 消息模型，创建后不可修改
// Attachments 仅保存附件引用（文件名/URL），文件本身不在本服务存储
type Message struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ChannelID   uint      `gorm:"not null;index:idx_message_channel_created;comment:频道ID" json:"channel_id"`
	UserID      uint      `gorm:"not null;index;comment:发送者ID" json:"user_id"`
	Content     string    `gorm:"type:text;not null;comment:消息内容" json:"content"`
	Attachments []string  `gorm:"serializer:json;type:text;comment:附件引用" json:"attachments,omitempty"`
	MessageType string    `gorm:"type:varchar(32);not null;default:'chat';comment:消息类型" json:"message_type"`
	CreatedAt   time.Time `gorm:"index:idx_message_channel_created;comment:创建时间" json:"created_at"`

	User    *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Channel *Channel `gorm:"foreignKey:ChannelID" json:"-"`
}

func (Message) TableName() string { return "message" }
