package model

import "time"

// 机器人类型
const (
	BotWebhook = "webhook"
	BotAPI     = "api"
)

// Bot 机器人
// webhook 机器人有唯一的 WebhookID（路由键）和 WebhookSecret（HMAC密钥）
type Bot struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"type:varchar(64);not null;uniqueIndex;comment:名称" json:"name"`
	Description   string    `gorm:"type:varchar(500);comment:描述" json:"description"`
	BotType       string    `gorm:"type:varchar(16);not null;default:'webhook';comment:类型" json:"bot_type"`
	Active        bool      `gorm:"not null;default:true;comment:是否启用" json:"active"`
	WebhookID     *string   `gorm:"type:varchar(64);uniqueIndex;comment:webhook路由键" json:"webhook_id"`
	WebhookSecret string    `gorm:"type:varchar(128);comment:HMAC密钥" json:"-"`
	CreatedAt     time.Time `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt     time.Time `gorm:"comment:更新时间" json:"updated_at"`
}

func (Bot) TableName() string { return "bot" }

func (b *Bot) IsWebhook() bool { return b.BotType == BotWebhook }
