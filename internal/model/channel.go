package model

import "time"

// 频道类型
const (
	ChannelPublic  = "public"
	ChannelPrivate = "private"
	ChannelDM      = "dm"
)

// Channel 频道模型
// dm 频道恰好两个成员，名称由排序后的成员生成
type Channel struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(128);not null;uniqueIndex;comment:频道名" json:"name"`
	Description string    `gorm:"type:varchar(500);comment:描述" json:"description"`
	Type        string    `gorm:"column:channel_type;type:varchar(16);not null;default:'public';index;comment:频道类型" json:"type"`
	CreatedByID uint      `gorm:"not null;index;comment:创建者ID" json:"created_by_id"`
	CreatedAt   time.Time `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt   time.Time `gorm:"comment:更新时间" json:"updated_at"`
}

func (Channel) TableName() string { return "channel" }

func (c *Channel) IsPublic() bool { return c.Type == ChannelPublic }

func (c *Channel) IsDM() bool { return c.Type == ChannelDM }
