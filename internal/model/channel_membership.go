package model

import "time"

// ChannelMembership 频道成员关系，(channel_id, user_id) 唯一
type ChannelMembership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChannelID uint      `gorm:"not null;uniqueIndex:idx_membership_channel_user;comment:频道ID" json:"channel_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_membership_channel_user;index;comment:用户ID" json:"user_id"`
	JoinedAt  time.Time `gorm:"not null;comment:加入时间" json:"joined_at"`
}

func (ChannelMembership) TableName() string { return "channel_membership" }
