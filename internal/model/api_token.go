package model

import "time"

// ApiToken API令牌，只保存摘要（TokenDigest），明文仅在创建/重置时返回一次
type ApiToken struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"type:varchar(128);not null;uniqueIndex;comment:名称" json:"name"`
	TokenDigest string     `gorm:"type:char(64);not null;uniqueIndex;comment:令牌摘要" json:"-"`
	Active      bool       `gorm:"not null;default:true;comment:是否启用" json:"active"`
	LastUsedAt  *time.Time `gorm:"comment:最近使用时间" json:"last_used_at"`
	CreatedAt   time.Time  `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"comment:更新时间" json:"updated_at"`
}

func (ApiToken) TableName() string { return "api_token" }
