package model

import (
	"time"
)

// 用户角色
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DefaultStatus 新用户的默认状态文字
const DefaultStatus = "Available"

// User 用户模型
// 说明：密码仅存储哈希（PasswordHash），不存储明文
// IsOnline/Status/LastSeenAt 为在线状态字段，由心跳、连接、断开修改
// PushToken 为推送设备令牌，可为空
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"type:varchar(64);not null;uniqueIndex;comment:用户名" json:"username"`
	PasswordHash string     `gorm:"type:varchar(255);not null;comment:密码哈希" json:"-"`
	Role         string     `gorm:"type:varchar(16);not null;default:'user';comment:角色" json:"role"`
	IsOnline     bool       `gorm:"not null;default:false;index;comment:是否在线" json:"is_online"`
	Status       string     `gorm:"type:varchar(128);default:'Available';comment:状态文字" json:"status"`
	LastSeenAt   *time.Time `gorm:"comment:最近在线时间" json:"last_seen_at"`
	PushToken    string     `gorm:"type:varchar(255);comment:推送令牌" json:"-"`
	CreatedAt    time.Time  `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"comment:更新时间" json:"updated_at"`
}

// TableName 指定表名（因全局配置使用单数表名，这里与结构体名一致为 user）
func (User) TableName() string { return "user" }

// IsAdmin 是否管理员
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
