package model

import "time"

// Setting 键值配置，后写覆盖
type Setting struct {
	ID        uint      `gorm:"primaryKey"`
	Key       string    `gorm:"column:setting_key;type:varchar(128);not null;uniqueIndex"`
	Value     string    `gorm:"type:text"`
	UpdatedAt time.Time
}

func (Setting) TableName() string { return "setting" }

// 已知的配置键
const (
	SettingAllowSignups = "allow_signups"
)
